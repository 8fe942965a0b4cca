package messaging

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func signedRequest(t *testing.T, target, token string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(target, form), token))
	}
	return req
}

func TestValidateTwilioSignature(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "whatsapp:+5215512345678")
	form.Set("Body", "Hola")

	req := signedRequest(t, "https://example.com/webhooks/twilio/whatsapp", "test_token", form)
	if !ValidateTwilioSignature(req, "test_token", "https://example.com/webhooks/twilio/whatsapp") {
		t.Error("expected signature validation to pass")
	}
}

func TestValidateTwilioSignature_Invalid(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM123")

	req := signedRequest(t, "https://example.com/webhook", "", form)
	req.Header.Set("X-Twilio-Signature", "invalid_signature")
	if ValidateTwilioSignature(req, "test_token", "https://example.com/webhook") {
		t.Error("expected signature validation to fail")
	}

	missing := signedRequest(t, "https://example.com/webhook", "", form)
	if ValidateTwilioSignature(missing, "test_token", "https://example.com/webhook") {
		t.Error("expected missing signature to fail")
	}
}

func TestBuildSignaturePayloadSortsKeys(t *testing.T) {
	form := url.Values{}
	form.Set("To", "b")
	form.Set("Body", "a")
	if got := buildSignaturePayload("https://x", form); got != "https://xBodyaTob" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestParseTwilioWebhook_Media(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM9")
	form.Set("From", "whatsapp:+5215512345678")
	form.Set("To", "whatsapp:+5215500000000")
	form.Set("Body", "  ")
	form.Set("NumMedia", "2")
	form.Set("MediaUrl0", "https://api.twilio.com/media/1")
	form.Set("MediaUrl1", "https://api.twilio.com/media/2")
	form.Set("ProfileName", "Juan")

	parsed, err := ParseTwilioWebhook(signedRequest(t, "https://example.com/w", "", form))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Body != "" || parsed.NumMedia != 2 || len(parsed.MediaURLs) != 2 || !parsed.HasMedia() {
		t.Fatalf("unexpected parsed webhook: %#v", parsed)
	}
	if parsed.ProfileName != "Juan" {
		t.Fatalf("unexpected profile name %q", parsed.ProfileName)
	}
}

func TestParseTwilioWebhook_InvalidNumMedia(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM9")
	form.Set("NumMedia", "many")
	if _, err := ParseTwilioWebhook(signedRequest(t, "https://example.com/w", "", form)); err == nil {
		t.Fatal("expected error for non-numeric NumMedia")
	}
}

func TestParseTwilioWebhook_FallsBackToSmsMessageSid(t *testing.T) {
	form := url.Values{}
	form.Set("SmsMessageSid", "SM77")
	parsed, err := ParseTwilioWebhook(signedRequest(t, "https://example.com/w", "", form))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.MessageSid != "SM77" {
		t.Fatalf("unexpected sid %q", parsed.MessageSid)
	}
}
