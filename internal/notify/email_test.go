package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{FromEmail: "ventas@example.com"}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "bot@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

type fakeSendGrid struct {
	status int
	err    error
	last   *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.last = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_Send(t *testing.T) {
	fake := &fakeSendGrid{status: http.StatusAccepted}
	sender := &SendGridSender{client: fake, fromEmail: "bot@example.com", fromName: "Dealer AI", logger: logging.Discard()}

	err := sender.Send(context.Background(), EmailMessage{To: "ventas@example.com", Subject: "Cita", Body: "hola"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.last == nil || fake.last.Subject != "Cita" {
		t.Fatalf("unexpected message: %#v", fake.last)
	}
	if len(fake.last.Categories) != 0 {
		t.Fatalf("expected no categories, got %v", fake.last.Categories)
	}
}

func TestSendGridSender_Category(t *testing.T) {
	fake := &fakeSendGrid{status: http.StatusAccepted}
	sender := &SendGridSender{client: fake, fromEmail: "bot@example.com", fromName: "Dealer AI", logger: logging.Discard()}

	if err := sender.Send(context.Background(), EmailMessage{To: "ventas@example.com", Subject: "Cita", Body: "hola", Category: "lead_alert"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.last.Categories) != 1 || fake.last.Categories[0] != "lead_alert" {
		t.Fatalf("unexpected categories %v", fake.last.Categories)
	}
}

func TestEmailMessageHTMLFromBody(t *testing.T) {
	msg := EmailMessage{Body: "Cliente: Juan <Pérez>\nTeléfono: +52\n"}
	if got := msg.html(); got != "<p>Cliente: Juan &lt;Pérez&gt;<br>Teléfono: +52</p>" {
		t.Fatalf("unexpected html %q", got)
	}
	msg.HTML = "<b>x</b>"
	if got := msg.html(); got != "<b>x</b>" {
		t.Fatalf("explicit html should win, got %q", got)
	}
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	sender := &SendGridSender{client: &fakeSendGrid{status: http.StatusUnauthorized}, logger: logging.Discard()}
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.c", Subject: "x", Body: "y"}); err == nil {
		t.Fatal("expected error for 401")
	}

	sender = &SendGridSender{client: &fakeSendGrid{err: errors.New("dial")}, logger: logging.Discard()}
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.c", Subject: "x", Body: "y"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestSendGridSender_NilClient(t *testing.T) {
	var sender *SendGridSender
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.c"}); err == nil {
		t.Fatal("expected error for unconfigured sender")
	}
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "bot@example.com"}, nil)

	if err := sender.Send(context.Background(), EmailMessage{To: "ventas@example.com", Subject: "Cita", Body: "texto", HTML: "<b>texto</b>"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(fake.in.FromEmailAddress); got != "Dealer AI <bot@example.com>" {
		t.Fatalf("unexpected from %q", got)
	}
	if fake.in.Destination.ToAddresses[0] != "ventas@example.com" {
		t.Fatalf("unexpected destination %#v", fake.in.Destination)
	}
	if len(fake.in.EmailTags) != 0 {
		t.Fatalf("expected no tags, got %#v", fake.in.EmailTags)
	}
	body := fake.in.Content.Simple.Body
	if aws.ToString(body.Text.Data) != "texto" || aws.ToString(body.Html.Data) != "<b>texto</b>" {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestSESSender_DerivesHTMLAndTagsCategory(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSESSender(fake, SESConfig{FromEmail: "bot@example.com"}, logging.Discard())

	if err := sender.Send(context.Background(), EmailMessage{To: "ventas@example.com", Subject: "Cita", Body: "texto", Category: "lead_alert"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(fake.in.Content.Simple.Body.Html.Data); got != "<p>texto</p>" {
		t.Fatalf("unexpected html %q", got)
	}
	if len(fake.in.EmailTags) != 1 || aws.ToString(fake.in.EmailTags[0].Value) != "lead_alert" {
		t.Fatalf("unexpected tags %#v", fake.in.EmailTags)
	}
}

func TestSESSender_Error(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "bot@example.com"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "a@b.c", Subject: "x"}); err == nil {
		t.Fatal("expected SES error")
	}
	if NewSESSender(nil, SESConfig{}, nil) != nil {
		t.Fatal("expected nil sender without client")
	}
}

func TestBuildEmailSender(t *testing.T) {
	if _, ok := BuildEmailSender(EmailSelectionConfig{SendGridAPIKey: "k", SendGridFromEmail: "a@b.c"}, nil, nil).(*SendGridSender); !ok {
		t.Fatal("expected sendgrid sender")
	}
	if _, ok := BuildEmailSender(EmailSelectionConfig{Provider: "SES", SESFromEmail: "a@b.c"}, &fakeSES{}, nil).(*SESSender); !ok {
		t.Fatal("expected SES sender")
	}
	if _, ok := BuildEmailSender(EmailSelectionConfig{Provider: "ses"}, nil, nil).(*StubEmailSender); !ok {
		t.Fatal("expected stub when SES is not configured")
	}
	if _, ok := BuildEmailSender(EmailSelectionConfig{}, nil, nil).(*StubEmailSender); !ok {
		t.Fatal("expected stub without credentials")
	}
}
