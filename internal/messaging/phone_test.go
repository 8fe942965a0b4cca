package messaging

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+52 1 55 1234 5678", "+5215512345678"},
		{"whatsapp:+5215512345678", "+5215512345678"},
		{"WhatsApp:5215512345678", "+5215512345678"},
		{" ", ""},
		{"abc", ""},
		{"whatsapp:", ""},
	}
	for _, tt := range tests {
		if got := NormalizeE164(tt.in); got != tt.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConversationID(t *testing.T) {
	if got := ConversationID("whatsapp:+52 (155) 1234-5678"); got != "5215512345678" {
		t.Fatalf("unexpected conversation id %q", got)
	}
	if got := ConversationID(""); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestWhatsAppAddress(t *testing.T) {
	if got := WhatsAppAddress("+5215512345678"); got != "whatsapp:+5215512345678" {
		t.Fatalf("unexpected address %q", got)
	}
	if got := WhatsAppAddress("whatsapp:+5215512345678"); got != "whatsapp:+5215512345678" {
		t.Fatalf("prefix should not be doubled, got %q", got)
	}
	if got := WhatsAppAddress(""); got != "" {
		t.Fatalf("expected empty address, got %q", got)
	}
}
