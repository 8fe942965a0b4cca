package leads

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	base := Candidate{Name: "Juan Pérez", Interest: "Tunland G9", Appointment: "Mañana 10:00 AM"}

	tests := []struct {
		name    string
		mutate  func(c *Candidate)
		wantErr error
	}{
		{name: "valid", mutate: func(c *Candidate) {}},
		{name: "short name", mutate: func(c *Candidate) { c.Name = "Jo" }, wantErr: ErrInvalidName},
		{name: "digits only", mutate: func(c *Candidate) { c.Name = "12345" }, wantErr: ErrInvalidName},
		{name: "placeholder cliente", mutate: func(c *Candidate) { c.Name = "Cliente" }, wantErr: ErrPlaceholderName},
		{name: "placeholder unknown", mutate: func(c *Candidate) { c.Name = " unknown " }, wantErr: ErrPlaceholderName},
		{name: "missing interest", mutate: func(c *Candidate) { c.Interest = "x" }, wantErr: ErrMissingInterest},
		{name: "missing appointment", mutate: func(c *Candidate) { c.Appointment = "" }, wantErr: ErrMissingAppointment},
		{name: "three letter name", mutate: func(c *Candidate) { c.Name = "Ana" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := Validate(c)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if IsValid(c) != (tt.wantErr == nil) {
				t.Fatalf("IsValid disagrees with Validate")
			}
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	c := Candidate{Name: "Cliente", Interest: "Miler", Appointment: "Lunes"}
	first := Validate(c)
	second := Validate(c)
	if !errors.Is(second, first) {
		t.Fatalf("validation changed between calls: %v vs %v", first, second)
	}
}

func TestPaymentLabels(t *testing.T) {
	tests := []struct {
		raw   string
		want  Payment
		label string
	}{
		{"De Contado", PaymentCash, "De Contado"},
		{"financiamiento", PaymentFinancing, "Financiamiento"},
		{"crédito", PaymentFinancing, "Financiamiento"},
		{"", PaymentUndefined, "Por definir"},
		{"tal vez", PaymentUndefined, "Por definir"},
	}
	for _, tt := range tests {
		got := ParsePayment(tt.raw)
		if got != tt.want {
			t.Errorf("ParsePayment(%q) = %q, want %q", tt.raw, got, tt.want)
		}
		if got.Label() != tt.label {
			t.Errorf("Label(%q) = %q, want %q", got, got.Label(), tt.label)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key("5215512345678", "wamid.1"); got != "5215512345678:wamid.1:lead" {
		t.Fatalf("unexpected key %q", got)
	}
}
