package extraction

import (
	"testing"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
)

func TestPayment(t *testing.T) {
	tests := []struct {
		text   string
		want   leads.Payment
		wantOK bool
	}{
		{"la pagaría de contado", leads.PaymentCash, true},
		{"en efectivo", leads.PaymentCash, true},
		{"me interesa a crédito", leads.PaymentFinancing, true},
		{"¿manejan financiamiento?", leads.PaymentFinancing, true},
		{"no quiero financiamiento", leads.PaymentCash, true},
		{"sin crédito, pago completo", leads.PaymentCash, true},
		{"no de contado, a meses", leads.PaymentFinancing, true},
		{"no tengo el efectivo", leads.PaymentFinancing, true},
		{"no, de contado", leads.PaymentCash, true},
		{"quiero ver la G9", leads.PaymentUndefined, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Payment(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Payment(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
