package extraction

import (
	"regexp"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
)

// Negations are checked before the plain keywords: "no quiero financiamiento"
// mentions financing but means cash.
var (
	refusesFinancingRE = regexp.MustCompile(`\b(?:no|sin)\s+(?:quiero\s+|necesito\s+|me\s+interesa\s+|ocupo\s+)?(?:el\s+|un\s+|a\s+)?(?:financiamiento|financiar|financiado|credito)\b`)
	refusesCashRE      = regexp.MustCompile(`\bno\s+(?:es\s+|seria\s+|sera\s+|puedo\s+|podria\s+)?(?:de\s+|al\s+)contado\b|\bno\s+tengo\s+(?:el\s+)?(?:efectivo|dinero\s+completo|todo\s+el\s+dinero)\b`)
	cashRE             = regexp.MustCompile(`\b(?:contado|efectivo|cash|pago\s+completo|de\s+una\s+sola\s+exhibicion)\b`)
	financingRE        = regexp.MustCompile(`\b(?:financiamiento|financiar|financiado|credito|mensualidades|a\s+meses|enganche|plazos)\b`)
)

// Payment detects the payment method the customer states.
func Payment(text string) (leads.Payment, bool) {
	folded := Fold(text)
	switch {
	case refusesFinancingRE.MatchString(folded):
		return leads.PaymentCash, true
	case refusesCashRE.MatchString(folded):
		return leads.PaymentFinancing, true
	case cashRE.MatchString(folded):
		return leads.PaymentCash, true
	case financingRE.MatchString(folded):
		return leads.PaymentFinancing, true
	}
	return leads.PaymentUndefined, false
}
