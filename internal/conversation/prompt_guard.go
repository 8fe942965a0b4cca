package conversation

import (
	"regexp"
	"strings"

	"github.com/wolfman30/dealer-ai-platform/internal/extraction"
)

// PromptGuardResult is the verdict on one inbound message.
type PromptGuardResult struct {
	// Blocked messages never reach the model; the customer gets blockedReply.
	Blocked bool
	// Score runs from 0 (harmless) to 1.
	Score   float64
	Reasons []string
	// Sanitized is what the model sees when the message is not blocked.
	Sanitized string
}

const (
	blockScore    = 0.7
	sanitizeScore = 0.3
	// each extra signal past the strongest adds this much
	signalBonus = 0.1
)

const blockedReply = "Estoy aquí para ayudarte con nuestros vehículos, cotizaciones y citas en la agencia. ¿Qué modelo te interesa?"

type injectionSignal struct {
	reason string
	weight float64
	re     *regexp.Regexp
}

func signal(reason string, weight float64, pattern string) injectionSignal {
	return injectionSignal{reason: reason, weight: weight, re: regexp.MustCompile(pattern)}
}

// Matched against extraction.Fold output: lowercase, no accents.
var injectionSignals = []injectionSignal{
	signal("direct_injection:ignore_instructions", 0.9,
		`ignore\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?)`),
	signal("direct_injection:ignora_instrucciones", 0.9,
		`(ignora|olvida|olvidate\s+de)\s+(todas\s+)?(tus|las)\s+(instrucciones|reglas|indicaciones)(\s+anteriores)?`),
	signal("direct_injection:role_reassignment", 0.7,
		`you\s+are\s+now\s+(a|an|my)\s+|ahora\s+eres\s+(un|una|mi)\s+`),
	signal("direct_injection:new_role", 0.9,
		`new\s+instructions?\s*:|nuevas?\s+instrucci(on|ones)\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`),
	signal("direct_injection:pretend_no_rules", 0.9,
		`(pretend|imagine)\s+(that\s+)?you\s+(have|don'?t\s+have)\s+no\s+(rules?|restrictions?)|finge\s+que\s+no\s+tienes\s+(reglas|restricciones|limites)`),
	signal("direct_injection:jailbreak_keyword", 0.9,
		`jailbreak|dan\s*mode|developer\s*mode|modo\s+(desarrollador|dios|sin\s+restricciones)`),

	signal("exfiltration:system_prompt", 0.8,
		`(reveal|show|print|repeat|tell\s+me)\s+(your\s+)?(system\s+prompt|instructions|initial\s+prompt)`),
	signal("exfiltration:instrucciones", 0.8,
		`(muestrame|dime|revela|repite|escribe)\s+(tus|las|el)\s+(instrucciones|reglas|prompt|mensaje\s+del\s+sistema)`),
	signal("exfiltration:otros_clientes", 0.7,
		`(datos|telefonos?|nombres?)\s+de\s+(otros|los\s+demas)\s+clientes`),
	signal("exfiltration:credentials_keyword", 0.8,
		`\b(api|secret|aws|database|db|monday|twilio)\s*(key|token|secret|password)s?\b|\b(llave|clave|contrasena)\s+de\s+(la\s+)?api\b`),

	signal("obfuscation:encoding", 0.5, `base64\s*(encode|decode|:)|\\x[0-9a-f]{2}`),
	signal("obfuscation:html_injection", 0.6, `<\s*(script|iframe|object|embed|svg|form)\b`),

	signal("context_manipulation:special_tokens", 0.9,
		`\[/?inst\]|\[/?sys\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`),
	signal("context_manipulation:role_markers", 0.7,
		`###\s*(system|instruction|assistant|sistema|instrucciones)\s*:`),
}

// ScanForPromptInjection scores customer text for attempts to override the
// advisor's rules or pull out its instructions. High scores are blocked,
// medium ones are sanitized.
func ScanForPromptInjection(message string) PromptGuardResult {
	res := PromptGuardResult{Sanitized: message}
	if strings.TrimSpace(message) == "" {
		return res
	}

	folded := extraction.Fold(message)
	strongest := 0.0
	for _, sig := range injectionSignals {
		if !sig.re.MatchString(folded) {
			continue
		}
		res.Reasons = append(res.Reasons, sig.reason)
		strongest = max(strongest, sig.weight)
	}
	if len(res.Reasons) == 0 {
		return res
	}

	res.Score = min(strongest+float64(len(res.Reasons)-1)*signalBonus, 1.0)
	switch {
	case res.Score >= blockScore:
		res.Blocked = true
	case res.Score > sanitizeScore:
		res.Sanitized = SanitizeForLLM(message)
	}
	return res
}

var (
	specialTokenRE = regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`)
	roleMarkerRE   = regexp.MustCompile(`(?i)###\s*(system|instruction|assistant|sistema|instrucciones)\s*:`)
	htmlTagRE      = regexp.MustCompile(`(?i)<\s*(script|iframe|object|embed|svg|form)\b[^>]*>`)
)

// SanitizeForLLM removes chat-template tokens, role headers and active HTML
// tags, leaving the rest of the text alone.
func SanitizeForLLM(message string) string {
	for _, re := range []*regexp.Regexp{specialTokenRE, roleMarkerRE, htmlTagRE} {
		message = re.ReplaceAllString(message, "")
	}
	return strings.TrimSpace(message)
}
