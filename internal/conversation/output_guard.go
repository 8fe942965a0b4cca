package conversation

import (
	"regexp"
	"strings"
)

// OutputGuardResult contains the result of scanning an outbound reply.
type OutputGuardResult struct {
	// Leaked is true if the reply contains information that should not be sent.
	Leaked bool
	// Reasons lists the detection signals that fired.
	Reasons []string
	// Sanitized is the cleaned reply, or empty when the reply must be blocked.
	Sanitized string
}

type outputLeakPattern struct {
	re     *regexp.Regexp
	reason string
	block  bool // if true, block entirely; if false, try to sanitize
}

var outputLeakPatterns = []outputLeakPattern{
	// System prompt / instruction leaks
	{regexp.MustCompile(`(?i)my (system\s+)?prompt\s+(is|says)|mi\s+prompt\s+(es|dice)`), "leak:system_prompt_disclosure", true},
	{regexp.MustCompile(`(?i)mis\s+instrucciones\s+(son|dicen|indican)|my instructions?\s+(are|say)`), "leak:instructions_disclosure", true},
	{regexp.MustCompile(`(?i)(estoy|fui)\s+(programado|configurado|instruido)\s+para`), "leak:programming_disclosure", true},
	{regexp.MustCompile(`(?i)(estas son|these are)\s+(mis|my)\s+(reglas|instrucciones|rules|instructions)`), "leak:rules_listing", true},

	// AI identity
	{regexp.MustCompile(`(?i)\b(soy|i'?m|i am)\s+(un|una|an?)\s+(ia|ai|inteligencia artificial|modelo de lenguaje|language model|chatbot|bot)\b`), "leak:ai_identity", false},
	{regexp.MustCompile(`(?i)(basado en|powered by|funciono con|built on)\s+(gemini|claude|gpt|openai|anthropic|bedrock|google)`), "leak:tech_stack", true},

	// Credentials / infrastructure
	{regexp.MustCompile(`(?i)(api[_\s]?key|secret[_\s]?key|access[_\s]?token|bearer\s+token)\s*[:=]\s*\S+`), "leak:credential", true},
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), "leak:aws_key", true},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{30,}`), "leak:google_key", true},
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql|redis|sqlite)://\S+`), "leak:database_url", true},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d{2,5}\b`), "leak:ip_port", true},

	// Internal endpoints
	{regexp.MustCompile(`(?i)/admin/|/webhooks/|/internal/|/debug/`), "leak:internal_path", true},

	// Other customers
	{regexp.MustCompile(`(?i)(otro|otra)s?\s+clientes?\s+(me\s+)?(dijo|dijeron|compro|compraron|llamad[oa])`), "leak:other_customer_ref", true},
}

// ScanOutputForLeaks checks an outbound reply for sensitive information leaks.
func ScanOutputForLeaks(reply string) OutputGuardResult {
	if strings.TrimSpace(reply) == "" {
		return OutputGuardResult{Sanitized: reply}
	}

	var reasons []string
	shouldBlock := false
	for _, p := range outputLeakPatterns {
		if p.re.MatchString(reply) {
			reasons = append(reasons, p.reason)
			if p.block {
				shouldBlock = true
			}
		}
	}
	if len(reasons) == 0 {
		return OutputGuardResult{Sanitized: reply}
	}

	result := OutputGuardResult{Leaked: true, Reasons: reasons}
	if !shouldBlock {
		result.Sanitized = sanitizeOutput(reply)
	}
	return result
}

var aiIdentitySentenceRE = regexp.MustCompile(`(?i)[^.!?¡¿]*\b(soy|i'?m|i am)\s+(un|una|an?)\s+(ia|ai|inteligencia artificial|modelo de lenguaje|language model|chatbot|bot)\b[^.!?]*[.!?]?\s*`)

// sanitizeOutput removes AI identity disclosures while keeping the rest.
func sanitizeOutput(reply string) string {
	return strings.TrimSpace(aiIdentitySentenceRE.ReplaceAllString(reply, ""))
}
