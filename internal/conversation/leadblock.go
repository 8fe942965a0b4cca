package conversation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
)

var (
	fencedBlockRE   = regexp.MustCompile("(?s)```\\s*(?:json|JSON)?\\s*(.*?)```")
	objectStartRE   = regexp.MustCompile(`\{\s*"[^"]{1,40}"\s*:`)
	trailingCommaRE = regexp.MustCompile(`,\s*([}\]])`)
)

// extractLeadBlock pulls the hidden lead proposal out of a model reply and
// returns the reply with every fenced block and bare JSON object removed.
// A malformed or missing block yields ok=false; it never fails the turn.
func extractLeadBlock(reply string) (c leads.Candidate, ok bool, visible string) {
	for _, m := range fencedBlockRE.FindAllStringSubmatch(reply, -1) {
		if cand, parsed := parseLeadJSON(m[1]); parsed && !ok {
			c, ok = cand, true
		}
	}
	visible = fencedBlockRE.ReplaceAllString(reply, "")

	// an unclosed fence runs to the end of the reply
	if i := strings.Index(visible, "```"); i >= 0 {
		if cand, parsed := parseLeadJSON(visible[i+3:]); parsed && !ok {
			c, ok = cand, true
		}
		visible = visible[:i]
	}

	var kept strings.Builder
	for {
		loc := objectStartRE.FindStringIndex(visible)
		if loc == nil {
			kept.WriteString(visible)
			break
		}
		end := objectEnd(visible, loc[0])
		if cand, parsed := parseLeadJSON(visible[loc[0]:end]); parsed && !ok {
			c, ok = cand, true
		}
		kept.WriteString(visible[:loc[0]])
		visible = visible[end:]
	}
	return c, ok, tidyWhitespace(kept.String())
}

// objectEnd returns the index just past the brace that closes the object
// opened at start, or len(s) when it never closes.
func objectEnd(s string, start int) int {
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(s)
}

func parseLeadJSON(raw string) (leads.Candidate, bool) {
	raw = strings.TrimSpace(raw)
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return leads.Candidate{}, false
	}
	raw = trailingCommaRE.ReplaceAllString(raw[start:end+1], "$1")

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return leads.Candidate{}, false
	}
	c := leads.Candidate{
		Name:            pick(fields, "nombre", "name"),
		Interest:        pick(fields, "interes", "interés", "interest", "vehiculo", "modelo"),
		Appointment:     pick(fields, "cita", "appointment"),
		AppointmentDate: pick(fields, "fecha", "appointment_date"),
		AppointmentTime: pick(fields, "hora", "appointment_time"),
		Payment:         leads.ParsePayment(pick(fields, "pago", "payment")),
	}
	if c == (leads.Candidate{}) {
		return c, false
	}
	return c, true
}

func pick(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s != "" && !strings.EqualFold(s, "null") {
					return s
				}
			}
		}
	}
	return ""
}

// mergeSessionFacts fills the fields the model left blank with what the
// session already knows.
func mergeSessionFacts(c leads.Candidate, sess *session.Session) leads.Candidate {
	if sess == nil {
		return c
	}
	if c.Name == "" || leads.IsPlaceholderName(c.Name) {
		if sess.UserName != "" {
			c.Name = sess.UserName
		}
	}
	if c.Interest == "" {
		c.Interest = sess.LastInterest
	}
	if c.Appointment == "" {
		c.Appointment = sess.LastAppointment
	}
	if c.AppointmentDate == "" && c.Appointment == sess.LastAppointment {
		c.AppointmentDate = sess.LastAppointmentDate
		c.AppointmentTime = sess.LastAppointmentTime
	}
	if c.Payment == leads.PaymentUndefined {
		c.Payment = sess.LastPayment
	}
	return c
}

// sessionCandidate is the lead the session facts alone describe.
func sessionCandidate(sess *session.Session) leads.Candidate {
	return mergeSessionFacts(leads.Candidate{}, sess)
}

func tidyWhitespace(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
