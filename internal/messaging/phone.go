package messaging

import (
	"regexp"
	"strings"
)

const whatsAppPrefix = "whatsapp:"

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
// A leading "whatsapp:" channel prefix is ignored.
func NormalizeE164(value string) string {
	value = StripChannelPrefix(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// StripChannelPrefix removes the "whatsapp:" address prefix Twilio puts on
// WhatsApp participants.
func StripChannelPrefix(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= len(whatsAppPrefix) && strings.EqualFold(value[:len(whatsAppPrefix)], whatsAppPrefix) {
		value = value[len(whatsAppPrefix):]
	}
	return strings.TrimSpace(value)
}

// WhatsAppAddress formats a phone as a Twilio WhatsApp participant.
func WhatsAppAddress(value string) string {
	e164 := NormalizeE164(value)
	if e164 == "" {
		return ""
	}
	return whatsAppPrefix + e164
}

// ConversationID derives the conversation key from the customer's phone: its
// digits, so the same person maps to one conversation across transports.
func ConversationID(phone string) string {
	return sanitizePhone(StripChannelPrefix(phone))
}

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}
