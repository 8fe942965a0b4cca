package leads

import (
	"strings"
	"time"
)

// Payment is the customer's declared payment method.
type Payment string

const (
	PaymentUndefined Payment = ""
	PaymentCash      Payment = "cash"
	PaymentFinancing Payment = "financing"
)

// Label returns the CRM dropdown label for the payment method.
func (p Payment) Label() string {
	switch p {
	case PaymentCash:
		return "De Contado"
	case PaymentFinancing:
		return "Financiamiento"
	default:
		return "Por definir"
	}
}

// ParsePayment accepts internal values, CRM labels and the loose words the
// model writes into its lead block.
func ParsePayment(raw string) Payment {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case v == "":
		return PaymentUndefined
	case strings.Contains(v, "contado"), strings.Contains(v, "cash"), strings.Contains(v, "efectivo"):
		return PaymentCash
	case strings.Contains(v, "financ"), strings.Contains(v, "credito"), strings.Contains(v, "crédito"):
		return PaymentFinancing
	default:
		return PaymentUndefined
	}
}

// Candidate is a lead proposed by the conversation, before the validity gate.
type Candidate struct {
	Name            string  `json:"name"`
	Interest        string  `json:"interest"`
	Appointment     string  `json:"appointment"`
	AppointmentDate string  `json:"appointment_date,omitempty"`
	AppointmentTime string  `json:"appointment_time,omitempty"`
	Payment         Payment `json:"payment,omitempty"`
}

// Lead is an emitted, validated lead as recorded in the local ledger.
type Lead struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Phone          string    `json:"phone"`
	Candidate      Candidate `json:"candidate"`
	Stage          Stage     `json:"stage"`
	Cycle          int       `json:"cycle"`
	CRMItemID      string    `json:"crm_item_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Key identifies one lead emission: one inbound message produces at most one lead.
func Key(conversationID, messageID string) string {
	return conversationID + ":" + messageID + ":lead"
}
