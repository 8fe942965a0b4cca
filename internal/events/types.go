package events

import "time"

// Provider names used as the processed_events namespace.
const (
	ProviderTwilio  = "twilio"
	ProviderGeneric = "webhook"
)

// MessageReceivedV1 is one inbound customer message as handed to the engine.
type MessageReceivedV1 struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	FromE164       string    `json:"from_e164"`
	ToE164         string    `json:"to_e164,omitempty"`
	Body           string    `json:"body"`
	MediaURLs      []string  `json:"media_urls,omitempty"`
	Provider       string    `json:"provider"`
	ReceivedAt     time.Time `json:"received_at"`
}

func (MessageReceivedV1) EventType() string {
	return "whatsapp.message.received.v1"
}

// EchoObservedV1 is an outbound message seen on the business account, sent
// either by the engine itself or by a human agent from the same number.
type EchoObservedV1 struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Body           string    `json:"body"`
	Provider       string    `json:"provider"`
	SentAt         time.Time `json:"sent_at"`
}

func (EchoObservedV1) EventType() string {
	return "whatsapp.message.echo.v1"
}
