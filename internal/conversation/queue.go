package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/dealer-ai-platform/internal/events"
)

// queueClient is the transport between webhook handlers and workers. group
// is the conversation id; FIFO queues use it to keep per-customer order.
type queueClient interface {
	Send(ctx context.Context, group, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeInbound jobType = "whatsapp.message.received.v1"
	jobTypeEcho    jobType = "whatsapp.message.echo.v1"
)

type queuePayload struct {
	ID      string                    `json:"id"`
	Kind    jobType                   `json:"kind"`
	Inbound *events.MessageReceivedV1 `json:"inbound,omitempty"`
	Echo    *events.EchoObservedV1    `json:"echo,omitempty"`
}

// conversationKey is the lane a job runs on.
func (p queuePayload) conversationKey() string {
	switch {
	case p.Inbound != nil:
		return p.Inbound.ConversationID
	case p.Echo != nil:
		return p.Echo.ConversationID
	}
	return ""
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
