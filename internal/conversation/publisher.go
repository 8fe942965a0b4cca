package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/dealer-ai-platform/internal/events"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// Publisher enqueues transport events for asynchronous processing, so
// webhook handlers can acknowledge immediately.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueInbound publishes a customer message.
func (p *Publisher) EnqueueInbound(ctx context.Context, evt events.MessageReceivedV1) error {
	return p.enqueue(ctx, queuePayload{Kind: jobTypeInbound, Inbound: &evt})
}

// EnqueueEcho publishes an outbound message observed on the business number.
func (p *Publisher) EnqueueEcho(ctx context.Context, evt events.EchoObservedV1) error {
	return p.enqueue(ctx, queuePayload{Kind: jobTypeEcho, Echo: &evt})
}

func (p *Publisher) enqueue(ctx context.Context, payload queuePayload) error {
	payload, body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, payload.conversationKey(), body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued", "job_id", payload.ID, "kind", payload.Kind, "conversation_id", payload.conversationKey())
	return nil
}
