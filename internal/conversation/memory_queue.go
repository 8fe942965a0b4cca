package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is the single-process queue: a buffered channel, FIFO by
// construction, so the group argument is unused. Acks are no-ops.
type MemoryQueue struct {
	ch chan queueMessage
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryQueue{ch: make(chan queueMessage, buffer)}
}

// Send blocks while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, _ string, body string) error {
	msg := queueMessage{ID: uuid.NewString(), Body: body, ReceiptHandle: uuid.NewString()}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits for at least one job, then drains up to maxMessages without
// blocking. waitSeconds <= 0 waits until ctx is done.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	var expired <-chan time.Time
	if waitSeconds > 0 {
		t := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer t.Stop()
		expired = t.C
	}

	var first queueMessage
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, nil
	case first = <-q.ch:
	}

	batch := []queueMessage{first}
	for len(batch) < max(maxMessages, 1) {
		select {
		case m := <-q.ch:
			batch = append(batch, m)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *MemoryQueue) Delete(context.Context, string) error { return nil }

// Len reports how many jobs are waiting.
func (q *MemoryQueue) Len() int { return len(q.ch) }
