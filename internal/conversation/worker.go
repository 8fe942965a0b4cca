package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/events"
	"github.com/wolfman30/dealer-ai-platform/internal/handoff"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// TurnHandler is the engine as seen by the worker.
type TurnHandler interface {
	HandleInbound(ctx context.Context, msg InboundMessage) (TurnResult, error)
	HandleEcho(ctx context.Context, echo EchoMessage) (handoff.Origin, error)
}

// Worker polls the job queue and runs each job on its conversation's
// dispatcher lane.
type Worker struct {
	handler    TurnHandler
	queue      queueClient
	dispatcher *Dispatcher
	logger     *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

const (
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10

	ackTimeout     = 5 * time.Second
	minPollBackoff = time.Second
	maxPollBackoff = 8 * time.Second
)

var defaultWorkerConfig = workerConfig{workers: 2, receiveWaitSecs: 2, receiveBatchSize: 5}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets how many goroutines poll the queue.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait, capped at the SQS limit.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds >= 0 {
			cfg.receiveWaitSecs = min(seconds, maxWaitSeconds)
		}
	}
}

// WithReceiveBatchSize sets how many jobs one poll may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.receiveBatchSize = min(size, maxReceiveBatchSize)
		}
	}
}

// NewWorker creates a queue consumer.
func NewWorker(handler TurnHandler, queue queueClient, dispatcher *Dispatcher, logger *logging.Logger, opts ...WorkerOption) *Worker {
	switch {
	case handler == nil:
		panic("conversation: worker needs a turn handler")
	case queue == nil:
		panic("conversation: worker needs a queue")
	case dispatcher == nil:
		panic("conversation: worker needs a dispatcher")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := defaultWorkerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		handler:    handler,
		queue:      queue,
		dispatcher: dispatcher,
		logger:     logger.WithComponent("conversation_worker"),
		cfg:        cfg,
	}
}

// Start launches the pollers. They stop when ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(w.cfg.workers)
	for id := 1; id <= w.cfg.workers; id++ {
		go w.poll(ctx, id)
	}
}

// Wait blocks until every poller has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) poll(ctx context.Context, id int) {
	defer w.wg.Done()
	log := w.logger.With("poller", id)
	delay := minPollBackoff

	for ctx.Err() == nil {
		batch, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			log.Error("queue receive failed", "error", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = min(delay*2, maxPollBackoff)
			continue
		}
		delay = minPollBackoff
		for _, msg := range batch {
			w.route(ctx, msg)
		}
	}
}

// route puts a job on its conversation's lane. The queue message is acked
// after the turn ran. Jobs that cannot be decoded are acked right away so
// they do not cycle forever; a job refused by a full lane is left for
// redelivery.
func (w *Worker) route(ctx context.Context, msg queueMessage) {
	var job queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("dropping undecodable job", "error", err, "queue_message_id", msg.ID)
		w.ack(ctx, msg.ReceiptHandle)
		return
	}
	lane := job.conversationKey()
	if lane == "" {
		w.logger.Error("dropping job without conversation", "job_id", job.ID, "kind", job.Kind)
		w.ack(ctx, msg.ReceiptHandle)
		return
	}

	err := w.dispatcher.Submit(lane, func(taskCtx context.Context) {
		w.run(taskCtx, job)
		w.ack(taskCtx, msg.ReceiptHandle)
	})
	if err != nil {
		w.logger.Warn("lane refused job, leaving it queued", "error", err, "job_id", job.ID, "conversation_id", lane)
	}
}

func (w *Worker) run(ctx context.Context, job queuePayload) {
	switch {
	case job.Kind == jobTypeInbound && job.Inbound != nil:
		res, err := w.handler.HandleInbound(ctx, inboundFromEvent(*job.Inbound))
		if err != nil {
			w.logger.Error("turn failed", "error", err, "job_id", job.ID, "conversation_id", job.Inbound.ConversationID)
			return
		}
		w.logger.Debug("turn finished", "job_id", job.ID, "outcome", res.Outcome, "stage", res.Stage)
	case job.Kind == jobTypeEcho && job.Echo != nil:
		origin, err := w.handler.HandleEcho(ctx, echoFromEvent(*job.Echo))
		if err != nil {
			w.logger.Error("echo failed", "error", err, "job_id", job.ID, "conversation_id", job.Echo.ConversationID)
			return
		}
		w.logger.Debug("echo classified", "job_id", job.ID, "origin", origin)
	default:
		w.logger.Warn("ignoring malformed job", "job_id", job.ID, "kind", job.Kind)
	}
}

func (w *Worker) ack(ctx context.Context, receipt string) {
	if receipt == "" {
		return
	}
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := w.queue.Delete(ackCtx, receipt); err != nil {
		w.logger.Error("queue ack failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func inboundFromEvent(evt events.MessageReceivedV1) InboundMessage {
	return InboundMessage{
		MessageID:      evt.MessageID,
		ConversationID: evt.ConversationID,
		From:           evt.FromE164,
		To:             evt.ToE164,
		Text:           evt.Body,
		Provider:       evt.Provider,
		ReceivedAt:     evt.ReceivedAt,
	}
}

func echoFromEvent(evt events.EchoObservedV1) EchoMessage {
	return EchoMessage{
		MessageID:      evt.MessageID,
		ConversationID: evt.ConversationID,
		Text:           evt.Body,
		SentAt:         evt.SentAt,
	}
}
