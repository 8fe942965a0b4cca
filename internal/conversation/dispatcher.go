package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const (
	defaultLaneBuffer = 64
	defaultLaneIdle   = 2 * time.Minute
)

// ErrLaneFull is returned when a conversation already has too many pending turns.
var ErrLaneFull = errors.New("conversation: lane full")

// ErrDispatcherStopped is returned by Submit after Stop.
var ErrDispatcherStopped = errors.New("conversation: dispatcher stopped")

// Task is one unit of work for a conversation.
type Task func(ctx context.Context)

// Dispatcher serializes tasks per conversation while running different
// conversations in parallel. Each conversation gets a FIFO lane served by
// its own goroutine; a weighted semaphore bounds how many lanes run at once.
// A lane left empty for laneIdle is closed and forgotten.
type Dispatcher struct {
	sem        *semaphore.Weighted
	laneBuffer int
	laneIdle   time.Duration
	logger     *logging.Logger
	active     atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lanes   map[string]chan Task
	stopped bool
}

// NewDispatcher creates a dispatcher running at most maxConcurrent tasks at once.
func NewDispatcher(ctx context.Context, maxConcurrent int, logger *logging.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		laneBuffer: defaultLaneBuffer,
		laneIdle:   defaultLaneIdle,
		logger:     logger,
		lanes:      make(map[string]chan Task),
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	return d
}

// Submit queues task on the lane for key, creating the lane on first use.
func (d *Dispatcher) Submit(key string, task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	lane, ok := d.lanes[key]
	if !ok {
		lane = make(chan Task, d.laneBuffer)
		d.lanes[key] = lane
		d.wg.Add(1)
		go d.runLane(key, lane)
	}

	select {
	case lane <- task:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrLaneFull, key)
	}
}

func (d *Dispatcher) runLane(key string, lane chan Task) {
	defer d.wg.Done()
	idle := time.NewTimer(d.laneIdle)
	defer idle.Stop()
	for {
		select {
		case task, ok := <-lane:
			if !ok {
				return
			}
			if err := d.sem.Acquire(d.ctx, 1); err != nil {
				return
			}
			d.active.Add(1)
			d.run(key, task)
			d.active.Add(-1)
			d.sem.Release(1)
			idle.Reset(d.laneIdle)
		case <-idle.C:
			if d.reap(key, lane) {
				return
			}
			idle.Reset(d.laneIdle)
		case <-d.ctx.Done():
			return
		}
	}
}

// reap drops an empty lane from the map. Submit sends under the same lock,
// so nothing can reach the lane once it is gone.
func (d *Dispatcher) reap(key string, lane chan Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(lane) > 0 || d.lanes[key] != lane {
		return false
	}
	delete(d.lanes, key)
	return true
}

func (d *Dispatcher) run(key string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("conversation task panicked", "conversation_id", key, "panic", r)
		}
	}()
	task(d.ctx)
}

// Lanes reports how many conversations currently hold a lane.
func (d *Dispatcher) Lanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Active reports how many tasks are running right now.
func (d *Dispatcher) Active() int64 {
	return d.active.Load()
}

// Stop closes every lane, lets queued tasks drain and waits for them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()
	d.wg.Wait()
	d.cancel()
}
