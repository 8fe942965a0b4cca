package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestNextDelay(t *testing.T) {
	linear := LinearPolicy(3, time.Second)
	assert.Equal(t, time.Second, linear.NextDelay(1))
	assert.Equal(t, 2*time.Second, linear.NextDelay(2))

	exp := ExponentialPolicy(4, 2*time.Second, 2, 5*time.Second)
	assert.Equal(t, 2*time.Second, exp.NextDelay(1))
	assert.Equal(t, 4*time.Second, exp.NextDelay(2))
	assert.Equal(t, 5*time.Second, exp.NextDelay(3))
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var delays []time.Duration
	p := LinearPolicy(3, time.Second)
	p.Sleep = recordingSleep(&delays)

	calls := 0
	out, err := Do(context.Background(), p, isTransient, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	var delays []time.Duration
	p := LinearPolicy(5, time.Second)
	p.Sleep = recordingSleep(&delays)

	calls := 0
	_, err := Do(context.Background(), p, isTransient, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errFatal
	})
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	var retried []int
	p := LinearPolicy(2, time.Second)
	p.Sleep = recordingSleep(&delays)
	p.OnRetry = func(attempt int, err error, delay time.Duration) { retried = append(retried, attempt) }

	calls := 0
	_, err := Do(context.Background(), p, isTransient, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, delays)
	assert.Equal(t, []int{1}, retried)
}

func TestDoHonorsContextDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := LinearPolicy(3, time.Hour)

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, isTransient, func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errTransient
		})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, errTransient)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
	assert.Equal(t, 1, calls)
}
