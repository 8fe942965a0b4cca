package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

type scriptedClient struct {
	mu      sync.Mutex
	results []error
	calls   int
	text    string
}

func (s *scriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return Response{}, s.results[idx]
	}
	return Response{Text: s.text}, nil
}

func timeoutErr() error {
	return &ProviderError{Provider: "test", Kind: KindTimeout, Err: errors.New("slow")}
}
func rateLimitErr() error {
	return &ProviderError{Provider: "test", Kind: KindRateLimit, Err: errors.New("429")}
}
func fatalErr() error {
	return &ProviderError{Provider: "test", Kind: KindOther, Err: errors.New("bad request")}
}

func newTestFailover(primary, secondary Client, delays *[]time.Duration, outcomes *[]string) *FailoverClient {
	return NewFailoverClient(
		[]Provider{{Name: "gemini", Client: primary}, {Name: "bedrock", Client: secondary}},
		WithLogger(logging.Discard()),
		WithSleep(func(_ context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		}),
		WithAttemptObserver(func(provider, outcome string) {
			*outcomes = append(*outcomes, provider+":"+outcome)
		}),
	)
}

func TestFailover_PrimarySucceedsAfterRetry(t *testing.T) {
	var delays []time.Duration
	var outcomes []string
	primary := &scriptedClient{results: []error{timeoutErr()}, text: "hola"}
	secondary := &scriptedClient{text: "fallback"}

	resp, err := newTestFailover(primary, secondary, &delays, &outcomes).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "hola", resp.Text)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 0, secondary.calls)
	assert.Equal(t, []time.Duration{time.Second}, delays)
	assert.Equal(t, []string{"gemini:timeout", "gemini:ok"}, outcomes)
}

func TestFailover_NonRetriableAbortsProvider(t *testing.T) {
	var delays []time.Duration
	var outcomes []string
	primary := &scriptedClient{results: []error{fatalErr()}}
	secondary := &scriptedClient{text: "desde bedrock"}

	resp, err := newTestFailover(primary, secondary, &delays, &outcomes).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "desde bedrock", resp.Text)
	assert.Equal(t, "bedrock", resp.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Empty(t, delays)
}

func TestFailover_BothExhausted(t *testing.T) {
	var delays []time.Duration
	var outcomes []string
	primary := &scriptedClient{results: []error{rateLimitErr(), rateLimitErr()}}
	secondary := &scriptedClient{results: []error{timeoutErr(), timeoutErr()}}

	_, err := newTestFailover(primary, secondary, &delays, &outcomes).Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvidersExhausted)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 2, secondary.calls)
	// one linear backoff step per provider between its two attempts
	assert.Equal(t, []time.Duration{time.Second, time.Second}, delays)
	assert.Len(t, outcomes, 4)
}

func TestFailover_ThreeAttemptsLinear(t *testing.T) {
	var delays []time.Duration
	primary := &scriptedClient{results: []error{timeoutErr(), timeoutErr(), timeoutErr()}}
	client := NewFailoverClient([]Provider{{Name: "gemini", Client: primary}},
		WithAttempts(3),
		WithLogger(logging.Discard()),
		WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)
	_, err := client.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrProvidersExhausted)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestFailover_SkipsNilProviders(t *testing.T) {
	only := &scriptedClient{text: "ok"}
	client := NewFailoverClient([]Provider{{Name: "gemini"}, {Name: "bedrock", Client: only}}, WithLogger(logging.Discard()))
	resp, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "bedrock", resp.Provider)
}

func TestFailover_CallTimeoutIsClassifiedAsTimeout(t *testing.T) {
	slow := ClientFunc(func(ctx context.Context, req Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})
	var outcomes []string
	client := NewFailoverClient([]Provider{{Name: "gemini", Client: slow}},
		WithAttempts(1),
		WithCallTimeout(5*time.Millisecond),
		WithLogger(logging.Discard()),
		WithAttemptObserver(func(provider, outcome string) { outcomes = append(outcomes, outcome) }),
	)
	_, err := client.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrProvidersExhausted)
	assert.Equal(t, []string{"timeout"}, outcomes)
}
