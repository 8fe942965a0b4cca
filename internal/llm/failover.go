package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/retry"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// Provider is a named backend in the failover chain.
type Provider struct {
	Name   string
	Client Client
}

// AttemptObserver is told about every provider attempt. outcome is "ok" or
// the failure Kind.
type AttemptObserver func(provider, outcome string)

// FailoverClient tries the primary provider with a bounded retry budget and
// falls over to the secondary with its own budget.
type FailoverClient struct {
	providers   []Provider
	attempts    int
	backoff     time.Duration
	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	observe     AttemptObserver
	logger      *logging.Logger
}

// FailoverOption customizes a FailoverClient.
type FailoverOption func(*FailoverClient)

// WithAttempts sets the per-provider attempt budget.
func WithAttempts(n int) FailoverOption {
	return func(c *FailoverClient) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff sets the linear backoff step between attempts.
func WithBackoff(d time.Duration) FailoverOption {
	return func(c *FailoverClient) { c.backoff = d }
}

// WithCallTimeout bounds each individual provider call.
func WithCallTimeout(d time.Duration) FailoverOption {
	return func(c *FailoverClient) { c.callTimeout = d }
}

// WithAttemptObserver registers a metrics hook.
func WithAttemptObserver(fn AttemptObserver) FailoverOption {
	return func(c *FailoverClient) { c.observe = fn }
}

// WithSleep replaces the backoff timer.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) FailoverOption {
	return func(c *FailoverClient) { c.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) FailoverOption {
	return func(c *FailoverClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewFailoverClient builds the chain. Providers with a nil client are skipped.
func NewFailoverClient(providers []Provider, opts ...FailoverOption) *FailoverClient {
	c := &FailoverClient{
		attempts:    2,
		backoff:     time.Second,
		callTimeout: 30 * time.Second,
		logger:      logging.Default(),
	}
	for _, p := range providers {
		if p.Client != nil {
			c.providers = append(c.providers, p)
		}
	}
	if len(c.providers) == 0 {
		panic("llm: at least one provider is required")
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete returns the first successful completion. Retriable failures
// (timeout, rate limit, 5xx) are retried on the same provider with linear
// backoff; anything else moves straight to the next provider.
func (c *FailoverClient) Complete(ctx context.Context, req Request) (Response, error) {
	var causes []error
	for idx, p := range c.providers {
		policy := retry.LinearPolicy(c.attempts, c.backoff)
		policy.Sleep = c.sleep
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			c.logger.Warn("llm attempt failed, retrying",
				"provider", p.Name,
				"attempt", attempt,
				"kind", Classify(err).String(),
				"backoff", delay,
				"error", err,
			)
		}

		resp, err := retry.Do(ctx, policy, IsRetriable, func(ctx context.Context, attempt int) (Response, error) {
			callCtx := ctx
			if c.callTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
				defer cancel()
			}
			resp, err := p.Client.Complete(callCtx, req)
			if err != nil {
				c.record(p.Name, Classify(err).String())
				return Response{}, err
			}
			c.record(p.Name, "ok")
			return resp, nil
		})
		if err == nil {
			if resp.Provider == "" {
				resp.Provider = p.Name
			}
			if idx > 0 {
				c.logger.Info("llm failover succeeded", "provider", p.Name)
			}
			return resp, nil
		}

		causes = append(causes, fmt.Errorf("%s: %w", p.Name, err))
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("llm provider exhausted", "provider", p.Name, "kind", Classify(err).String(), "error", err)
	}

	c.logger.Error("all llm providers failed", "providers", len(c.providers))
	return Response{}, fmt.Errorf("%w: %w", ErrProvidersExhausted, errors.Join(causes...))
}

func (c *FailoverClient) record(provider, outcome string) {
	if c.observe != nil {
		c.observe(provider, outcome)
	}
}
