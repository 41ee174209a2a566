package clients

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/types"
)

// Policy controls retry behavior.
type Policy struct {
	// MaxAttempts is the number of tries against the primary client before
	// the fallback is consulted. Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff. Zero means 500ms.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero means 30s.
	MaxDelay time.Duration
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// delay computes the backoff before attempt (1-based counting of failures),
// exponential with up to 25% jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// retryClient wraps a primary client with retries and an optional fallback.
type retryClient struct {
	primary  Client
	fallback Client
	policy   Policy
	log      logger.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps primary so that transient failures are retried with
// exponential backoff, falling through to fallback (when non-nil) once the
// primary's attempts are exhausted. The wrapper reports the primary's
// provider and model.
func WithRetry(primary, fallback Client, policy Policy) Client {
	return &retryClient{
		primary:  primary,
		fallback: fallback,
		policy:   policy.normalized(),
		log:      logger.Nop{},
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *retryClient) Provider() Provider { return r.primary.Provider() }
func (r *retryClient) Model() string      { return r.primary.Model() }

func (r *retryClient) Invoke(ctx context.Context, input []types.Block, opts ...InvokeOption) (*types.Response, error) {
	return r.run(ctx, func(c Client) (*types.Response, error) {
		return c.Invoke(ctx, input, opts...)
	})
}

func (r *retryClient) StreamInvoke(ctx context.Context, input []types.Block, fn StreamFunc, opts ...InvokeOption) (*types.Response, error) {
	return r.run(ctx, func(c Client) (*types.Response, error) {
		return c.StreamInvoke(ctx, input, fn, opts...)
	})
}

func (r *retryClient) StructuredResponse(ctx context.Context, input []types.Block, target any, opts ...InvokeOption) (*types.Response, error) {
	return r.run(ctx, func(c Client) (*types.Response, error) {
		return c.StructuredResponse(ctx, input, target, opts...)
	})
}

func (r *retryClient) run(ctx context.Context, call func(Client) (*types.Response, error)) (*types.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := call(r.primary)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		logger.Warn(r.log, "attempt failed", logger.Fields{
			"provider": r.primary.Provider(), "attempt": attempt, "error": err.Error(),
		})
		if attempt < r.policy.MaxAttempts {
			if err := r.sleep(ctx, r.policy.delay(attempt)); err != nil {
				return nil, err
			}
		}
	}

	if r.fallback != nil {
		logger.Warn(r.log, "primary exhausted, using fallback", logger.Fields{
			"primary": r.primary.Provider(), "fallback": r.fallback.Provider(),
		})
		resp, err := call(r.fallback)
		if err == nil {
			return resp, nil
		}
		return nil, fmt.Errorf("fallback failed after primary error %v: %w", lastErr, err)
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", r.policy.MaxAttempts, lastErr)
}
