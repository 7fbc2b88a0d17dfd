package channel

import (
	"context"
	"math"
	"time"

	"github.com/dd0wney/agentgraph/pkg/config"
)

// RetryPolicy controls how the listener redials a lost push channel
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// MaxAttempts bounds consecutive failed dials; 0 retries forever
	MaxAttempts int
}

// DefaultRetryPolicy starts at 500ms and doubles up to 30s, forever
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// RetryPolicyFrom converts the configuration block
func RetryPolicyFrom(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		InitialDelay: cfg.InitialDelay,
		Multiplier:   cfg.Multiplier,
		MaxDelay:     cfg.MaxDelay,
		MaxAttempts:  cfg.MaxAttempts,
	}
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Exhausted reports whether attempt exceeds MaxAttempts
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}

// Wait sleeps for the attempt's delay or until ctx ends
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(p.NextDelay(attempt))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
