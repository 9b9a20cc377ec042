package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// retryPolicy retries transient upstream failures with jittered exponential backoff
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func (p retryPolicy) backoff() retry.Backoff {
	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}
	base := p.baseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	maxDelay := p.maxDelay
	if maxDelay < base {
		maxDelay = base
	}

	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(50, b)
	b = retry.WithCappedDuration(maxDelay, b)
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

func (p retryPolicy) do(ctx context.Context, logger *zap.Logger, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
		logger.Warn("Upstream call failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		return retry.RetryableError(err)
	})
}

// isTransient reports whether an upstream failure is worth another attempt
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}
