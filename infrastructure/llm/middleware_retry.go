package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries transient failures up to maxRetries times with
// jittered exponential backoff between baseDelay and maxDelay. Errors that
// IsRetryable rejects are returned immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: max(maxRetries, 0),
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, req Request) (string, int, int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, req)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if attempt == r.maxRetries || !IsRetryable(err) || ctx.Err() != nil {
			if attempt == 0 {
				return "", 0, 0, err
			}
			break
		}

		timer := time.NewTimer(r.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", 0, 0, fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, lastErr)
		case <-timer.C:
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after retries: %w", lastErr)
}

// calculateDelay returns baseDelay*2^attempt with ±25% jitter, capped at
// maxDelay.
func (r *retryLLM) calculateDelay(attempt int) time.Duration {
	attempt = Clamp(attempt, 0, 30)
	delay := r.baseDelay << attempt
	if delay <= 0 || delay > r.maxDelay {
		delay = r.maxDelay
	}

	// #nosec G404 - jitter does not need a cryptographic source.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay - delay/4 + jitter

	return min(delay, r.maxDelay)
}

func (r *retryLLM) GetModel() string  { return r.next.GetModel() }
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
