// Package retry implements the outbound-call retry policy for the
// chat-completions API: bounded retries for transient provider
// failures, immediate failure for everything else, and user-facing
// messages for the failure classes worth explaining.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ferrule/courier/internal/openrouter"
)

// Policy drives retries around a single logical API call. Sleep is
// injectable for tests; the zero value falls back to a context-aware
// time.Sleep.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries              int
	ServiceUnavailableDelay time.Duration
	RateLimitDelay          time.Duration
	// Model names the configured model in user-facing error messages.
	Model  string
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Do runs call with the policy's retry behavior. Only 503 and 429
// responses are retried; all other failures return immediately.
func (p Policy) Do(ctx context.Context, call func(ctx context.Context) (*openrouter.Response, error)) (*openrouter.Response, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var apiErr *openrouter.APIError
		if !errors.As(err, &apiErr) {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		switch apiErr.Status {
		case http.StatusServiceUnavailable:
			if attempt > p.MaxRetries {
				return nil, fmt.Errorf("provider %s has no available capacity for model %s, try again later: %w",
					apiErr.ProviderName(), p.Model, apiErr)
			}
			delay := p.ServiceUnavailableDelay * time.Duration(attempt)
			logger.Warn("provider unavailable, retrying",
				"provider", apiErr.ProviderName(), "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}

		case http.StatusTooManyRequests:
			if attempt > p.MaxRetries {
				return nil, fmt.Errorf("rate limited on model %s, try again later: %w", p.Model, apiErr)
			}
			delay := p.RateLimitDelay * time.Duration(attempt)
			logger.Warn("rate limited, retrying", "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}

		case http.StatusBadRequest:
			if isVisionRejection(apiErr) {
				return nil, fmt.Errorf("model %s does not support image input, configure a vision-capable model: %w",
					p.Model, apiErr)
			}
			return nil, fmt.Errorf("request rejected: %w", apiErr)

		default:
			return nil, fmt.Errorf("request failed: %w", apiErr)
		}
	}
	return nil, lastErr
}

// isVisionRejection detects 400 responses caused by sending images to
// a model without vision support. Providers phrase this differently,
// so match on the few stable markers.
func isVisionRejection(apiErr *openrouter.APIError) bool {
	text := strings.ToLower(apiErr.Message + " " + apiErr.Raw)
	return strings.Contains(text, "vision") ||
		strings.Contains(text, "image") ||
		strings.Contains(text, "no endpoints found")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
