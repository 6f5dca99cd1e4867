package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ferrule/courier/internal/openrouter"
)

type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func testPolicy(sleep *fakeSleeper) Policy {
	return Policy{
		MaxRetries:              2,
		ServiceUnavailableDelay: 5 * time.Second,
		RateLimitDelay:          10 * time.Second,
		Model:                   "openai/gpt-4o-mini",
		Sleep:                   sleep.sleep,
	}
}

func apiErr(status int, message, provider string) error {
	return &openrouter.APIError{Status: status, Message: message, Provider: provider}
}

func TestDoSucceedsAfterUnavailable(t *testing.T) {
	sleep := &fakeSleeper{}
	calls := 0
	resp, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
		calls++
		if calls < 3 {
			return nil, apiErr(503, "no capacity", "DeepInfra")
		}
		return &openrouter.Response{ID: "gen-1"}, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.ID != "gen-1" || calls != 3 {
		t.Errorf("resp=%+v calls=%d", resp, calls)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(sleep.delays) != 2 || sleep.delays[0] != want[0] || sleep.delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", sleep.delays, want)
	}
}

func TestDoUnavailableExhausted(t *testing.T) {
	sleep := &fakeSleeper{}
	calls := 0
	_, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
		calls++
		return nil, apiErr(503, "no capacity", "DeepInfra")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !strings.Contains(err.Error(), "DeepInfra") || !strings.Contains(err.Error(), "capacity") {
		t.Errorf("error = %v", err)
	}
}

func TestDoUnavailableUnknownProvider(t *testing.T) {
	sleep := &fakeSleeper{}
	_, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
		return nil, apiErr(503, "no capacity", "")
	})
	if err == nil || !strings.Contains(err.Error(), "Unknown") {
		t.Errorf("error = %v", err)
	}
}

func TestDoRateLimitBackoff(t *testing.T) {
	sleep := &fakeSleeper{}
	calls := 0
	_, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
		calls++
		return nil, apiErr(429, "slow down", "")
	})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error = %v", err)
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second}
	if len(sleep.delays) != 2 || sleep.delays[0] != want[0] || sleep.delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", sleep.delays, want)
	}
}

func TestDoVisionRejection(t *testing.T) {
	for _, message := range []string{
		"this model does not support vision",
		"invalid image content",
		"No endpoints found that support your request",
	} {
		sleep := &fakeSleeper{}
		calls := 0
		_, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
			calls++
			return nil, apiErr(400, message, "")
		})
		if err == nil || !strings.Contains(err.Error(), "openai/gpt-4o-mini") || !strings.Contains(err.Error(), "vision-capable") {
			t.Errorf("message %q: error = %v", message, err)
		}
		if calls != 1 {
			t.Errorf("message %q: 400 retried %d times", message, calls)
		}
	}
}

func TestDoPlainBadRequest(t *testing.T) {
	sleep := &fakeSleeper{}
	_, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
		return nil, apiErr(400, "malformed tool schema", "")
	})
	if err == nil || strings.Contains(err.Error(), "vision-capable") {
		t.Errorf("error = %v", err)
	}
	if len(sleep.delays) != 0 {
		t.Errorf("400 slept: %v", sleep.delays)
	}
}

func TestDoPermanentStatuses(t *testing.T) {
	for _, status := range []int{404, 401, 500} {
		sleep := &fakeSleeper{}
		calls := 0
		_, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
			calls++
			return nil, apiErr(status, "nope", "")
		})
		if err == nil || calls != 1 {
			t.Errorf("status %d: err=%v calls=%d", status, err, calls)
		}
	}
}

func TestDoTransportError(t *testing.T) {
	sleep := &fakeSleeper{}
	calls := 0
	_, err := testPolicy(sleep).Do(context.Background(), func(context.Context) (*openrouter.Response, error) {
		calls++
		return nil, fmt.Errorf("dial tcp: connection refused")
	})
	if err == nil || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestDoContextCanceledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := testPolicy(&fakeSleeper{})
	policy.Sleep = nil
	policy.ServiceUnavailableDelay = time.Minute
	cancel()
	_, err := policy.Do(ctx, func(context.Context) (*openrouter.Response, error) {
		return nil, apiErr(503, "no capacity", "X")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
