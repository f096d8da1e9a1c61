package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wthorbecke/gather/shared/resilience"
)

type countingHook struct {
	mu        sync.Mutex
	attempts  int
	successes int
	failures  int
}

func (h *countingHook) OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts++
}

func (h *countingHook) OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successes++
}

func (h *countingHook) OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
}

func fastRetryConfig() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:        3,
		AttemptTimeout:     time.Second,
		InitialDelay:       time.Millisecond,
		MaxDelay:           10 * time.Millisecond,
		UseProviderBackoff: false,
		BackoffMultiplier:  2,
	}
}

func TestCallWithRetry_RateLimitThenSuccess(t *testing.T) {
	t.Parallel()

	hook := &countingHook{}
	var calls int

	result, err := CallWithRetry(context.Background(), "test", fastRetryConfig(),
		[]resilience.RetryHook{hook},
		func(ctx context.Context) (string, error) {
			calls++
			if calls <= 2 {
				return "", &ProviderError{
					Provider:   "test",
					Kind:       ErrorKindRateLimit,
					Message:    "slow down",
					RetryAfter: time.Millisecond,
				}
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	// Exactly two backoff sleeps before the third attempt succeeds.
	assert.Equal(t, 2, hook.attempts)
	assert.Equal(t, 1, hook.successes)
	assert.Equal(t, 0, hook.failures)
}

func TestCallWithRetry_AuthNeverRetried(t *testing.T) {
	t.Parallel()

	var calls int
	_, err := CallWithRetry(context.Background(), "test", fastRetryConfig(), nil,
		func(ctx context.Context) (string, error) {
			calls++
			return "", &ProviderError{Provider: "test", Kind: ErrorKindAuth, Message: "bad key"}
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrorKindAuth, pe.Kind)
}

func TestCallWithRetry_InvalidRequestNeverRetried(t *testing.T) {
	t.Parallel()

	var calls int
	_, err := CallWithRetry(context.Background(), "test", fastRetryConfig(), nil,
		func(ctx context.Context) (string, error) {
			calls++
			return "", &ProviderError{Provider: "test", Kind: ErrorKindInvalidRequest, Message: "bad request"}
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_ExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()

	hook := &countingHook{}
	var calls int

	_, err := CallWithRetry(context.Background(), "test", fastRetryConfig(),
		[]resilience.RetryHook{hook},
		func(ctx context.Context) (string, error) {
			calls++
			return "", &ProviderError{Provider: "test", Kind: ErrorKindServer, Message: "boom"}
		})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, hook.failures)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrorKindServer, pe.Kind)
}

func TestCallWithRetry_AttemptTimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	cfg := fastRetryConfig()
	cfg.MaxAttempts = 2
	cfg.AttemptTimeout = 5 * time.Millisecond

	var calls int
	_, err := CallWithRetry(context.Background(), "test", cfg, nil,
		func(ctx context.Context) (string, error) {
			calls++
			<-ctx.Done()
			return "", ctx.Err()
		})

	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrorKindTimeout, pe.Kind)
}

func TestNextDelay(t *testing.T) {
	t.Parallel()

	escalating := &resilience.RetryConfig{
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}

	tests := []struct {
		name    string
		cfg     *resilience.RetryConfig
		attempt uint
		err     error
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "first retry uses initial delay",
			cfg:     escalating,
			attempt: 0,
			err:     errors.New("plain"),
			wantMin: time.Second,
			wantMax: time.Second,
		},
		{
			name:    "delays escalate per attempt",
			cfg:     escalating,
			attempt: 2,
			err:     errors.New("plain"),
			wantMin: 4 * time.Second,
			wantMax: 4 * time.Second,
		},
		{
			name: "delay is capped at max",
			cfg: &resilience.RetryConfig{
				InitialDelay:      time.Second,
				MaxDelay:          3 * time.Second,
				BackoffMultiplier: 2,
			},
			attempt: 5,
			err:     errors.New("plain"),
			wantMin: 3 * time.Second,
			wantMax: 3 * time.Second,
		},
		{
			name: "provider hint wins when enabled",
			cfg: &resilience.RetryConfig{
				InitialDelay:       time.Second,
				MaxDelay:           30 * time.Second,
				BackoffMultiplier:  2,
				UseProviderBackoff: true,
			},
			attempt: 0,
			err:     &ProviderError{Kind: ErrorKindRateLimit, RetryAfter: 5 * time.Second},
			wantMin: 5 * time.Second,
			wantMax: 5*time.Second + 100*time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDelay(tt.cfg, tt.attempt, tt.err)
			assert.GreaterOrEqual(t, got, tt.wantMin)
			assert.LessOrEqual(t, got, tt.wantMax)
		})
	}
}
