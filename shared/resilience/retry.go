package resilience

import (
	"context"
	"time"
)

type RetryConfig struct {
	MaxAttempts        uint
	AttemptTimeout     time.Duration
	InitialDelay       time.Duration
	MaxDelay           time.Duration
	UseProviderBackoff bool
	BackoffMultiplier  float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:        3,
		AttemptTimeout:     30 * time.Second,
		InitialDelay:       1 * time.Second,
		MaxDelay:           10 * time.Second,
		UseProviderBackoff: true,
		BackoffMultiplier:  2,
	}
}

type RetryHook interface {
	OnRetryAttempt(ctx context.Context, attempt uint, err error, nextDelay time.Duration)
	OnRetrySuccess(ctx context.Context, attempts uint, totalDuration time.Duration)
	OnRetryFailure(ctx context.Context, err error, attempts uint, totalDuration time.Duration)
}
