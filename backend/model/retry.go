package model

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/wthorbecke/gather/shared/resilience"
)

// CallWithRetry wraps a single provider call with a per-attempt timeout,
// error classification, and kind-specific backoff. Fatal kinds (auth,
// invalid_request) return immediately; retryable kinds sleep for the
// provider-supplied hint when one exists, otherwise on an escalating
// schedule. The call must be idempotent: nothing is mutated on failure.
func CallWithRetry[T any](
	ctx context.Context,
	provider string,
	cfg *resilience.RetryConfig,
	hooks []resilience.RetryHook,
	call func(ctx context.Context) (T, error),
) (T, error) {
	start := time.Now()
	var attempts uint

	result, err := retry.DoWithData(
		func() (T, error) {
			attempts++
			attemptCtx := ctx
			if cfg.AttemptTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
				defer cancel()
			}

			value, err := call(attemptCtx)
			if err != nil {
				return value, Classify(provider, err)
			}
			return value, nil
		},
		retry.Attempts(cfg.MaxAttempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var pe *ProviderError
			if errors.As(err, &pe) {
				return pe.Retryable()
			}
			return true
		}),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return nextDelay(cfg, n, err)
		}),
		retry.MaxDelay(cfg.MaxDelay),
		retry.OnRetry(func(n uint, err error) {
			for _, hook := range hooks {
				hook.OnRetryAttempt(ctx, n+1, err, nextDelay(cfg, n, err))
			}
		}),
	)

	if err != nil {
		for _, hook := range hooks {
			hook.OnRetryFailure(ctx, err, attempts, time.Since(start))
		}
		return result, err
	}

	for _, hook := range hooks {
		hook.OnRetrySuccess(ctx, attempts, time.Since(start))
	}
	return result, nil
}

func nextDelay(cfg *resilience.RetryConfig, attempt uint, err error) time.Duration {
	var pe *ProviderError
	if cfg.UseProviderBackoff && errors.As(err, &pe) && pe.RetryAfter > 0 {
		jitter := time.Duration(rand.Float64() * 100 * float64(time.Millisecond))
		return pe.RetryAfter + jitter
	}

	delay := float64(cfg.InitialDelay)
	for i := uint(0); i < attempt; i++ {
		delay *= cfg.BackoffMultiplier
	}
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
