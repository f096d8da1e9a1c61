package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

type ErrorKind string

const (
	ErrorKindRateLimit      ErrorKind = "rate_limit"
	ErrorKindOverloaded     ErrorKind = "overloaded"
	ErrorKindAuth           ErrorKind = "auth"
	ErrorKindInvalidRequest ErrorKind = "invalid_request"
	ErrorKindServer         ErrorKind = "server"
	ErrorKindNetwork        ErrorKind = "network"
	ErrorKindTimeout        ErrorKind = "timeout"
)

type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (pe *ProviderError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %s", pe.Provider, pe.Message, pe.Kind, pe.Err.Error())
	}
	return fmt.Sprintf("%s: %s (%s)", pe.Provider, pe.Message, pe.Kind)
}

func (pe *ProviderError) Unwrap() error {
	return pe.Err
}

func (pe *ProviderError) Retryable() bool {
	switch pe.Kind {
	case ErrorKindAuth, ErrorKindInvalidRequest:
		return false
	default:
		return true
	}
}

// KindForStatus maps an HTTP status to an error kind. Unrecognized
// non-5xx statuses are treated as invalid requests so they fail fast.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return ErrorKindAuth
	case code == 429:
		return ErrorKindRateLimit
	case code == 529:
		return ErrorKindOverloaded
	case code >= 500:
		return ErrorKindServer
	case code >= 400:
		return ErrorKindInvalidRequest
	default:
		return ErrorKindServer
	}
}

// DefaultRetryAfter is the backoff used when the provider response carried
// no Retry-After hint.
func DefaultRetryAfter(kind ErrorKind) time.Duration {
	switch kind {
	case ErrorKindRateLimit:
		return 5 * time.Second
	case ErrorKindOverloaded:
		return 10 * time.Second
	case ErrorKindServer:
		return 2 * time.Second
	case ErrorKindNetwork, ErrorKindTimeout:
		return 1 * time.Second
	default:
		return 0
	}
}

// Classify converts an arbitrary transport error into a ProviderError.
// Provider implementations classify their own API errors before this runs;
// anything left over is a client-side timeout or a network failure.
func Classify(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	kind := ErrorKindNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrorKindTimeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = ErrorKindTimeout
		}
	}

	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		Message:    "request failed",
		RetryAfter: DefaultRetryAfter(kind),
		Err:        err,
	}
}
