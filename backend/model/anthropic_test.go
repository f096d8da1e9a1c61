package model

import (
	"net/http"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicParseError(t *testing.T) {
	provider := &AnthropicProvider{}

	t.Run("retry-after header overrides the default backoff", func(t *testing.T) {
		header := http.Header{}
		header.Set("Retry-After", "17")
		apiErr := &anthropic.Error{
			StatusCode: 429,
			Response:   &http.Response{StatusCode: 429, Header: header},
		}

		pe := provider.parseError(apiErr)
		require.NotNil(t, pe)
		assert.Equal(t, ErrorKindRateLimit, pe.Kind)
		assert.Equal(t, 429, pe.StatusCode)
		assert.Equal(t, 17*time.Second, pe.RetryAfter)
	})

	t.Run("missing response falls back to the kind default", func(t *testing.T) {
		pe := provider.parseError(&anthropic.Error{StatusCode: 529})
		require.NotNil(t, pe)
		assert.Equal(t, ErrorKindOverloaded, pe.Kind)
		assert.Equal(t, DefaultRetryAfter(ErrorKindOverloaded), pe.RetryAfter)
	})

	t.Run("unparseable retry-after keeps the default", func(t *testing.T) {
		header := http.Header{}
		header.Set("Retry-After", "soon")
		apiErr := &anthropic.Error{
			StatusCode: 429,
			Response:   &http.Response{StatusCode: 429, Header: header},
		}

		pe := provider.parseError(apiErr)
		require.NotNil(t, pe)
		assert.Equal(t, DefaultRetryAfter(ErrorKindRateLimit), pe.RetryAfter)
	})
}
