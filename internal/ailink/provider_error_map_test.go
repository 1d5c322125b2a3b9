package ailink

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/ailink/driver"
)

func TestMapProviderErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		wantCode   string
	}{
		{"auth", 401, CodeProviderAuth},
		{"forbidden", 403, CodeProviderAuth},
		{"rate", 429, CodeProviderRateLimit},
		{"bad", 400, CodeProviderBadRequest},
		{"unavail", 503, CodeProviderUnavailable},
		{"odd", 302, CodeProviderError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &driver.ProviderError{Provider: "openrouter", StatusCode: tc.statusCode, Message: "boom"}
			mapped := mapProviderError(err)
			require.NotNil(t, mapped)
			require.Equal(t, tc.wantCode, mapped.Code)
			require.Equal(t, "boom", mapped.Details)
			require.ErrorIs(t, mapped, err)
		})
	}
}

func TestMapProviderErrorContext(t *testing.T) {
	timeout := mapProviderError(fmt.Errorf("request failed: %w", context.DeadlineExceeded))
	require.Equal(t, CodeProviderTimeout, timeout.Code)

	canceled := mapProviderError(fmt.Errorf("request failed: %w", context.Canceled))
	require.Equal(t, CodeProviderCanceled, canceled.Code)

	other := mapProviderError(errors.New("dial tcp: refused"))
	require.Equal(t, CodeProviderError, other.Code)
	require.Contains(t, other.Error(), "refused")

	require.Nil(t, mapProviderError(nil))
}

func TestMapProviderErrorKeepsRetryHint(t *testing.T) {
	mapped := mapProviderError(&driver.ProviderError{Provider: "openrouter", StatusCode: 429, Message: "slow down", RetryAfter: 30 * time.Second})
	require.Equal(t, CodeProviderRateLimit, mapped.Code)
	require.Equal(t, 30*time.Second, mapped.RetryAfter)
}
