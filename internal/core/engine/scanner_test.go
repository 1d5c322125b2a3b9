package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/ailink"
	"github.com/visiprobe/visiprobe/internal/core"
)

type credentialStub struct{ err error }

func (c credentialStub) CredentialStatus() error { return c.err }

type countingRecorder struct {
	nopRecorder
	rejected []string
}

func (c *countingRecorder) ScanRejected(reason string) { c.rejected = append(c.rejected, reason) }

func newScanner(t *testing.T, store *memoryRateStore) (*Scanner, *fakeProvider) {
	t.Helper()
	provider := &fakeProvider{replies: map[string]scriptedReply{"m1": {text: knownAnswer}}}
	orch := newOrchestrator(t, provider, Options{})
	orch.Platforms = testPlatforms()[:1]

	scanner := &Scanner{
		Credentials:  credentialStub{},
		Orchestrator: orch,
	}
	if store != nil {
		scanner.Limiter = &RateLimiter{Store: store, Limit: RateLimit{RequestsPerWindow: 1, WindowDuration: time.Hour}}
	}
	return scanner, provider
}

func TestStartScanRunsScan(t *testing.T) {
	scanner, provider := newScanner(t, &memoryRateStore{})

	log := &eventLog{}
	complete, err := scanner.StartScan(context.Background(), "https://www.AcmePlumbing.com/about", "203.0.113.9", log.emit)
	require.NoError(t, err)
	require.Equal(t, "acmeplumbing.com", complete.Domain)
	require.Equal(t, []string{"scanning:p1", "result:p1", "complete"}, log.kinds())
	require.Equal(t, []string{"m1"}, provider.calls)
}

func TestStartScanRejectsMissingURL(t *testing.T) {
	recorder := &countingRecorder{}
	scanner, provider := newScanner(t, nil)
	scanner.Recorder = recorder

	for _, raw := range []string{"", "   "} {
		_, err := scanner.StartScan(context.Background(), raw, "id", nil)
		require.ErrorIs(t, err, ErrInvalidInput)
		require.Equal(t, MessageURLRequired, PublicMessage(err))
	}
	require.Empty(t, provider.calls)
	require.Equal(t, []string{"invalid_input", "invalid_input"}, recorder.rejected)
}

func TestStartScanRejectsInvalidURLWithoutConsumingQuota(t *testing.T) {
	store := &memoryRateStore{}
	scanner, _ := newScanner(t, store)

	_, err := scanner.StartScan(context.Background(), "https://", "203.0.113.9", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, MessageInvalidURL, PublicMessage(err))
	require.Empty(t, store.state)

	_, err = scanner.StartScan(context.Background(), "acme.com", "203.0.113.9", nil)
	require.NoError(t, err)
}

func TestStartScanRateLimited(t *testing.T) {
	scanner, provider := newScanner(t, &memoryRateStore{})

	_, err := scanner.StartScan(context.Background(), "acme.com", "203.0.113.9", nil)
	require.NoError(t, err)

	emitted := 0
	_, err = scanner.StartScan(context.Background(), "acme.com", "203.0.113.9", func(core.Event) error {
		emitted++
		return nil
	})
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, MessageRateLimited, PublicMessage(err))
	require.Zero(t, emitted)
	require.Len(t, provider.calls, 1)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	require.Greater(t, reqErr.RetryAfter, 59*time.Minute)

	_, err = scanner.StartScan(context.Background(), "acme.com", "198.51.100.4", nil)
	require.NoError(t, err)
}

func TestStartScanCredentialCheckedFirst(t *testing.T) {
	for _, credErr := range []error{ailink.ErrNoCredential, ailink.ErrPlaceholderCredential} {
		scanner, provider := newScanner(t, &memoryRateStore{})
		scanner.Credentials = credentialStub{err: credErr}

		_, err := scanner.StartScan(context.Background(), "", "id", nil)
		require.ErrorIs(t, err, ErrConfiguration)
		require.ErrorIs(t, err, credErr)
		require.Equal(t, MessageKeyNotConfigured, PublicMessage(err))
		require.Empty(t, provider.calls)
	}
}

func TestStartScanStoreFailureFailsOpen(t *testing.T) {
	scanner, _ := newScanner(t, &memoryRateStore{err: errors.New("db down")})

	complete, err := scanner.StartScan(context.Background(), "acme.com", "id", nil)
	require.NoError(t, err)
	require.Equal(t, 1, complete.Total)
}

func TestStartScanUnconfigured(t *testing.T) {
	_, err := (&Scanner{}).StartScan(context.Background(), "acme.com", "id", nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestRequestErrorMessages(t *testing.T) {
	err := &RequestError{Kind: ErrRateLimited, Message: MessageRateLimited}
	require.Equal(t, MessageRateLimited, err.Error())
	require.False(t, errors.Is(err, ErrInvalidInput))
	require.Equal(t, "", PublicMessage(errors.New("plain")))
}
