package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/engine"
	apperrors "github.com/visiprobe/visiprobe/internal/errors"
	"github.com/visiprobe/visiprobe/internal/metrics"
)

// UnknownIdentity is the rate-limit key used when no client address is known.
const UnknownIdentity = "unknown"

const maxScanRequestBytes = 64 << 10

var respondWithError = apperrors.RespondWithError

// ScanStarter runs one scan for a caller.
type ScanStarter interface {
	StartScan(ctx context.Context, rawURL, identity string, emit engine.EmitFunc) (*core.Complete, error)
}

// ScanRequest is the body of POST /api/ai-scan.
type ScanRequest struct {
	URL string `json:"url"`
}

// ScanHandler streams a visibility scan as server-sent events.
type ScanHandler struct {
	Scanner           ScanStarter
	TrustForwardedFor bool
	Logger            *zap.Logger
}

func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger()
	if h.Scanner == nil {
		respondWithError(w, r, apperrors.NewConfigInvalidError("scanner not configured"))
		return
	}

	var req ScanRequest
	body := http.MaxBytesReader(w, r.Body, maxScanRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "Invalid request body"))
		return
	}

	identity := ClientIdentity(r, h.TrustForwardedFor)
	stream := newEventStream(w)
	closeStream := metrics.StreamOpened()
	defer closeStream()

	_, err := h.Scanner.StartScan(r.Context(), req.URL, identity, stream.Send)
	if err == nil {
		return
	}

	if stream.Started() {
		logger.Debug("scan stream ended early",
			zap.String("identity", identity),
			zap.Error(err))
		return
	}

	respondWithError(w, r, scanErrorEnvelope(w, r, err))
}

func (h *ScanHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// scanErrorEnvelope maps a request-level scan failure to an error envelope.
// Rate-limit failures also set Retry-After.
func scanErrorEnvelope(w http.ResponseWriter, r *http.Request, err error) *gferrors.ErrorEnvelope {
	message := engine.PublicMessage(err)

	var reqErr *engine.RequestError
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		return apperrors.NewInvalidInputError(message)
	case errors.Is(err, engine.ErrRateLimited):
		seconds := 0
		if errors.As(err, &reqErr) && reqErr.RetryAfter > 0 {
			seconds = int(math.Ceil(reqErr.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		return apperrors.NewRateLimitedError(message, seconds)
	case errors.Is(err, engine.ErrConfiguration):
		return apperrors.NewConfigInvalidError(message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.WrapTimeout(r.Context(), err, "Scan did not complete")
	default:
		return apperrors.WrapInternal(r.Context(), err, "Scan failed")
	}
}

// ClientIdentity returns the rate-limit key for a request: the first
// X-Forwarded-For entry when trusted, else the remote host, else UnknownIdentity.
func ClientIdentity(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return UnknownIdentity
	}
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
