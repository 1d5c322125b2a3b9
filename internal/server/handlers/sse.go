package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/visiprobe/visiprobe/internal/core"
)

// eventStream writes scan events as server-sent event frames. Headers are
// committed on the first event so request errors can still use a JSON body.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newEventStream(w http.ResponseWriter) *eventStream {
	flusher, _ := w.(http.Flusher)
	return &eventStream{w: w, flusher: flusher}
}

func (s *eventStream) Started() bool {
	return s.started
}

// Send writes one "event: <kind>\ndata: <json>\n\n" frame and flushes it.
func (s *eventStream) Send(event core.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Kind(), err)
	}

	if !s.started {
		header := s.w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Kind(), data); err != nil {
		return fmt.Errorf("write %s event: %w", event.Kind(), err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
