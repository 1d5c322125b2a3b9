package output

import (
	"encoding/json"

	"github.com/visiprobe/visiprobe/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatScan renders a finished scan as JSON.
func (f *JSONFormatter) FormatScan(result *core.Complete) (string, error) {
	if result == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// EventRecord is one NDJSON line: the event kind and its payload.
type EventRecord struct {
	Event core.EventKind `json:"event"`
	Data  core.Event     `json:"data"`
}

// EventLine encodes event as a single NDJSON line without the newline.
func EventLine(event core.Event) ([]byte, error) {
	return json.Marshal(EventRecord{Event: event.Kind(), Data: event})
}
