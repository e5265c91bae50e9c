package events

import (
	"encoding/json"
	"time"
)

// Event name constants
const (
	CaptureSample = "capture.sample"
	CaptureWindow = "capture.window"
	CaptureState  = "capture.state"
	ScheduleError = "schedule.error"
)

// Event is a generic SSE event from the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// WindowEvent is the typed payload for capture.window, published when a
// window has been sealed to disk.
type WindowEvent struct {
	Index   int       `json:"index"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Samples int       `json:"samples"`
	Path    string    `json:"path"`
}

// StateEvent is the typed payload for capture.state.
type StateEvent struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
	Ts    int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is
// empty, it returns the zero value of T with a nil error.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
