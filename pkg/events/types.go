package events

import "encoding/json"

// Event name constants
const (
	SweepStarted  = "sweep.started"
	SweepStep     = "sweep.step"
	SweepFinished = "sweep.finished"
)

// Event is a generic SSE event.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// SweepStartedEvent is the typed payload for sweep.started.
type SweepStartedEvent struct {
	RunID   string `json:"runId"`
	Channel int    `json:"channel"`
	Mode    string `json:"mode"`
	Steps   int    `json:"steps"`
	Ts      int64  `json:"ts"`
}

// SweepStepEvent is the typed payload for sweep.step. Index is zero-based.
type SweepStepEvent struct {
	RunID string    `json:"runId"`
	Index int       `json:"index"`
	Value uint32    `json:"value"`
	PPM   []float64 `json:"ppm"`
	Ts    int64     `json:"ts"`
}

// SweepFinishedEvent is the typed payload for sweep.finished. Error is empty
// on success.
type SweepFinishedEvent struct {
	RunID string `json:"runId"`
	Steps int    `json:"steps"`
	Error string `json:"error,omitempty"`
	Ts    int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.SweepStepEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Value, payload.PPM)
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
