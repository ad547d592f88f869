package calibration

import "time"

// Phase defines phases of a sweep as seen by the monitor.
type Phase string

const (
	PhaseIdle     Phase = "Idle"
	PhaseSweeping Phase = "Sweeping"
	PhaseDone     Phase = "Done"
	PhaseError    Phase = "Error"
)

// SweepPoint holds the readings taken at one DAC control value, in read order.
// The first reading may still carry the transition after the DAC step.
type SweepPoint struct {
	Value uint32    `json:"value"`
	PPM   []float64 `json:"ppm"`
}

// Settled returns the readings left after dropping the first discard entries.
func (p SweepPoint) Settled(discard int) []float64 {
	if discard < 0 {
		discard = 0
	}
	if discard >= len(p.PPM) {
		return nil
	}
	return p.PPM[discard:]
}

// SweepResult is the ordered outcome of one sweep. Points are in ladder order,
// which is also the x-axis order for reporting.
type SweepResult struct {
	RunID      string       `json:"runId"`
	Channel    Channel      `json:"channel"`
	Mode       Mode         `json:"mode"`
	Clamp      uint32       `json:"clamp"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Points     []SweepPoint `json:"points"`
}

// Append adds a point at the end of the result.
func (r *SweepResult) Append(p SweepPoint) {
	r.Points = append(r.Points, p)
}

// Values returns the control values of all points, in order.
func (r *SweepResult) Values() []uint32 {
	vs := make([]uint32, 0, len(r.Points))
	for _, p := range r.Points {
		vs = append(vs, p.Value)
	}
	return vs
}

// Status is a synthesized view model exposed by the monitor while a sweep runs.
// Step counts completed ladder steps; LastValue is only meaningful once Step > 0.
type Status struct {
	RunID     string    `json:"runId"`
	Phase     Phase     `json:"phase"`
	Channel   Channel   `json:"channel"`
	Mode      string    `json:"mode"`
	Step      int       `json:"step"`
	Steps     int       `json:"steps"`
	LastValue uint32    `json:"lastValue"`
	StartedAt time.Time `json:"startedAt"`
	Message   string    `json:"message,omitempty"`
}
