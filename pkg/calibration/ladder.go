package calibration

import "fmt"

// Ladder describes the DAC control values visited by a sweep:
// min(i*Granularity, Clamp) for i in [0, Steps).
//
// The ladder saturates at Clamp, so both ends of the DAC range are always
// sampled even when Clamp is not a multiple of Granularity.
type Ladder struct {
	Steps       int    `json:"steps"`
	Granularity uint32 `json:"granularity"`
	Clamp       uint32 `json:"clamp"`
}

// DefaultLadder is the 17-step full-range ladder: 0, 4096, ..., 61440, 65535.
func DefaultLadder() Ladder {
	return Ladder{Steps: 17, Granularity: 4096, Clamp: MaxDACValue}
}

// Validate checks that the ladder has at least one step and stays within the DAC range.
func (l Ladder) Validate() error {
	if l.Steps < 1 {
		return fmt.Errorf("%w: steps must be at least 1, got %d", ErrInvalidLadder, l.Steps)
	}
	if l.Granularity == 0 {
		return fmt.Errorf("%w: granularity must be positive", ErrInvalidLadder)
	}
	if l.Clamp > MaxDACValue {
		return fmt.Errorf("%w: clamp %d exceeds %d", ErrInvalidLadder, l.Clamp, MaxDACValue)
	}
	return nil
}

// Value returns the control value of step i.
func (l Ladder) Value(i int) uint32 {
	v := uint64(i) * uint64(l.Granularity)
	if v > uint64(l.Clamp) {
		return l.Clamp
	}
	return uint32(v)
}

// Values returns every control value of the ladder, in step order.
func (l Ladder) Values() []uint32 {
	vs := make([]uint32, 0, l.Steps)
	for i := range l.Steps {
		vs = append(vs, l.Value(i))
	}
	return vs
}

// Normalize maps a control value to [0, 1] relative to the ladder clamp.
func (l Ladder) Normalize(v uint32) float64 {
	if l.Clamp == 0 {
		return 0
	}
	return float64(v) / float64(l.Clamp)
}
