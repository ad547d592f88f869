package calibration

import "fmt"

// Mode is a frequency measurement mode. Each mode carries the counter register
// it reads and the count that corresponds to the nominal frequency.
type Mode struct {
	Name     string  `json:"name"`
	Register uint32  `json:"register"`
	Nominal  float64 `json:"nominal"`
}

var (
	// FreeRunning reads the counter gated by the local 2^27-cycle window.
	FreeRunning = Mode{Name: "free-running", Register: RegFreqCount, Nominal: 1 << 27}
	// GPSDisciplined reads the counter gated by the GPS pulse-per-second,
	// clocked against the 125 MHz reference.
	GPSDisciplined = Mode{Name: "gps", Register: RegGPSCount, Nominal: 125000000}
)

// ModeFor returns GPSDisciplined if gps is set, FreeRunning otherwise.
func ModeFor(gps bool) Mode {
	if gps {
		return GPSDisciplined
	}
	return FreeRunning
}

// ParseMode looks up a mode by name.
func ParseMode(name string) (Mode, error) {
	switch name {
	case FreeRunning.Name:
		return FreeRunning, nil
	case GPSDisciplined.Name:
		return GPSDisciplined, nil
	}
	return Mode{}, fmt.Errorf("unknown measurement mode %q", name)
}

// PPM converts a raw counter sample to a frequency offset in parts per million.
func (m Mode) PPM(raw uint32) float64 {
	return (float64(raw)/m.Nominal - 1.0) * 1e6
}

// Raw is the inverse of PPM, rounded to the nearest count. It is used by the
// simulator to synthesize counter values.
func (m Mode) Raw(ppm float64) uint32 {
	return uint32(m.Nominal*(1.0+ppm/1e6) + 0.5)
}

func (m Mode) String() string {
	return m.Name
}
