// Package simulator models a VCXO tuned by two DACs and the frequency counter
// gateware that measures it. It implements lbus.Handler so it can sit behind
// an lbus.Server in place of the FPGA.
package simulator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/lbus"
)

var _ lbus.Handler = &VCXO{}

// Params describes the simulated oscillator. Offsets are in ppm.
type Params struct {
	// CenterPPM is the offset with both DACs at mid-scale.
	CenterPPM float64
	// PullPPM is the full-range tuning span of DAC1.
	PullPPM float64
	// FinePullPPM is the full-range tuning span of DAC2.
	FinePullPPM float64
	// ReferencePPM is the error of the local reference that gates the
	// free-running counter. The GPS counter does not see it.
	ReferencePPM float64
	// NoisePPM is the standard deviation of the per-window measurement noise.
	NoisePPM float64
	Seed     uint64
	// Window is the counter integration period.
	Window time.Duration
}

// DefaultParams returns a plausible 25 MHz VCXO.
func DefaultParams() Params {
	return Params{
		CenterPPM:   3.2,
		PullPPM:     100,
		FinePullPPM: 2,
		NoisePPM:    0.01,
		Seed:        1,
		Window:      calibration.CountingWindow,
	}
}

// segment is a stretch of time during which the offset was constant.
type segment struct {
	start time.Time
	ppm   float64
}

// VCXO is the simulated oscillator plus counter. The counter registers hold
// the average offset over the last completed window; windows free-run from
// the moment the VCXO is created, independently of DAC writes.
type VCXO struct {
	mu      sync.Mutex
	p       Params
	now     func() time.Time
	epoch   time.Time
	dac     map[calibration.Channel]uint32
	history []segment
	regs    map[uint32]uint32
}

// New returns a VCXO with both DACs at mid-scale. now defaults to time.Now.
func New(p Params, now func() time.Time) *VCXO {
	if now == nil {
		now = time.Now
	}
	if p.Window <= 0 {
		p.Window = calibration.CountingWindow
	}
	v := &VCXO{
		p:   p,
		now: now,
		dac: map[calibration.Channel]uint32{
			calibration.DAC1: 1 << 15,
			calibration.DAC2: 1 << 15,
		},
		regs: make(map[uint32]uint32),
	}
	v.epoch = now()
	v.history = []segment{{start: v.epoch, ppm: v.offset()}}
	return v
}

// Offset returns the instantaneous frequency offset for the current DAC codes.
func (v *VCXO) Offset() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.offset()
}

// OffsetAt returns the offset the oscillator settles to with DAC1 at dac1 and
// DAC2 at dac2.
func (p Params) OffsetAt(dac1, dac2 uint32) float64 {
	x1 := float64(dac1)/float64(calibration.MaxDACValue) - 0.5
	x2 := float64(dac2)/float64(calibration.MaxDACValue) - 0.5
	return p.CenterPPM + p.PullPPM*x1 + p.FinePullPPM*x2
}

func (v *VCXO) offset() float64 {
	return v.p.OffsetAt(v.dac[calibration.DAC1], v.dac[calibration.DAC2])
}

// WriteRegister implements lbus.Handler.
func (v *VCXO) WriteRegister(addr uint32, value uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if addr != calibration.RegDACControl {
		v.regs[addr] = value
		return
	}

	ch := calibration.Channel(value >> 16)
	if !ch.Valid() {
		logrus.WithField("value", value).Warn("ignoring DAC write with unknown prefix")
		return
	}
	v.dac[ch] = value & calibration.MaxDACValue

	t := v.now()
	v.history = append(v.history, segment{start: t, ppm: v.offset()})
	v.prune(t)

	logrus.WithFields(logrus.Fields{
		"dac":   ch,
		"value": v.dac[ch],
		"ppm":   v.history[len(v.history)-1].ppm,
	}).Debug("DAC updated")
}

// ReadRegister implements lbus.Handler.
func (v *VCXO) ReadRegister(addr uint32) uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch addr {
	case calibration.RegFreqCount:
		return calibration.FreeRunning.Raw(v.measured() - v.p.ReferencePPM)
	case calibration.RegGPSCount:
		return calibration.GPSDisciplined.Raw(v.measured())
	case calibration.RegDACControl:
		return 0
	}
	return v.regs[addr]
}

// measured returns the offset reported for the last completed window.
func (v *VCXO) measured() float64 {
	k := int64(v.now().Sub(v.epoch)/v.p.Window) - 1
	if k < 0 {
		return v.history[0].ppm
	}
	ws := v.epoch.Add(time.Duration(k) * v.p.Window)
	return v.average(ws, ws.Add(v.p.Window)) + v.noise(k)
}

// average integrates the piecewise-constant history over [from, to).
func (v *VCXO) average(from, to time.Time) float64 {
	var sum float64
	for i, s := range v.history {
		end := to
		if i+1 < len(v.history) {
			end = v.history[i+1].start
		}
		a, b := s.start, end
		if a.Before(from) {
			a = from
		}
		if b.After(to) {
			b = to
		}
		if b.After(a) {
			sum += s.ppm * b.Sub(a).Seconds()
		}
	}
	return sum / to.Sub(from).Seconds()
}

// noise is deterministic per window, so repeated reads of one window agree.
func (v *VCXO) noise(k int64) float64 {
	if v.p.NoisePPM == 0 {
		return 0
	}
	r := rand.New(rand.NewPCG(v.p.Seed, uint64(k)))
	return r.NormFloat64() * v.p.NoisePPM
}

// prune drops segments that ended before the oldest window still readable.
func (v *VCXO) prune(t time.Time) {
	horizon := t.Add(-3 * v.p.Window)
	i := 0
	for i+1 < len(v.history) && !v.history[i+1].start.After(horizon) {
		i++
	}
	if i > 0 {
		v.history = v.history[i:]
	}
}
