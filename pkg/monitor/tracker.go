package monitor

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/events"
)

// Tracker folds sweep events into a status snapshot and the points measured
// so far. It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status calibration.Status
	points []calibration.SweepPoint
}

func NewTracker() *Tracker {
	return &Tracker{status: calibration.Status{Phase: calibration.PhaseIdle}}
}

// Apply updates the snapshot with one event. Unknown events are ignored.
func (t *Tracker) Apply(ev events.Event) {
	switch ev.Name {
	case events.SweepStarted:
		p, err := events.DecodeAs[events.SweepStartedEvent](ev)
		if err != nil {
			logrus.WithError(err).Warn("failed to decode sweep.started")
			return
		}
		t.mu.Lock()
		t.status = calibration.Status{
			RunID:     p.RunID,
			Phase:     calibration.PhaseSweeping,
			Channel:   calibration.Channel(p.Channel),
			Mode:      p.Mode,
			Steps:     p.Steps,
			StartedAt: time.Unix(p.Ts, 0),
		}
		t.points = nil
		t.mu.Unlock()
	case events.SweepStep:
		p, err := events.DecodeAs[events.SweepStepEvent](ev)
		if err != nil {
			logrus.WithError(err).Warn("failed to decode sweep.step")
			return
		}
		t.mu.Lock()
		if p.RunID == t.status.RunID {
			t.points = append(t.points, calibration.SweepPoint{Value: p.Value, PPM: p.PPM})
			t.status.Step = p.Index + 1
			t.status.LastValue = p.Value
		}
		t.mu.Unlock()
	case events.SweepFinished:
		p, err := events.DecodeAs[events.SweepFinishedEvent](ev)
		if err != nil {
			logrus.WithError(err).Warn("failed to decode sweep.finished")
			return
		}
		t.mu.Lock()
		if p.RunID == t.status.RunID {
			t.status.Phase = calibration.PhaseDone
			if p.Error != "" {
				t.status.Phase = calibration.PhaseError
				t.status.Message = p.Error
			}
		}
		t.mu.Unlock()
	}
}

// Run applies events from ch until it is closed.
func (t *Tracker) Run(ch <-chan events.Event) {
	for ev := range ch {
		t.Apply(ev)
	}
}

// Status returns a copy of the current status.
func (t *Tracker) Status() calibration.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Points returns a copy of the points measured so far.
func (t *Tracker) Points() []calibration.SweepPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]calibration.SweepPoint, len(t.points))
	copy(out, t.points)
	return out
}
