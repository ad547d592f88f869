// Package controller runs the VCXO measurement protocol against the register
// bus: select a DAC code, let the frequency counter settle, read and convert.
package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/events"
	"github.com/charlie0129/vcxoscan/pkg/lbus"
	"github.com/charlie0129/vcxoscan/pkg/metrics"
)

// ErrInvalidRepeat is returned when fewer than one read per step is requested.
var ErrInvalidRepeat = errors.New("repeat must be at least 1")

// Options configures a Controller.
type Options struct {
	Channel calibration.Channel
	// Mode defaults to calibration.FreeRunning.
	Mode calibration.Mode
	// Pause is the settling wait before every read. Defaults to calibration.DefaultPause.
	Pause  time.Duration
	Repeat int
	// Sleep blocks for the settling wait. Defaults to time.Sleep.
	Sleep func(time.Duration)
	// Events, if set, receives sweep.* events.
	Events *events.EventHub
	// Progress, if set, is called synchronously after every completed step.
	Progress func(index int, point calibration.SweepPoint)
}

// Controller owns the bus for the duration of a sweep. It is not safe for
// concurrent use: measurements are strictly sequential.
type Controller struct {
	bus      *lbus.Bus
	channel  calibration.Channel
	mode     calibration.Mode
	pause    time.Duration
	repeat   int
	sleep    func(time.Duration)
	hub      *events.EventHub
	progress func(int, calibration.SweepPoint)
}

// New validates opts and returns a Controller. Configuration errors are
// reported here, before any bus activity.
func New(bus *lbus.Bus, opts Options) (*Controller, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus is nil")
	}
	if !opts.Channel.Valid() {
		_, err := opts.Channel.Prefix()
		return nil, err
	}
	if opts.Repeat < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidRepeat, opts.Repeat)
	}
	if opts.Mode.Nominal == 0 {
		opts.Mode = calibration.FreeRunning
	}
	if opts.Pause <= 0 {
		opts.Pause = calibration.DefaultPause
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	return &Controller{
		bus:      bus,
		channel:  opts.Channel,
		mode:     opts.Mode,
		pause:    opts.Pause,
		repeat:   opts.Repeat,
		sleep:    opts.Sleep,
		hub:      opts.Events,
		progress: opts.Progress,
	}, nil
}

// Mode returns the measurement mode.
func (c *Controller) Mode() calibration.Mode {
	return c.mode
}

// Channel returns the DAC channel being swept.
func (c *Controller) Channel() calibration.Channel {
	return c.channel
}

// StepDuration is the settling time spent on one ladder step.
func (c *Controller) StepDuration() time.Duration {
	return time.Duration(c.repeat) * c.pause
}

// Measure sets the DAC to value and returns repeat frequency offsets in read
// order. The DAC is written exactly once; each read is preceded by the
// settling pause. The bus must be open. Any bus error aborts the measurement
// and no readings are returned.
func (c *Controller) Measure(value uint32) ([]float64, error) {
	word, err := calibration.EncodeDAC(c.channel, value)
	if err != nil {
		return nil, err
	}

	if err := c.bus.Write(calibration.RegDACControl, word); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to set %s to %d", c.channel, value)
	}

	ppm := make([]float64, 0, c.repeat)
	for i := range c.repeat {
		c.sleep(c.pause)

		raw, err := c.bus.Read(c.mode.Register)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read %s counter (sample %d of %d at %d)", c.mode, i+1, c.repeat, value)
		}
		x := c.mode.PPM(raw)
		metrics.RecordSample(value, x)
		logrus.WithFields(logrus.Fields{
			"value":  value,
			"sample": i,
			"raw":    raw,
			"ppm":    x,
		}).Trace("sample")
		ppm = append(ppm, x)
	}

	return ppm, nil
}

// Sweep runs Measure for every value of ladder, in order. The bus is opened
// before the first write and closed on return, whether the sweep succeeded or
// not. The first error aborts the sweep; no partial result is returned.
func (c *Controller) Sweep(ladder calibration.Ladder) (*calibration.SweepResult, error) {
	if err := ladder.Validate(); err != nil {
		return nil, err
	}

	res := &calibration.SweepResult{
		RunID:     uuid.NewString(),
		Channel:   c.channel,
		Mode:      c.mode,
		Clamp:     ladder.Clamp,
		StartedAt: time.Now(),
	}
	log := logrus.WithFields(logrus.Fields{
		"runId":   res.RunID,
		"channel": c.channel,
		"mode":    c.mode,
	})

	if err := c.bus.Open(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open register bus")
	}
	defer func() {
		if err := c.bus.Close(); err != nil {
			log.WithError(err).Warn("failed to close register bus")
		}
	}()

	c.hub.Publish(events.SweepStarted, events.SweepStartedEvent{
		RunID:   res.RunID,
		Channel: int(c.channel),
		Mode:    c.mode.Name,
		Steps:   ladder.Steps,
		Ts:      time.Now().Unix(),
	})
	log.WithFields(logrus.Fields{
		"steps":       ladder.Steps,
		"granularity": ladder.Granularity,
		"clamp":       ladder.Clamp,
		"pause":       c.pause,
		"repeat":      c.repeat,
	}).Info("sweep started")

	for i, v := range ladder.Values() {
		start := time.Now()
		ppm, err := c.Measure(v)
		if err != nil {
			log.WithError(err).WithField("step", i).Error("sweep aborted")
			c.hub.Publish(events.SweepFinished, events.SweepFinishedEvent{
				RunID: res.RunID,
				Steps: i,
				Error: err.Error(),
				Ts:    time.Now().Unix(),
			})
			return nil, err
		}
		metrics.RecordStep(time.Since(start))

		point := calibration.SweepPoint{Value: v, PPM: ppm}
		res.Append(point)
		if c.progress != nil {
			c.progress(i, point)
		}
		c.hub.Publish(events.SweepStep, events.SweepStepEvent{
			RunID: res.RunID,
			Index: i,
			Value: v,
			PPM:   ppm,
			Ts:    time.Now().Unix(),
		})
		log.WithFields(logrus.Fields{
			"step":  i,
			"value": v,
			"ppm":   ppm,
		}).Debug("step done")
	}

	res.FinishedAt = time.Now()
	c.hub.Publish(events.SweepFinished, events.SweepFinishedEvent{
		RunID: res.RunID,
		Steps: ladder.Steps,
		Ts:    time.Now().Unix(),
	})
	log.WithField("elapsed", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)).Info("sweep finished")

	return res, nil
}
