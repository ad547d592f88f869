package controller

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/events"
	"github.com/charlie0129/vcxoscan/pkg/lbus"
)

// fakeConn records bus traffic and settling waits into one ordered trace.
type fakeConn struct {
	trace   []string
	counter map[uint32]uint32
	// failAt makes the n-th exchange (1-based) fail; 0 never fails.
	failAt    int
	exchanges int
	opened    int
	closed    int
}

func newFakeConn(counter map[uint32]uint32) *fakeConn {
	return &fakeConn{counter: counter}
}

func (f *fakeConn) Open() error  { f.opened++; f.trace = append(f.trace, "open"); return nil }
func (f *fakeConn) Close() error { f.closed++; f.trace = append(f.trace, "close"); return nil }

func (f *fakeConn) Exchange(addrs []uint32, values []uint32) ([]uint32, error) {
	f.exchanges++
	if f.failAt > 0 && f.exchanges == f.failAt {
		f.trace = append(f.trace, "fail")
		return nil, lbus.ErrTimeout
	}
	if values != nil {
		f.trace = append(f.trace, fmt.Sprintf("write %d=%#x", addrs[0], values[0]))
		return values, nil
	}
	f.trace = append(f.trace, fmt.Sprintf("read %d", addrs[0]))
	return []uint32{f.counter[addrs[0]]}, nil
}

func (f *fakeConn) sleep(d time.Duration) {
	f.trace = append(f.trace, "sleep "+d.String())
}

func (f *fakeConn) count(entry string) int {
	n := 0
	for _, e := range f.trace {
		if e == entry {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T, f *fakeConn, opts Options) *Controller {
	t.Helper()
	opts.Sleep = f.sleep
	c, err := New(lbus.NewWithConnection(f), opts)
	require.NoError(t, err)
	return c
}

func TestMeasureNominalFreeRunning(t *testing.T) {
	f := newFakeConn(map[uint32]uint32{calibration.RegFreqCount: 134217728})
	c := newTestController(t, f, Options{Channel: calibration.DAC1, Repeat: 4, Mode: calibration.FreeRunning})

	ppm, err := c.Measure(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.0, 0.0, 0.0, 0.0}, ppm)
}

func TestMeasureOrdering(t *testing.T) {
	f := newFakeConn(map[uint32]uint32{calibration.RegFreqCount: 1 << 27})
	c := newTestController(t, f, Options{Channel: calibration.DAC1, Repeat: 3})

	_, err := c.Measure(4096)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"write 327689=0x11000",
		"sleep 1.1s",
		"read 5",
		"sleep 1.1s",
		"read 5",
		"sleep 1.1s",
		"read 5",
	}, f.trace)
}

func TestMeasureGPS(t *testing.T) {
	f := newFakeConn(map[uint32]uint32{
		calibration.RegGPSCount:  125000250,
		calibration.RegFreqCount: 1,
	})
	c := newTestController(t, f, Options{
		Channel: calibration.DAC2,
		Repeat:  2,
		Mode:    calibration.GPSDisciplined,
		Pause:   2 * time.Second,
	})

	ppm, err := c.Measure(65535)
	require.NoError(t, err)
	require.Len(t, ppm, 2)
	assert.InDelta(t, 2.0, ppm[0], 1e-9)
	assert.InDelta(t, 2.0, ppm[1], 1e-9)
	assert.Equal(t, []string{
		"write 327689=0x2ffff",
		"sleep 2s",
		"read 13",
		"sleep 2s",
		"read 13",
	}, f.trace)
}

func TestMeasureValueOutOfRangeWritesNothing(t *testing.T) {
	f := newFakeConn(nil)
	c := newTestController(t, f, Options{Channel: calibration.DAC2, Repeat: 4})

	_, err := c.Measure(70000)
	require.ErrorIs(t, err, calibration.ErrValueOutOfRange)
	assert.Empty(t, f.trace)
}

func TestNewRejectsInvalidChannel(t *testing.T) {
	for _, ch := range []calibration.Channel{0, 3, -1} {
		f := newFakeConn(nil)
		_, err := New(lbus.NewWithConnection(f), Options{Channel: ch, Repeat: 4, Sleep: f.sleep})
		assert.ErrorIs(t, err, calibration.ErrInvalidChannel, "channel %d", ch)
		assert.Empty(t, f.trace)
	}
}

func TestNewValidatesAndDefaults(t *testing.T) {
	_, err := New(lbus.NewMock(nil), Options{Channel: calibration.DAC1, Repeat: 0})
	assert.ErrorIs(t, err, ErrInvalidRepeat)

	_, err = New(nil, Options{Channel: calibration.DAC1, Repeat: 1})
	assert.Error(t, err)

	c, err := New(lbus.NewMock(nil), Options{Channel: calibration.DAC1, Repeat: 4})
	require.NoError(t, err)
	assert.Equal(t, calibration.FreeRunning, c.Mode())
	assert.Equal(t, calibration.DAC1, c.Channel())
	assert.Equal(t, 4400*time.Millisecond, c.StepDuration())
}

func TestMeasureReadFailure(t *testing.T) {
	f := newFakeConn(nil)
	f.failAt = 3 // write, read, then the second read fails
	c := newTestController(t, f, Options{Channel: calibration.DAC1, Repeat: 4})

	ppm, err := c.Measure(100)
	assert.ErrorIs(t, err, lbus.ErrTimeout)
	assert.Nil(t, ppm)
	assert.Equal(t, 1, f.count("read 5"))
}

func TestMeasureWriteFailure(t *testing.T) {
	f := newFakeConn(nil)
	f.failAt = 1
	c := newTestController(t, f, Options{Channel: calibration.DAC1, Repeat: 4})

	_, err := c.Measure(100)
	assert.ErrorIs(t, err, lbus.ErrTimeout)
	assert.Equal(t, []string{"fail"}, f.trace)
}

func TestSweep(t *testing.T) {
	f := newFakeConn(map[uint32]uint32{calibration.RegFreqCount: 1 << 27})
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	c := newTestController(t, f, Options{Channel: calibration.DAC1, Repeat: 4, Events: hub})

	res, err := c.Sweep(calibration.Ladder{Steps: 3, Granularity: 40000, Clamp: 65535})
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 40000, 65535}, res.Values())
	for _, p := range res.Points {
		assert.Len(t, p.PPM, 4)
	}
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, calibration.DAC1, res.Channel)
	assert.Equal(t, uint32(65535), res.Clamp)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))

	// Scoped acquisition: open first, close last.
	assert.Equal(t, "open", f.trace[0])
	assert.Equal(t, "close", f.trace[len(f.trace)-1])
	assert.Equal(t, 1, f.opened)
	assert.Equal(t, 1, f.closed)

	// One write per step, in ladder order, each before that step's reads.
	var writes []string
	for _, e := range f.trace {
		if len(e) > 5 && e[:5] == "write" {
			writes = append(writes, e)
		}
	}
	assert.Equal(t, []string{"write 327689=0x10000", "write 327689=0x19c40", "write 327689=0x1ffff"}, writes)
	assert.Equal(t, 12, f.count("read 5"))
	assert.Equal(t, 12, f.count("sleep 1.1s"))

	var names []string
	for len(sub) > 0 {
		names = append(names, (<-sub).Name)
	}
	assert.Equal(t, []string{
		events.SweepStarted,
		events.SweepStep, events.SweepStep, events.SweepStep,
		events.SweepFinished,
	}, names)
}

func TestSweepAbortsOnBusError(t *testing.T) {
	f := newFakeConn(map[uint32]uint32{calibration.RegFreqCount: 1 << 27})
	f.failAt = 7 // step 0: 1 write + 4 reads; step 1: write, then first read fails
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	c := newTestController(t, f, Options{Channel: calibration.DAC2, Repeat: 4, Events: hub})

	res, err := c.Sweep(calibration.DefaultLadder())
	assert.ErrorIs(t, err, lbus.ErrTimeout)
	assert.Nil(t, res)
	assert.Equal(t, "close", f.trace[len(f.trace)-1])
	assert.Equal(t, 1, f.closed)
	assert.Equal(t, 7, f.exchanges)

	var last events.Event
	for len(sub) > 0 {
		last = <-sub
	}
	require.Equal(t, events.SweepFinished, last.Name)
	payload, err := events.DecodeAs[events.SweepFinishedEvent](last)
	require.NoError(t, err)
	assert.Equal(t, 1, payload.Steps)
	assert.Contains(t, payload.Error, "timed out")
}

func TestSweepRejectsInvalidLadder(t *testing.T) {
	f := newFakeConn(nil)
	c := newTestController(t, f, Options{Channel: calibration.DAC1, Repeat: 1})

	_, err := c.Sweep(calibration.Ladder{Steps: 0, Granularity: 1, Clamp: 1})
	assert.ErrorIs(t, err, calibration.ErrInvalidLadder)
	assert.Empty(t, f.trace)
}

func TestSweepDefaultLadderWithMock(t *testing.T) {
	bus := lbus.NewMock(map[uint32]uint32{calibration.RegGPSCount: 125000000})
	c, err := New(bus, Options{
		Channel: calibration.DAC1,
		Repeat:  4,
		Mode:    calibration.GPSDisciplined,
		Sleep:   func(time.Duration) {},
	})
	require.NoError(t, err)

	res, err := c.Sweep(calibration.DefaultLadder())
	require.NoError(t, err)
	require.Len(t, res.Points, 17)
	assert.Equal(t, uint32(0), res.Points[0].Value)
	assert.Equal(t, uint32(65535), res.Points[16].Value)
	assert.Equal(t, []float64{0, 0, 0}, res.Points[8].Settled(1))

	mock := bus.Connection().(*lbus.MockConnection)
	assert.False(t, mock.IsOpen())
	assert.Equal(t, uint32(0x1ffff), mock.Get(calibration.RegDACControl))
	assert.Len(t, mock.Journal(), 17*5)
}

func TestSweepProgress(t *testing.T) {
	f := newFakeConn(map[uint32]uint32{calibration.RegFreqCount: 1 << 27})
	var seen []int
	var values []uint32
	c := newTestController(t, f, Options{
		Channel: calibration.DAC1,
		Repeat:  2,
		Progress: func(i int, p calibration.SweepPoint) {
			seen = append(seen, i)
			values = append(values, p.Value)
			assert.Len(t, p.PPM, 2)
		},
	})

	_, err := c.Sweep(calibration.Ladder{Steps: 4, Granularity: 30000, Clamp: 65535})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, seen)
	assert.Equal(t, []uint32{0, 30000, 60000, 65535}, values)
}
