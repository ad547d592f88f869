package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/events"
	"github.com/charlie0129/vcxoscan/pkg/lbus"
	"github.com/charlie0129/vcxoscan/pkg/monitor"
	"github.com/charlie0129/vcxoscan/pkg/simulator"
)

// execute runs the root command with args against a config file in a
// temporary directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	old := configPath
	configPath = filepath.Join(t.TempDir(), "config.json")
	t.Cleanup(func() { configPath = old })

	var out bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func startSimulator(t *testing.T) (host, port string) {
	t.Helper()
	p := simulator.DefaultParams()
	p.Window = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- runSimulator(ctx, "127.0.0.1:0", p, ready) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case addr := <-ready:
		h, p, err := net.SplitHostPort(addr)
		require.NoError(t, err)
		return h, p
	case err := <-done:
		t.Fatalf("simulator failed: %v", err)
	}
	return "", ""
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN UNKNOWN\n", out)
}

func TestScanInvalidDAC(t *testing.T) {
	// Port 9 on loopback is never answered; the error must come first anyway.
	_, err := execute(t, "scan", "--dac", "3", "--ip", "127.0.0.1", "--port", "9")
	assert.ErrorIs(t, err, calibration.ErrInvalidChannel)
}

func TestScanInvalidOutput(t *testing.T) {
	_, err := execute(t, "scan", "--output", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestScanAgainstSimulator(t *testing.T) {
	host, port := startSimulator(t)
	plot := filepath.Join(t.TempDir(), "scan.svg")

	out, err := execute(t, "scan",
		"--ip", host, "--port", port,
		"--pause", "2ms", "--repeat", "3", "--discard", "1",
		"--steps", "3", "--granularity", "40000",
		"--plot", plot,
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5, out)
	assert.Equal(t, "Scanning DAC1 (free-running counter)", lines[0])
	assert.Equal(t, "Design run rate is 0.0 seconds per line, 0 s total", lines[1])

	re := regexp.MustCompile(`^[ \d]{5}  [+-]\d+\.\d{3} [+-]\d+\.\d{3} ppm$`)
	for i, want := range []string{"    0", "40000", "65535"} {
		line := lines[2+i]
		assert.Regexp(t, re, line)
		assert.True(t, strings.HasPrefix(line, want), line)
	}

	fi, err := os.Stat(plot)
	require.NoError(t, err)
	assert.NotZero(t, fi.Size())
}

func TestScanJSON(t *testing.T) {
	host, port := startSimulator(t)

	out, err := execute(t, "scan",
		"--ip", host, "--port", port,
		"--pause", "2ms", "--repeat", "2",
		"--steps", "2", "--granularity", "65535",
		"--dac", "2", "--gps", "-o", "json",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"channel": 2`)
	assert.Contains(t, out, `"name": "gps"`)
	assert.Contains(t, out, `"settled"`)
}

func TestScanTimeout(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()
	_, port, err := net.SplitHostPort(pc.LocalAddr().String())
	require.NoError(t, err)

	_, err = execute(t, "scan", "--ip", "127.0.0.1", "--port", port, "--timeout", "50ms", "--pause", "1ms")
	assert.ErrorIs(t, err, lbus.ErrTimeout)
}

func TestConfigInitAndShow(t *testing.T) {
	old := configPath
	configPath = filepath.Join(t.TempDir(), "nested", "config.json")
	defer func() { configPath = old }()

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewCommand()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "config written to")

	_, err = run("config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run("config", "init", "--force")
	assert.NoError(t, err)

	t.Setenv("VCXO_IP", "10.1.2.3")
	out, err = run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"ip": "10.1.2.3"`)
	assert.Contains(t, out, `"steps": 17`)
}

func TestStatus(t *testing.T) {
	hub := events.NewEventHub()
	m := monitor.New("127.0.0.1:0", hub)
	require.NoError(t, m.Start())
	defer func() { _ = m.Shutdown(context.Background()) }()

	hub.Publish(events.SweepStarted, events.SweepStartedEvent{RunID: "r9", Channel: 1, Mode: "free-running", Steps: 17, Ts: time.Now().Unix()})
	hub.Publish(events.SweepStep, events.SweepStepEvent{RunID: "r9", Index: 0, Value: 0, PPM: []float64{-9, -46.8, -46.801}})
	require.Eventually(t, func() bool { return m.Tracker().Status().Step == 1 }, 2*time.Second, 10*time.Millisecond)

	out, err := execute(t, "status", "--monitor", m.Addr())
	require.NoError(t, err)
	assert.Contains(t, out, "Run: r9")
	assert.Contains(t, out, "Progress: 1/17")
	assert.Contains(t, out, "    0  -46.800 -46.801 ppm")
}

func TestStatusWithoutMonitor(t *testing.T) {
	_, err := execute(t, "status")
	assert.ErrorContains(t, err, "no monitor address")
}
