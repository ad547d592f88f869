package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
)

func TestDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "192.168.19.8", f.IP())
	assert.Equal(t, 803, f.Port())
	assert.Equal(t, 1020*time.Millisecond, f.Timeout())
	assert.Equal(t, 1, f.DAC())
	assert.False(t, f.GPS())
	assert.Equal(t, 1100*time.Millisecond, f.Pause())
	assert.Equal(t, 4, f.Repeat())
	assert.Equal(t, 1, f.Discard())
	assert.Equal(t, calibration.DefaultLadder(), f.Ladder())
	assert.Equal(t, "", f.Plot())
	assert.Equal(t, "text", f.Output())
	assert.Equal(t, "", f.MonitorAddr())
	assert.Len(t, f.LogrusFields(), 12)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcxoscan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ip": "10.0.0.7", "dac": 2, "gps": true, "pause": "1.5s", "steps": 9}`), 0644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", f.IP())
	assert.Equal(t, 2, f.DAC())
	assert.True(t, f.GPS())
	assert.Equal(t, 1500*time.Millisecond, f.Pause())
	assert.Equal(t, 9, f.Ladder().Steps)
	// Untouched keys keep their defaults.
	assert.Equal(t, 803, f.Port())
}

func TestLoadFileWithoutExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcxoscan")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9803}`), 0644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9803, f.Port())
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcxoscan.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Repeat())
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcxoscan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ip": `), 0644))

	_, err := NewFile(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcxoscan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9000, "repeat": 6}`), 0644))
	t.Setenv("VCXO_PORT", "9100")

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, f.Port())
	assert.Equal(t, 6, f.Repeat())
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("VCXO_DAC", "2")
	t.Setenv("VCXO_PAUSE", "2s")

	fs := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	fs.Int(KeyDAC, 1, "")
	fs.Duration(KeyPause, calibration.DefaultPause, "")
	fs.Uint32(KeyGranularity, 4096, "")
	fs.Bool("unrelated", false, "")
	require.NoError(t, fs.Parse([]string{"--dac=1", "--granularity=8192"}))

	f, err := NewFile("")
	require.NoError(t, err)
	require.NoError(t, f.BindFlags(fs))

	assert.Equal(t, 1, f.DAC())
	assert.Equal(t, 2*time.Second, f.Pause(), "unset flag must not shadow the environment")
	assert.Equal(t, uint32(8192), f.Ladder().Granularity)
	assert.NotContains(t, f.AllSettings(), "unrelated")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcxoscan.yaml")

	f, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Save())

	g, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, f.Pause(), g.Pause())
	assert.Equal(t, f.Ladder(), g.Ladder())
	assert.Equal(t, f.IP(), g.IP())
}

func TestSaveWithoutPath(t *testing.T) {
	f, err := NewFile("")
	require.NoError(t, err)
	assert.Error(t, f.Save())
}
