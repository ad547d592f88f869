package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/lbus"
)

// Keys double as flag names and, upper-cased with the VCXO_ prefix, as
// environment variable names.
const (
	KeyIP          = "ip"
	KeyPort        = "port"
	KeyTimeout     = "timeout"
	KeyDAC         = "dac"
	KeyGPS         = "gps"
	KeyPause       = "pause"
	KeyRepeat      = "repeat"
	KeyDiscard     = "discard"
	KeySteps       = "steps"
	KeyGranularity = "granularity"
	KeyClamp       = "clamp"
	KeyPlot        = "plot"
	KeyOutput      = "output"
	KeyMonitor     = "monitor"

	envPrefix = "VCXO"
)

var defaults = map[string]any{
	KeyIP:          "192.168.19.8",
	KeyPort:        lbus.DefaultPort,
	KeyTimeout:     lbus.DefaultTimeout.String(),
	KeyDAC:         int(calibration.DAC1),
	KeyGPS:         false,
	KeyPause:       calibration.DefaultPause.String(),
	KeyRepeat:      4,
	KeyDiscard:     1,
	KeySteps:       calibration.DefaultLadder().Steps,
	KeyGranularity: calibration.DefaultLadder().Granularity,
	KeyClamp:       calibration.DefaultLadder().Clamp,
	KeyPlot:        "",
	KeyOutput:      "text",
	KeyMonitor:     "",
}

// Default returns the built-in value of key.
func Default(key string) any {
	return defaults[key]
}

var _ Config = &File{}

// File is a Config read from an optional file, overridden by VCXO_*
// environment variables and by any bound command-line flags.
type File struct {
	v        *viper.Viper
	mu       *sync.RWMutex
	filepath string
}

// NewFile returns a File loaded from configPath. A missing or empty file
// yields the defaults.
func NewFile(configPath string) (*File, error) {
	f := newFile(configPath)
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func newFile(configPath string) *File {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &File{
		v:        v,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// BindFlags makes flags named after config keys take precedence over the
// file and environment when they are set on the command line.
func (f *File) BindFlags(fs *pflag.FlagSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for k := range defaults {
		flag := fs.Lookup(k)
		if flag == nil {
			continue
		}
		if err := f.v.BindPFlag(k, flag); err != nil {
			return pkgerrors.Wrapf(err, "failed to bind flag --%s", k)
		}
	}
	return nil
}

// Path returns the file path backing the config.
func (f *File) Path() string {
	return f.filepath
}

func (f *File) IP() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetString(KeyIP)
}

func (f *File) Port() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetInt(KeyPort)
}

func (f *File) Timeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetDuration(KeyTimeout)
}

func (f *File) DAC() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetInt(KeyDAC)
}

func (f *File) GPS() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetBool(KeyGPS)
}

func (f *File) Pause() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetDuration(KeyPause)
}

func (f *File) Repeat() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetInt(KeyRepeat)
}

func (f *File) Discard() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetInt(KeyDiscard)
}

func (f *File) Ladder() calibration.Ladder {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return calibration.Ladder{
		Steps:       f.v.GetInt(KeySteps),
		Granularity: f.v.GetUint32(KeyGranularity),
		Clamp:       f.v.GetUint32(KeyClamp),
	}
}

func (f *File) Plot() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetString(KeyPlot)
}

func (f *File) Output() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetString(KeyOutput)
}

func (f *File) MonitorAddr() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.GetString(KeyMonitor)
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filepath == "" {
		return nil
	}

	st, err := os.Stat(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, keep the defaults.
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to stat file %s", f.filepath)
	}
	if st.Size() == 0 {
		return nil
	}

	f.v.SetConfigFile(f.filepath)
	if filepath.Ext(f.filepath) == "" {
		f.v.SetConfigType("json")
	}
	if err := f.v.ReadInConfig(); err != nil {
		return pkgerrors.Wrapf(err, "failed to read config from file %s", f.filepath)
	}

	return nil
}

func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filepath == "" {
		return pkgerrors.New("config file path is empty")
	}
	if filepath.Ext(f.filepath) == "" {
		f.v.SetConfigType("json")
	}

	if err := f.v.WriteConfigAs(f.filepath); err != nil {
		return pkgerrors.Wrapf(err, "failed to write config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"ip":      f.IP(),
		"port":    f.Port(),
		"timeout": f.Timeout(),
		"dac":     f.DAC(),
		"gps":     f.GPS(),
		"pause":   f.Pause(),
		"repeat":  f.Repeat(),
		"discard": f.Discard(),
		"ladder":  f.Ladder(),
		"plot":    f.Plot(),
		"output":  f.Output(),
		"monitor": f.MonitorAddr(),
	}
}

// AllSettings returns every effective setting, keyed by name.
func (f *File) AllSettings() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v.AllSettings()
}
