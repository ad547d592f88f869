package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
)

// Config is the effective configuration of a scan.
type Config interface {
	// IP and Port locate the lbus gateware.
	IP() string
	Port() int
	Timeout() time.Duration

	DAC() int
	GPS() bool
	Pause() time.Duration
	Repeat() int
	// Discard is how many leading readings per step are treated as warm-up.
	Discard() int
	Ladder() calibration.Ladder

	Plot() string
	Output() string
	MonitorAddr() string

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
