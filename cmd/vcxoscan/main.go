package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/client"
	"github.com/charlie0129/vcxoscan/pkg/lbus"
)

var (
	logLevel   = "info"
	configPath = defaultConfigPath()
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vcxoscan.json"
	}
	return filepath.Join(dir, "vcxoscan", "config.json")
}

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, calibration.ErrInvalidChannel):
		fmt.Fprintln(os.Stderr, "\nInvalid DAC choice")
		fmt.Fprintln(os.Stderr, "  - Use --dac 1 or --dac 2")
	case errors.Is(err, lbus.ErrTimeout):
		fmt.Fprintln(os.Stderr, "\nError: the device did not answer in time")
		fmt.Fprintln(os.Stderr, "  - Is it powered and reachable at the address given by --ip and --port?")
		fmt.Fprintln(os.Stderr, "  - Use 'vcxoscan simulate' to run against a software device")
	case errors.Is(err, client.ErrMonitorNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: no scan monitor is listening on that address")
		fmt.Fprintln(os.Stderr, "  - Start the scan with --monitor <addr>")
	case errors.Is(err, lbus.ErrMalformedReply):
		fmt.Fprintln(os.Stderr, "\nError: the device sent a reply that does not match the request")
		fmt.Fprintln(os.Stderr, "  - Is another lbus client talking to the same device?")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vcxoscan",
		Short: "vcxoscan characterizes a DAC-tuned VCXO over the lbus register bus",
		Long: `vcxoscan characterizes a DAC-tuned VCXO over the lbus register bus.

It steps the selected DAC through a ladder of control values and, after
each step, reads the frequency counter gateware to record the oscillator
offset in ppm.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewScanCommand(),
		NewStatusCommand(),
		NewSimulateCommand(),
		NewConfigCommand(),
		NewVersionCommand(),
	)

	return cmd
}
