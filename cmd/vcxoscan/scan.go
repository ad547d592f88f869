package main

import (
	"context"
	"fmt"
	"io"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/config"
	"github.com/charlie0129/vcxoscan/pkg/controller"
	"github.com/charlie0129/vcxoscan/pkg/events"
	"github.com/charlie0129/vcxoscan/pkg/lbus"
	"github.com/charlie0129/vcxoscan/pkg/monitor"
	"github.com/charlie0129/vcxoscan/pkg/report"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan",
		GroupID: gBasic,
		Short:   "Sweep a DAC and measure the VCXO frequency offset",
		Long: `Sweep a DAC and measure the VCXO frequency offset.

The selected DAC is stepped through min(i*granularity, clamp) for i in
[0, steps). At every step the DAC is written once, then the frequency
counter is read --repeat times, each read preceded by --pause to let the
counting window settle. The first --discard readings of each step are
not printed because they may straddle the DAC transition.`,
		Example: `  vcxoscan scan --ip 192.168.19.8 --dac 1 --plot scan.png
  vcxoscan scan --gps --dac 2 --output json > scan.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logrus.WithFields(conf.LogrusFields()).Debug("config loaded")

			return runScan(cmd.Context(), cmd.OutOrStdout(), conf, nil)
		},
	}

	d := calibration.DefaultLadder()
	f := cmd.Flags()
	f.String(config.KeyIP, config.Default(config.KeyIP).(string), "IP address of the lbus device")
	f.Int(config.KeyPort, lbus.DefaultPort, "UDP port of the lbus device")
	f.Duration(config.KeyTimeout, lbus.DefaultTimeout, "reply timeout of one bus exchange")
	f.Int(config.KeyDAC, int(calibration.DAC1), "DAC to sweep (1 or 2)")
	f.Bool(config.KeyGPS, false, "read the GPS-disciplined counter instead of the free-running one")
	f.Duration(config.KeyPause, calibration.DefaultPause, "settling wait before every read")
	f.Int(config.KeyRepeat, 4, "counter reads per step")
	f.Int(config.KeyDiscard, 1, "leading readings per step left out of the report")
	f.Int(config.KeySteps, d.Steps, "number of ladder steps")
	f.Uint32(config.KeyGranularity, d.Granularity, "ladder step size")
	f.Uint32(config.KeyClamp, d.Clamp, "highest control value of the ladder")
	f.String(config.KeyPlot, "", "render a plot to this file (png, svg, pdf)")
	f.StringP(config.KeyOutput, "o", outputText, "output format (text, json)")
	f.String(config.KeyMonitor, "", "serve a read-only HTTP monitor on this address, e.g. 127.0.0.1:8080")

	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.File, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := conf.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return conf, nil
}

// runScan performs one sweep described by conf and reports it to out. bus
// overrides the UDP bus derived from conf when not nil.
func runScan(ctx context.Context, out io.Writer, conf config.Config, bus *lbus.Bus) error {
	output := conf.Output()
	if output != outputText && output != outputJSON {
		return fmt.Errorf("unknown output format %q", output)
	}
	discard := conf.Discard()
	if discard < 0 {
		return fmt.Errorf("discard must not be negative, got %d", discard)
	}
	ladder := conf.Ladder()
	if err := ladder.Validate(); err != nil {
		return err
	}

	if bus == nil {
		bus = lbus.New(conf.IP(), conf.Port(), conf.Timeout())
	}

	text := report.NewText(out, discard)
	var hub *events.EventHub
	if conf.MonitorAddr() != "" {
		hub = events.NewEventHub()
	}

	ctrl, err := controller.New(bus, controller.Options{
		Channel: calibration.Channel(conf.DAC()),
		Mode:    calibration.ModeFor(conf.GPS()),
		Pause:   conf.Pause(),
		Repeat:  conf.Repeat(),
		Events:  hub,
		Progress: func(_ int, p calibration.SweepPoint) {
			if output != outputText {
				return
			}
			if err := text.Point(p); err != nil {
				logrus.WithError(err).Warn("failed to write report line")
			}
		},
	})
	if err != nil {
		return err
	}

	if hub != nil {
		mon := monitor.New(conf.MonitorAddr(), hub)
		if err := mon.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := mon.Shutdown(ctx); err != nil {
				logrus.WithError(err).Warn("failed to shut down monitor")
			}
		}()
	}

	if output == outputText {
		if err := text.Header(ctrl.Channel(), ctrl.Mode(), ctrl.StepDuration(), ladder.Steps); err != nil {
			return err
		}
	} else {
		logrus.Info(report.Banner(ctrl.StepDuration(), ladder.Steps))
	}

	res, err := ctrl.Sweep(ladder)
	if err != nil {
		return err
	}

	if output == outputJSON {
		if err := report.JSON(out, res, discard); err != nil {
			return pkgerrors.Wrap(err, "failed to write result")
		}
	}

	if plot := conf.Plot(); plot != "" {
		if err := report.SavePlot(res, discard, plot); err != nil {
			return err
		}
		logrus.Infof("plot saved to %s", plot)
	}

	return nil
}
