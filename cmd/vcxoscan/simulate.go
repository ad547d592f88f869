package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/vcxoscan/pkg/lbus"
	"github.com/charlie0129/vcxoscan/pkg/simulator"
)

func NewSimulateCommand() *cobra.Command {
	var (
		listen string
		p      = simulator.DefaultParams()
	)

	cmd := &cobra.Command{
		Use:     "simulate",
		GroupID: gAdvanced,
		Short:   "Run a software VCXO behind an lbus UDP server",
		Long: `Run a software VCXO behind an lbus UDP server.

The simulated device answers DAC writes on the DAC control register and
serves both frequency counters, averaged over the same counting window as
the gateware, so 'vcxoscan scan' can be exercised without hardware.`,
		Example: `  vcxoscan simulate --listen 127.0.0.1:8803 &
  vcxoscan scan --ip 127.0.0.1 --port 8803`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runSimulator(ctx, listen, p, nil)
		},
	}

	f := cmd.Flags()
	f.StringVar(&listen, "listen", "127.0.0.1:803", "UDP address to serve lbus on")
	f.Float64Var(&p.CenterPPM, "center-ppm", p.CenterPPM, "offset with both DACs at mid-scale")
	f.Float64Var(&p.PullPPM, "pull-ppm", p.PullPPM, "full-range tuning span of DAC1")
	f.Float64Var(&p.FinePullPPM, "fine-pull-ppm", p.FinePullPPM, "full-range tuning span of DAC2")
	f.Float64Var(&p.ReferencePPM, "reference-ppm", p.ReferencePPM, "error of the local reference seen by the free-running counter")
	f.Float64Var(&p.NoisePPM, "noise-ppm", p.NoisePPM, "standard deviation of the measurement noise")
	f.Uint64Var(&p.Seed, "seed", p.Seed, "noise seed")
	f.DurationVar(&p.Window, "window", p.Window, "counter integration window")

	return cmd
}

// runSimulator serves a simulated VCXO on listen until ctx is done. ready, if
// not nil, receives the bound address once the socket is open.
func runSimulator(ctx context.Context, listen string, p simulator.Params, ready chan<- string) error {
	srv := &lbus.Server{
		Addr:    listen,
		Handler: simulator.New(p, time.Now),
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"centerPPM":    p.CenterPPM,
		"pullPPM":      p.PullPPM,
		"finePullPPM":  p.FinePullPPM,
		"referencePPM": p.ReferencePPM,
		"noisePPM":     p.NoisePPM,
		"seed":         p.Seed,
		"window":       p.Window,
	}).Info("simulated VCXO ready")
	if ready != nil {
		ready <- srv.LocalAddr().String()
	}

	return srv.Serve(ctx)
}
