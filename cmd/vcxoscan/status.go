package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/vcxoscan/pkg/calibration"
	"github.com/charlie0129/vcxoscan/pkg/client"
	"github.com/charlie0129/vcxoscan/pkg/config"
	"github.com/charlie0129/vcxoscan/pkg/report"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Show the progress of a scan started with --monitor",
		Long: `Show the progress of a scan started with --monitor.

The monitor address is taken from --monitor, or from the config file and
VCXO_MONITOR otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			addr := conf.MonitorAddr()
			if addr == "" {
				return fmt.Errorf("no monitor address, use --monitor")
			}

			api := client.NewClient(addr)
			st, err := api.GetStatus()
			if err != nil {
				return err
			}
			res, err := api.GetResult()
			if err != nil {
				return err
			}

			cmd.Println(bold("Sweep status:"))
			if st.RunID == "" {
				cmd.Println("  No sweep has started yet.")
				return nil
			}
			cmd.Printf("  Run: %s\n", st.RunID)
			cmd.Printf("  Phase: %s\n", phase2Text(st.Phase))
			cmd.Printf("  Channel: %s\n", bold("%s", st.Channel))
			cmd.Printf("  Counter: %s\n", bold("%s", st.Mode))
			cmd.Printf("  Progress: %s\n", bold("%d/%d", st.Step, st.Steps))
			if st.Step > 0 {
				cmd.Printf("  Last value: %s\n", bold("%d", st.LastValue))
			}
			cmd.Printf("  Running for: %s\n", time.Since(st.StartedAt).Round(time.Second))
			if st.Message != "" {
				cmd.Printf("  Error: %s\n", color.RedString(st.Message))
			}

			if len(res.Points) > 0 {
				cmd.Println()
				cmd.Println(bold("Points so far:"))
				for _, p := range res.Points {
					cmd.Println("  " + report.Line(p, conf.Discard()))
				}
			}
			return nil
		},
	}

	cmd.Flags().String(config.KeyMonitor, "", "monitor address of the running scan")
	cmd.Flags().Int(config.KeyDiscard, 1, "leading readings per step left out")

	return cmd
}

func phase2Text(p calibration.Phase) string {
	switch p {
	case calibration.PhaseSweeping:
		return color.New(color.Bold, color.FgYellow).Sprint(p)
	case calibration.PhaseDone:
		return color.New(color.Bold, color.FgGreen).Sprint(p)
	case calibration.PhaseError:
		return color.New(color.Bold, color.FgRed).Sprint(p)
	}
	return bold("%s", p)
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
