package cli

import (
	"github.com/spf13/cobra"

	"github.com/mev-shield/tx-protection-engine/internal/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Start terminal-based monitoring interface",
	Long: `Launch an interactive terminal UI showing live engine activity: threat
counters, decision breakdowns, gas average and recent alerts. Press 'r' to
refresh manually, 'q' to quit.`,
	RunE: runMonitor,
}

var refreshRate int

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntVarP(&refreshRate, "refresh", "r", 1000, "refresh rate in milliseconds")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	config := tui.Config{
		RefreshRate: refreshRate,
	}
	return tui.StartMonitor(config)
}
