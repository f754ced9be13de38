// Package cli defines the paintbench command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// cfgFile is the config file path from --config; empty means the
	// default ./paintbench.yaml.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "paintbench",
		Short: "Benchmark visual convergence of progressively-encoded images",
		Long: `paintbench measures how quickly progressively-encoded image formats
visually converge when streamed under constrained bandwidth, across
browser engines. It paces byte delivery through its own content server,
samples the rendered region into a timeline, and reduces each timeline
to t85/t95/Visual Index metrics with cross-run aggregation.`,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./paintbench.yaml)")
}
