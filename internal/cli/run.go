package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paintbench/paintbench/internal/config"
	"github.com/paintbench/paintbench/internal/runner"
)

var (
	flagRuns   int
	flagOut    string
	flagRoot   string
	flagHeaded bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute the benchmark suite from a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = "paintbench.yaml"
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if len(cfg.Tests) == 0 {
				return fmt.Errorf("config %s defines no test cases", path)
			}
			if flagOut != "" {
				cfg.OutputDir = flagOut
			}
			if flagRoot != "" {
				cfg.Root = flagRoot
			}

			r := runner.New(cfg, cfg.ResolveRuns(flagRuns), !flagHeaded)
			return r.Run()
		},
	}
)

func init() {
	runCmd.Flags().IntVar(&flagRuns, "runs", 0, "runs per (engine, test) pair (overrides config and "+config.RunsEnvVar+")")
	runCmd.Flags().StringVar(&flagOut, "out", "", "output directory for run artifacts (overrides config)")
	runCmd.Flags().StringVar(&flagRoot, "root", "", "content root served to the engines (overrides config)")
	runCmd.Flags().BoolVar(&flagHeaded, "headed", false, "run browsers with a visible window")
	rootCmd.AddCommand(runCmd)
}
