package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Zero-downtime deploys onto a proxy/workload host pair",
	Long: `Slipway orchestrates zero-downtime releases of a network service onto a
pair of remote hosts: a traffic-facing reverse-proxy host and a workload
host running containers, or atomic release switching for static file
bundles.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./slipway.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadEnvironment resolves the descriptor for one environment, failing
// before anything remote happens.
func loadEnvironment(name string) (*config.Config, *config.Environment, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	env, err := cfg.Environment(name)
	if err != nil {
		return nil, nil, err
	}
	return cfg, env, nil
}
