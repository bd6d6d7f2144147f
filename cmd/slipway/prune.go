package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/deploy"
	"github.com/slipway-sh/slipway/internal/remote"
)

var pruneCmd = &cobra.Command{
	Use:   "prune <environment>",
	Short: "Remove old static releases beyond the retention count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		_, env, err := loadEnvironment(args[0])
		if err != nil {
			return err
		}
		if env.Mode != config.ModeStaticRelease {
			return fmt.Errorf("environment %s is not a static-release environment", env.Name)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		proxyClient, err := remote.Dial(ctx, sshEndpoint(env.Proxy))
		if err != nil {
			return err
		}
		defer proxyClient.Close()

		return deploy.PruneStatic(ctx, proxyClient, env)
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
