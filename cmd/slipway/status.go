package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/deploy"
	"github.com/slipway-sh/slipway/internal/proxy"
	"github.com/slipway-sh/slipway/internal/remote"
)

var statusCmd = &cobra.Command{
	Use:   "status <environment>",
	Short: "Show the live backend and release for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		_, env, err := loadEnvironment(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		proxyClient, err := remote.Dial(ctx, sshEndpoint(env.Proxy))
		if err != nil {
			return err
		}
		defer proxyClient.Close()

		generator := proxy.NewGenerator(proxyClient, env)
		backend, found, err := generator.CurrentBackend(ctx)
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("%s: no deployment found\n", env.Name)
			return nil
		}
		fmt.Printf("environment: %s\ndomain:      %s\nbackend:     %s\n", env.Name, env.Domain, backend)

		manifest, err := deploy.ReadManifest(ctx, proxyClient, env)
		if err == nil && manifest != nil {
			fmt.Printf("release:     %s\ndeployed at: %s\n", manifest.ReleaseID, manifest.DeployedAt.Format("2006-01-02 15:04:05 MST"))
			if manifest.Image != "" {
				fmt.Printf("image:       %s\n", manifest.Image)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
