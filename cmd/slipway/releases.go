package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/history"
	"github.com/slipway-sh/slipway/internal/remote"
	"github.com/slipway-sh/slipway/internal/runtime"
)

var showHistory bool

var releasesCmd = &cobra.Command{
	Use:   "releases <environment>",
	Short: "List releases for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, env, err := loadEnvironment(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		if showHistory {
			if cfg.History.Path == "" {
				return fmt.Errorf("history.path is not configured")
			}
			recorder, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			records, err := recorder.List(env.Name, 20)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s  %-9s  %s  %s\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.ReleaseID, r.Error)
			}
			return nil
		}

		switch env.Mode {
		case config.ModeContainer:
			return listContainerReleases(ctx, env)
		case config.ModeStaticRelease:
			return listStaticReleases(ctx, env)
		}
		return nil
	},
}

func init() {
	releasesCmd.Flags().BoolVar(&showHistory, "history", false, "list recorded deploy history instead of remote state")
	rootCmd.AddCommand(releasesCmd)
}

func listContainerReleases(ctx context.Context, env *config.Environment) error {
	workloadClient, err := remote.Dial(ctx, sshEndpoint(*env.Workload))
	if err != nil {
		return err
	}
	defer workloadClient.Close()

	rt, err := runtime.NewClient(func(context.Context) (net.Conn, error) {
		return workloadClient.DialSocket("/var/run/docker.sock")
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	instances, err := rt.ListEnvironment(ctx, env.Product, env.Name)
	if err != nil {
		return err
	}
	for _, instance := range instances {
		fmt.Printf("%s  %s\n", instance.Created.Format("2006-01-02 15:04:05"), instance.ReleaseID)
	}
	return nil
}

func listStaticReleases(ctx context.Context, env *config.Environment) error {
	proxyClient, err := remote.Dial(ctx, sshEndpoint(env.Proxy))
	if err != nil {
		return err
	}
	defer proxyClient.Close()

	batch := proxyClient.NewBatch().
		Add("list", fmt.Sprintf("ls -1t %s", path.Join(env.Static.DeployRoot, "releases"))).
		Add("current", fmt.Sprintf("readlink %s", path.Join(env.Static.DeployRoot, "current")))
	if err := batch.Run(ctx); err != nil {
		return err
	}

	current := path.Base(batch.Result("current").Out())
	listing := batch.Result("list")
	if !listing.Ok() {
		return fmt.Errorf("listing releases: %s", listing.Diagnostic())
	}
	for _, line := range listing.Lines() {
		marker := " "
		if line == current {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, line)
	}
	return nil
}
