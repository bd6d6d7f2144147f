package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/deploy"
	"github.com/slipway-sh/slipway/internal/history"
	"github.com/slipway-sh/slipway/internal/proxy"
	"github.com/slipway-sh/slipway/internal/remote"
	"github.com/slipway-sh/slipway/internal/runtime"
)

var (
	dryRun    bool
	forceLock bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy <environment>",
	Short: "Run one full release for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, env, err := loadEnvironment(args[0])
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

		if dryRun {
			return runDryRun(ctx, proxyClient, generator, env)
		}

		deps := deploy.Deps{
			ProxyHost: proxyClient,
			Proxy:     generator,
		}

		if env.Mode == config.ModeContainer {
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

			deps.WorkloadHost = workloadClient
			deps.Runtime = rt
		}

		if cfg.History.Path != "" {
			recorder, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			deps.Recorder = recorder
		}

		var opts []deploy.Option
		if forceLock {
			opts = append(opts, deploy.WithForceLock())
		}

		orch := deploy.NewOrchestrator(env, deps, opts...)
		if err := orch.Deploy(ctx); err != nil {
			log.Error().Err(err).Str("run", orch.RunID()).Msg("deploy failed")
			return err
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().BoolVar(&dryRun, "dry-run", false, "render configuration without touching remote state")
	deployCmd.Flags().BoolVar(&forceLock, "force-lock", false, "clear a stale deploy lock before starting")
	rootCmd.AddCommand(deployCmd)
}

// runDryRun renders the proxy documents against the currently live backend
// (or a placeholder on a first deploy) and prints them, changing nothing.
func runDryRun(ctx context.Context, proxyClient *remote.Client, generator *proxy.Generator, env *config.Environment) error {
	backend, found, err := generator.CurrentBackend(ctx)
	if err != nil {
		return err
	}
	if !found {
		if env.Mode == config.ModeStaticRelease {
			backend = env.Static.DeployRoot + "/current"
		} else {
			backend = "127.0.0.1:0"
		}
		log.Warn().Msg("no current deployment found; rendering with a placeholder backend")
	}

	docs, err := generator.Render(backend)
	if err != nil {
		return err
	}
	if docs.Upstream != "" {
		fmt.Printf("# %s\n%s\n", env.ServiceName()+".upstream.conf", docs.Upstream)
	}
	fmt.Printf("# %s\n%s", env.ServiceName()+".conf", docs.Site)
	return nil
}

func sshEndpoint(s config.ServerEndpoint) remote.Endpoint {
	return remote.Endpoint{
		Host:         s.Host,
		Port:         s.Port,
		User:         s.User,
		IdentityFile: s.IdentityFile,
	}
}
