package deploy

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/remote"
)

// environmentLock serializes deploys of one environment. The lock lives on
// the proxy host as a directory created with mkdir, which is atomic: two
// concurrent deploys race on the same mkdir and exactly one wins.
type environmentLock struct {
	host  remote.Executor
	label string
	dir   string
	runID string
	held  bool
}

func newEnvironmentLock(host remote.Executor, env *config.Environment, runID string) *environmentLock {
	return &environmentLock{
		host:  host,
		label: env.ServiceName(),
		dir:   path.Join(env.Tuning.ConfigDir, ".slipway", "locks", env.ServiceName()),
		runID: runID,
	}
}

// Acquire takes the lock or fails with the holder's metadata. force clears
// a stale lock first.
func (l *environmentLock) Acquire(ctx context.Context, force bool) error {
	if force {
		if _, err := l.host.Exec(ctx, fmt.Sprintf("rm -rf %s", l.dir)); err != nil {
			return err
		}
		log.Warn().Str("environment", l.label).Msg("cleared existing deploy lock")
	}

	mkdir := fmt.Sprintf("mkdir -p %s && mkdir %s", path.Dir(l.dir), l.dir)
	result, err := l.host.Exec(ctx, mkdir)
	if err != nil {
		return err
	}
	if !result.Ok() {
		owner, _ := l.host.Exec(ctx, fmt.Sprintf("cat %s", path.Join(l.dir, "owner")))
		return fmt.Errorf("deploy of %s already in progress (held by %s); use --force-lock to clear a stale lock",
			l.label, owner.Out())
	}

	meta := fmt.Sprintf("echo 'run=%s started=%s' > %s",
		l.runID, time.Now().UTC().Format(time.RFC3339), path.Join(l.dir, "owner"))
	if _, err := l.host.Exec(ctx, meta); err != nil {
		return err
	}
	l.held = true
	return nil
}

// Release drops the lock. Failures are logged: a leftover lock is an
// operator inconvenience, not a correctness issue for the finished run.
func (l *environmentLock) Release(ctx context.Context) {
	if !l.held {
		return
	}
	result, err := l.host.Exec(ctx, fmt.Sprintf("rm -rf %s", l.dir))
	if err != nil || !result.Ok() {
		log.Warn().Str("environment", l.label).Msg("failed to release deploy lock")
		return
	}
	l.held = false
}
