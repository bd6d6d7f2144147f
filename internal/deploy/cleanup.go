package deploy

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type cleanupTask struct {
	name string
	fn   func(context.Context) error
}

// cleanupPool runs post-switch best-effort work (drain, prune) on
// supervised workers. Failures flow through an error channel to a logging
// supervisor, so they stay observable without blocking the deploy or
// changing its outcome.
type cleanupPool struct {
	tasks      chan cleanupTask
	errs       chan error
	workers    *errgroup.Group
	supervisor sync.WaitGroup
}

func newCleanupPool(ctx context.Context, workers int) *cleanupPool {
	p := &cleanupPool{
		tasks: make(chan cleanupTask, 8),
		errs:  make(chan error, 8),
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			for task := range p.tasks {
				if err := task.fn(ctx); err != nil {
					p.errs <- err
				}
			}
			return nil
		})
	}
	p.workers = eg

	p.supervisor.Add(1)
	go func() {
		defer p.supervisor.Done()
		for err := range p.errs {
			log.Warn().Err(err).Msg("cleanup task failed")
		}
	}()

	return p
}

// Submit hands a fire-and-forget task to the pool.
func (p *cleanupPool) Submit(name string, fn func(context.Context) error) {
	p.tasks <- cleanupTask{name: name, fn: fn}
}

// Close waits for all submitted tasks to finish and their failures to be
// logged. Called before process exit so no cleanup outcome is silently
// lost.
func (p *cleanupPool) Close() {
	close(p.tasks)
	_ = p.workers.Wait()
	close(p.errs)
	p.supervisor.Wait()
}
