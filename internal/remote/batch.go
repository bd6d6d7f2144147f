package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Executor runs one command on one host. *Client is the production
// implementation; tests substitute fakes.
type Executor interface {
	Exec(ctx context.Context, command string) (Result, error)
}

// Result is the outcome of a single remote command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Ok reports whether the command exited zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0
}

// Out returns stdout with surrounding whitespace trimmed.
func (r Result) Out() string {
	return strings.TrimSpace(r.Stdout)
}

// Lines splits stdout into trimmed, non-empty lines, for commands whose
// output is a listing.
func (r Result) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Diagnostic returns the most useful text for an error report: stderr when
// present, stdout otherwise.
func (r Result) Diagnostic() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return r.Out()
}

type namedCommand struct {
	name    string
	command string
}

// Batch is an ordered set of named commands bound to one host. Commands run
// in submission order; a failing command does not stop the ones after it.
// Results are addressable by name only after Run has returned.
type Batch struct {
	exec     Executor
	host     string
	commands []namedCommand
	results  map[string]Result
	ran      bool
}

// NewBatch creates a batch executing against exec. The host label is used
// only for logging.
func NewBatch(host string, exec Executor) *Batch {
	return &Batch{
		exec:    exec,
		host:    host,
		results: make(map[string]Result),
	}
}

// NewBatch creates a batch bound to this client's host.
func (c *Client) NewBatch() *Batch {
	return NewBatch(c.endpoint.Host, c)
}

// Add appends a named command. Reusing a name is a programming error.
func (b *Batch) Add(name, command string) *Batch {
	for _, nc := range b.commands {
		if nc.name == name {
			panic(fmt.Sprintf("remote: duplicate command name %q in batch for %s", name, b.host))
		}
	}
	b.commands = append(b.commands, namedCommand{name: name, command: command})
	return b
}

// Run executes every command in order. Per-command failures are recorded,
// not returned; only transport-level errors abort the batch.
func (b *Batch) Run(ctx context.Context) error {
	if b.ran {
		panic(fmt.Sprintf("remote: batch for %s ran twice", b.host))
	}
	b.ran = true

	for _, nc := range b.commands {
		result, err := b.exec.Exec(ctx, nc.command)
		if err != nil {
			return fmt.Errorf("batch %s/%s: %w", b.host, nc.name, err)
		}
		if !result.Ok() {
			log.Debug().
				Str("host", b.host).
				Str("command", nc.name).
				Int("exit", result.ExitCode).
				Msg("remote command failed")
		}
		b.results[nc.name] = result
	}
	return nil
}

// Result returns the outcome for a named command. Calling it before Run, or
// with a name that was never added, is a programming error and panics.
func (b *Batch) Result(name string) Result {
	if !b.ran {
		panic(fmt.Sprintf("remote: result %q requested before batch for %s ran", name, b.host))
	}
	result, ok := b.results[name]
	if !ok {
		panic(fmt.Sprintf("remote: no command named %q in batch for %s", name, b.host))
	}
	return result
}

// Failed lists the names of commands that exited non-zero, in submission
// order.
func (b *Batch) Failed() []string {
	var failed []string
	for _, nc := range b.commands {
		if r, ok := b.results[nc.name]; ok && !r.Ok() {
			failed = append(failed, nc.name)
		}
	}
	return failed
}

// Group joins batches dispatched concurrently against independent hosts.
type Group struct {
	eg *errgroup.Group
}

// Go starts every batch without waiting. No ordering is guaranteed across
// batches until Wait returns.
func Go(ctx context.Context, batches ...*Batch) *Group {
	eg, ctx := errgroup.WithContext(ctx)
	for _, b := range batches {
		b := b
		eg.Go(func() error {
			return b.Run(ctx)
		})
	}
	return &Group{eg: eg}
}

// Wait blocks until every batch has completed and returns the first
// transport error, if any. Batch results become addressable afterwards.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
