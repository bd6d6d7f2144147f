package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wI2L/jsondiff"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/proxy"
	"github.com/slipway-sh/slipway/internal/pubsub"
	"github.com/slipway-sh/slipway/internal/registry"
	"github.com/slipway-sh/slipway/internal/remote"
	"github.com/slipway-sh/slipway/internal/runtime"
)

var (
	// ErrHealthTimeout is returned when a new instance never reports
	// healthy within the attempt budget.
	ErrHealthTimeout = errors.New("health check attempts exhausted")
	// ErrConfigInvalid is returned when a rendered proxy document fails
	// the proxy's own validation.
	ErrConfigInvalid = errors.New("proxy configuration validation failed")
)

// hostConn is the slice of remote.Client the orchestrator needs.
type hostConn interface {
	remote.Executor
	Upload(ctx context.Context, content io.Reader, remotePath string, mode os.FileMode) error
	UploadFile(ctx context.Context, localPath, remotePath string) error
}

// runtimeClient is implemented by *runtime.Client; mocked in tests.
type runtimeClient interface {
	Pull(ctx context.Context, imageURI, authHeader string) error
	Start(ctx context.Context, opts runtime.StartOptions) (string, error)
	BoundPort(ctx context.Context, containerID string, internalPort int) (int, error)
	Health(ctx context.Context, containerID string) (runtime.HealthState, error)
	StopWithTimeout(ctx context.Context, containerID string, timeout time.Duration) error
	Remove(ctx context.Context, containerID string) error
	ListEnvironment(ctx context.Context, product, environment string) ([]runtime.Instance, error)
}

// proxyGenerator is implemented by *proxy.Generator; mocked in tests.
type proxyGenerator interface {
	Render(backend string) (proxy.Docs, error)
	Stage(ctx context.Context) error
	Validate(ctx context.Context) (bool, string, error)
	Commit(ctx context.Context) error
	ValidateActive(ctx context.Context) (bool, string, error)
	Revert(ctx context.Context) error
	Reload(ctx context.Context) error
	ActiveUpstreamPath() string
}

// Recorder persists a deploy outcome to the audit history. Optional.
type Recorder interface {
	Append(runID, environment, mode, releaseID, outcome, errText string, started, finished time.Time) error
}

// Deps are the collaborators for one orchestrator. The workload host
// connection and runtime client are nil in static mode.
type Deps struct {
	ProxyHost    hostConn
	WorkloadHost hostConn
	Runtime      runtimeClient
	Proxy        proxyGenerator
	Recorder     Recorder
	Progress     pubsub.Publisher[ProgressEvent]

	// Sleep is swapped out in tests to skip the health poll interval.
	Sleep func(time.Duration)
}

// Orchestrator executes one full release for one environment. It is a
// single control thread; parallelism exists only at the granularity of
// whole remote batches.
type Orchestrator struct {
	env   *config.Environment
	runID string
	deps  Deps
	force bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithForceLock clears a stale per-environment lock before acquiring it.
func WithForceLock() Option {
	return func(o *Orchestrator) { o.force = true }
}

func NewOrchestrator(env *config.Environment, deps Deps, opts ...Option) *Orchestrator {
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	if deps.Progress == nil {
		deps.Progress = NewProgressPublisher()
	}
	o := &Orchestrator{
		env:   env,
		runID: uuid.New().String(),
		deps:  deps,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunID identifies this run in logs and the audit history.
func (o *Orchestrator) RunID() string {
	return o.runID
}

func (o *Orchestrator) transition(state, format string, args ...interface{}) {
	_ = o.deps.Progress.PublishEvent(&ProgressEvent{
		RunID:       o.runID,
		Environment: o.env.Name,
		State:       state,
		Message:     fmt.Sprintf(format, args...),
	})
}

// Deploy runs the state machine for the environment's mode.
func (o *Orchestrator) Deploy(ctx context.Context) error {
	started := time.Now()

	var (
		releaseID string
		err       error
	)
	switch o.env.Mode {
	case config.ModeContainer:
		releaseID, err = o.deployContainer(ctx)
	case config.ModeStaticRelease:
		releaseID, err = o.deployStatic(ctx)
	default:
		err = fmt.Errorf("environment %s: unknown mode %q", o.env.Name, o.env.Mode)
	}

	o.record(releaseID, err, started)
	return err
}

func (o *Orchestrator) record(releaseID string, err error, started time.Time) {
	if o.deps.Recorder == nil {
		return
	}
	outcome, errText := "succeeded", ""
	if err != nil {
		outcome, errText = "failed", err.Error()
	}
	recErr := o.deps.Recorder.Append(o.runID, o.env.Name, string(o.env.Mode), releaseID, outcome, errText, started, time.Now())
	if recErr != nil {
		log.Warn().Err(recErr).Msg("failed to record deploy history")
	}
}

// currentState is what DetectCurrent learns from the two hosts.
type currentState struct {
	backend    string
	hasBackend bool
}

// detectCurrent queries the proxy host for the live upstream backend and
// the workload host for deploy prerequisites. The two batches target
// different hosts with no data dependency, so they run concurrently and
// join here.
func (o *Orchestrator) detectCurrent(ctx context.Context) (currentState, error) {
	proxyBatch := remote.NewBatch(o.env.Proxy.Host, o.deps.ProxyHost).
		Add("current-upstream", fmt.Sprintf("cat %s", o.deps.Proxy.ActiveUpstreamPath()))

	workloadBatch := remote.NewBatch(o.env.Workload.Host, o.deps.WorkloadHost).
		Add("deploy-dir", fmt.Sprintf("test -d %s", o.env.Container.DeployDir))
	if o.env.Container.EnvFile != "" {
		workloadBatch.Add("env-file", fmt.Sprintf("test -f %s", o.env.Container.EnvFile))
	}

	if err := remote.Go(ctx, proxyBatch, workloadBatch).Wait(); err != nil {
		return currentState{}, err
	}

	var state currentState
	if r := proxyBatch.Result("current-upstream"); r.Ok() {
		state.backend, state.hasBackend = proxy.ParseBackend(r.Stdout)
	}
	if !workloadBatch.Result("deploy-dir").Ok() {
		return state, fmt.Errorf("workload host %s: deploy directory %s does not exist",
			o.env.Workload.Host, o.env.Container.DeployDir)
	}
	return state, nil
}

func (o *Orchestrator) deployContainer(ctx context.Context) (string, error) {
	lock := newEnvironmentLock(o.deps.ProxyHost, o.env, o.runID)
	if err := lock.Acquire(ctx, o.force); err != nil {
		return "", err
	}
	defer lock.Release(ctx)

	// Authenticate before touching any deployment state, so a bad
	// credential config never surfaces mid-deploy. The cloud providers
	// mint their tokens on the workload host, which mutates nothing.
	cred, err := registry.Authenticate(ctx, &o.env.Container.Registry, tokenRunner{o.deps.WorkloadHost})
	if err != nil {
		return "", err
	}
	imageURI, err := registry.ImageURI(&o.env.Container.Registry, "")
	if err != nil {
		return "", err
	}
	containerEnv, err := o.env.ContainerEnv()
	if err != nil {
		return "", err
	}

	o.transition("DetectCurrent", "querying current deployment state")
	current, err := o.detectCurrent(ctx)
	if err != nil {
		return "", err
	}
	if current.hasBackend {
		o.transition("DetectCurrent", "current backend is %s", current.backend)
	} else {
		o.transition("DetectCurrent", "no current deployment found; this is a first deploy")
	}

	o.transition("Provision", "pulling %s", imageURI)
	authHeader, err := cred.AuthHeader()
	if err != nil {
		return "", err
	}
	if err := o.deps.Runtime.Pull(ctx, imageURI, authHeader); err != nil {
		return "", err
	}

	release := &Release{
		ID:      newReleaseID(o.env.Product, o.env.Name, time.Now()),
		Health:  runtime.HealthUnknown,
		Traffic: TrafficStandby,
	}
	release.ContainerID, err = o.deps.Runtime.Start(ctx, runtime.StartOptions{
		Name:         release.ID,
		Image:        imageURI,
		Env:          containerEnv,
		InternalPort: o.env.Container.Port,
		Product:      o.env.Product,
		Environment:  o.env.Name,
		ReleaseID:    release.ID,
	})
	if err != nil {
		return release.ID, err
	}

	// The assigned port is a typed result of provisioning, threaded
	// through the machine from here on.
	release.Port, err = o.deps.Runtime.BoundPort(ctx, release.ContainerID, o.env.Container.Port)
	if err != nil {
		o.rollbackNew(ctx, release)
		return release.ID, err
	}
	o.transition("Provision", "started %s on port %d", release.ID, release.Port)

	if err := o.awaitHealth(ctx, release); err != nil {
		o.rollbackNew(ctx, release)
		return release.ID, err
	}

	backend := net.JoinHostPort(o.env.Workload.RouteHost(), strconv.Itoa(release.Port))
	if err := o.switchTraffic(ctx, release, backend, imageURI); err != nil {
		return release.ID, err
	}

	// Past the point of no return: traffic has moved, the deploy is a
	// success regardless of how retirement goes.
	pool := newCleanupPool(ctx, 2)
	pool.Submit("drain", func(ctx context.Context) error {
		return o.drainOldReleases(ctx, release)
	})
	o.transition("Drain", "retiring previous releases")
	pool.Close()

	o.transition("Done", "release %s is live at %s", release.ID, backend)
	return release.ID, nil
}

// awaitHealth polls the runtime's health verdict at the configured interval
// until the attempt budget runs out. A runtime that configures no health
// check passes immediately, with a warning: the runtime's health semantics
// are trusted, not re-implemented.
func (o *Orchestrator) awaitHealth(ctx context.Context, release *Release) error {
	hc := o.env.Container.HealthCheck
	o.transition("AwaitHealth", "waiting for %s to report healthy (up to %d attempts)", release.ID, hc.MaxAttempts)

	for attempt := 1; attempt <= hc.MaxAttempts; attempt++ {
		state, err := o.deps.Runtime.Health(ctx, release.ContainerID)
		if err != nil {
			return err
		}
		release.Health = state

		switch state {
		case runtime.HealthHealthy:
			o.transition("AwaitHealth", "%s is healthy after %d attempt(s)", release.ID, attempt)
			return nil
		case runtime.HealthNone:
			log.Warn().Str("release", release.ID).Msg("image configures no health check; treating as healthy")
			return nil
		}

		if attempt < hc.MaxAttempts {
			o.deps.Sleep(hc.Interval)
		}
	}
	return fmt.Errorf("%w: %s still %s after %d attempts", ErrHealthTimeout, release.ID, release.Health, hc.MaxAttempts)
}

// switchTraffic is the render → validate → commit → reload guard sequence.
// Reload is the only step with externally observable effect.
func (o *Orchestrator) switchTraffic(ctx context.Context, release *Release, backend, imageURI string) error {
	o.transition("RenderConfig", "rendering proxy configuration for backend %s", backend)
	previous, _ := o.readManifest(ctx)

	if _, err := o.deps.Proxy.Render(backend); err != nil {
		o.rollbackNew(ctx, release)
		return err
	}
	if err := o.deps.Proxy.Stage(ctx); err != nil {
		o.rollbackNew(ctx, release)
		return err
	}

	o.transition("ValidateConfig", "validating staged proxy configuration")
	ok, diagnostics, err := o.deps.Proxy.Validate(ctx)
	if err != nil {
		o.rollbackNew(ctx, release)
		return err
	}
	if !ok {
		// Staged validation failure never touched the active directory.
		o.rollbackNew(ctx, release)
		return fmt.Errorf("%w: %s", ErrConfigInvalid, diagnostics)
	}

	if err := o.deps.Proxy.Commit(ctx); err != nil {
		o.revertAndRollback(ctx, release)
		return err
	}

	ok, diagnostics, err = o.deps.Proxy.ValidateActive(ctx)
	if err != nil {
		o.revertAndRollback(ctx, release)
		return err
	}
	if !ok {
		// The one path that touches and then un-touches the active
		// configuration.
		o.revertAndRollback(ctx, release)
		return fmt.Errorf("%w: %s", ErrConfigInvalid, diagnostics)
	}

	o.transition("Reload", "reloading proxy")
	if err := o.deps.Proxy.Reload(ctx); err != nil {
		o.revertAndRollback(ctx, release)
		return err
	}
	release.Traffic = TrafficLive

	manifest := &Manifest{
		ReleaseID:  release.ID,
		Mode:       string(o.env.Mode),
		Image:      imageURI,
		Backend:    backend,
		Domain:     o.env.Domain,
		RunID:      o.runID,
		DeployedAt: time.Now().UTC(),
	}
	o.logManifestDiff(previous, manifest)
	if err := o.writeManifest(ctx, manifest); err != nil {
		// The manifest is discovery metadata; traffic has already moved.
		log.Warn().Err(err).Msg("failed to write release manifest")
	}
	return nil
}

// drainOldReleases gracefully stops and removes every instance of this
// environment except the newly live one.
func (o *Orchestrator) drainOldReleases(ctx context.Context, live *Release) error {
	instances, err := o.deps.Runtime.ListEnvironment(ctx, o.env.Product, o.env.Name)
	if err != nil {
		return fmt.Errorf("draining old releases: %w", err)
	}

	var failures []string
	for _, instance := range instances {
		if instance.ID == live.ContainerID {
			continue
		}
		if err := o.deps.Runtime.StopWithTimeout(ctx, instance.ID, o.env.Container.StopTimeout); err != nil {
			failures = append(failures, instance.ReleaseID)
			continue
		}
		if err := o.deps.Runtime.Remove(ctx, instance.ID); err != nil {
			failures = append(failures, instance.ReleaseID)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("draining old releases: failed to retire %s", strings.Join(failures, ", "))
	}
	return nil
}

// rollbackNew removes the new, never-live instance. The previously live
// release is untouched. Honors the environment's auto-rollback flag.
func (o *Orchestrator) rollbackNew(ctx context.Context, release *Release) {
	if o.env.Container.AutoRollback != nil && !*o.env.Container.AutoRollback {
		log.Warn().Str("release", release.ID).Msg("auto-rollback disabled; leaving failed instance for inspection")
		return
	}
	o.transition("RollbackNew", "removing failed instance %s", release.ID)
	if err := o.deps.Runtime.StopWithTimeout(ctx, release.ContainerID, o.env.Container.StopTimeout); err != nil {
		log.Warn().Err(err).Str("release", release.ID).Msg("failed to stop new instance during rollback")
	}
	if err := o.deps.Runtime.Remove(ctx, release.ContainerID); err != nil {
		log.Warn().Err(err).Str("release", release.ID).Msg("failed to remove new instance during rollback")
		return
	}
	release.Traffic = TrafficRemoved
}

func (o *Orchestrator) revertAndRollback(ctx context.Context, release *Release) {
	o.transition("RevertConfig", "restoring previous proxy configuration")
	if err := o.deps.Proxy.Revert(ctx); err != nil {
		log.Error().Err(err).Msg("failed to revert proxy configuration")
	}
	o.rollbackNew(ctx, release)
}

// ManifestPath is the release manifest location on the proxy host.
func ManifestPath(env *config.Environment) string {
	return path.Join(env.Tuning.ConfigDir, ".slipway", env.ServiceName()+".manifest.json")
}

// ReadManifest fetches the release manifest for an environment. A missing
// manifest returns nil without error; it just means no deploy has recorded
// one yet.
func ReadManifest(ctx context.Context, host remote.Executor, env *config.Environment) (*Manifest, error) {
	result, err := host.Exec(ctx, fmt.Sprintf("cat %s", ManifestPath(env)))
	if err != nil || !result.Ok() {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal([]byte(result.Stdout), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (o *Orchestrator) readManifest(ctx context.Context) (*Manifest, error) {
	return ReadManifest(ctx, o.deps.ProxyHost, o.env)
}

func (o *Orchestrator) writeManifest(ctx context.Context, m *Manifest) error {
	encoded, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return o.deps.ProxyHost.Upload(ctx, strings.NewReader(string(encoded)), ManifestPath(o.env), 0o644)
}

// logManifestDiff reports what changed between the previous and new release
// as a structured patch.
func (o *Orchestrator) logManifestDiff(previous, next *Manifest) {
	if previous == nil {
		return
	}
	patch, err := jsondiff.Compare(previous, next)
	if err != nil {
		return
	}
	for _, op := range patch {
		log.Debug().
			Str("op", op.Type).
			Str("path", string(op.Path)).
			Interface("value", op.Value).
			Msg("release change")
	}
}

// tokenRunner adapts a host connection to the registry token exchange.
type tokenRunner struct {
	host remote.Executor
}

func (t tokenRunner) RunCommand(ctx context.Context, command string) (string, error) {
	result, err := t.host.Exec(ctx, command)
	if err != nil {
		return "", err
	}
	if !result.Ok() {
		return "", fmt.Errorf("token exchange command failed: %s", result.Diagnostic())
	}
	return result.Stdout, nil
}
