package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/remote"
)

// deployStatic runs the static-release machine: an immutable release tree
// is built next to the live one, the `current` symlink switches atomically,
// and only then does the proxy configuration move.
func (o *Orchestrator) deployStatic(ctx context.Context) (string, error) {
	lock := newEnvironmentLock(o.deps.ProxyHost, o.env, o.runID)
	if err := lock.Acquire(ctx, o.force); err != nil {
		return "", err
	}
	defer lock.Release(ctx)

	st := o.env.Static

	o.transition("LocateArchive", "hashing release archive %s", st.Archive)
	hash, err := sha256File(st.Archive)
	if err != nil {
		return "", fmt.Errorf("locating release archive: %w", err)
	}
	releaseID := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102150405"), hash[:12])

	releasesRoot := path.Join(st.DeployRoot, "releases")
	releaseDir := path.Join(releasesRoot, releaseID)
	currentLink := path.Join(st.DeployRoot, "current")

	o.transition("CreateReleaseDir", "creating release directory %s", releaseDir)
	if err := o.runOnProxy(ctx, "create-release-dir", fmt.Sprintf("mkdir -p %s", releaseDir)); err != nil {
		return releaseID, err
	}

	o.transition("Extract", "uploading and extracting release archive")
	bundle := path.Join(releaseDir, ".bundle.tar.gz")
	if err := o.deps.ProxyHost.UploadFile(ctx, st.Archive, bundle); err != nil {
		return releaseID, err
	}
	extract := fmt.Sprintf("tar -xzf %s -C %s && rm -f %s", bundle, releaseDir, bundle)
	if err := o.runOnProxy(ctx, "extract", extract); err != nil {
		o.removeReleaseDir(ctx, releaseDir)
		return releaseID, err
	}

	if len(st.SharedPaths) > 0 {
		o.transition("LinkSharedPaths", "linking %d shared path(s)", len(st.SharedPaths))
		batch := remote.NewBatch(o.env.Proxy.Host, o.deps.ProxyHost)
		for i, shared := range st.SharedPaths {
			src := path.Join(st.DeployRoot, "shared", shared)
			dst := path.Join(releaseDir, shared)
			batch.Add(fmt.Sprintf("link-%d", i),
				fmt.Sprintf("mkdir -p %s && rm -rf %s && ln -sfn %s %s", src, dst, src, dst))
		}
		if err := batch.Run(ctx); err != nil {
			o.removeReleaseDir(ctx, releaseDir)
			return releaseID, err
		}
		if failed := batch.Failed(); len(failed) > 0 {
			o.removeReleaseDir(ctx, releaseDir)
			return releaseID, fmt.Errorf("linking shared paths: %s failed", strings.Join(failed, ", "))
		}
	}

	if len(st.RequiredFiles) > 0 {
		o.transition("ValidateRequiredFiles", "checking %d required file(s)", len(st.RequiredFiles))
		batch := remote.NewBatch(o.env.Proxy.Host, o.deps.ProxyHost)
		for _, f := range st.RequiredFiles {
			batch.Add(f, fmt.Sprintf("test -e %s", path.Join(releaseDir, f)))
		}
		if err := batch.Run(ctx); err != nil {
			o.removeReleaseDir(ctx, releaseDir)
			return releaseID, err
		}
		if missing := batch.Failed(); len(missing) > 0 {
			o.removeReleaseDir(ctx, releaseDir)
			return releaseID, fmt.Errorf("release is missing required files: %s", strings.Join(missing, ", "))
		}
	}

	// Remember what current pointed at so a failed validation can put it
	// back.
	previousTarget := ""
	if r, err := o.deps.ProxyHost.Exec(ctx, fmt.Sprintf("readlink %s", currentLink)); err == nil && r.Ok() {
		previousTarget = r.Out()
	}

	o.transition("AtomicSymlinkSwitch", "pointing %s at %s", currentLink, releaseDir)
	if err := o.switchSymlink(ctx, currentLink, releaseDir); err != nil {
		o.removeReleaseDir(ctx, releaseDir)
		return releaseID, err
	}

	if err := o.switchStaticTraffic(ctx, releaseID, releaseDir, currentLink, previousTarget); err != nil {
		return releaseID, err
	}

	// Past the point of no return; pruning is best-effort.
	pool := newCleanupPool(ctx, 1)
	pool.Submit("prune", func(ctx context.Context) error {
		return o.pruneReleases(ctx, releasesRoot, currentLink, st.Retain)
	})
	o.transition("PruneOldReleases", "retaining the %d most recent release(s)", st.Retain)
	pool.Close()

	o.transition("Done", "release %s is live", releaseID)
	return releaseID, nil
}

// switchStaticTraffic mirrors the container-mode guard sequence for the
// site document, with the symlink revert taking the place of instance
// rollback.
func (o *Orchestrator) switchStaticTraffic(ctx context.Context, releaseID, releaseDir, currentLink, previousTarget string) error {
	o.transition("RenderSiteConfig", "rendering site configuration")
	previous, _ := o.readManifest(ctx)

	if _, err := o.deps.Proxy.Render(currentLink); err != nil {
		o.revertSymlink(ctx, currentLink, previousTarget)
		return err
	}
	if err := o.deps.Proxy.Stage(ctx); err != nil {
		o.revertSymlink(ctx, currentLink, previousTarget)
		return err
	}

	o.transition("ValidateConfig", "validating staged proxy configuration")
	ok, diagnostics, err := o.deps.Proxy.Validate(ctx)
	if err != nil {
		o.revertSymlink(ctx, currentLink, previousTarget)
		return err
	}
	if !ok {
		o.revertSymlink(ctx, currentLink, previousTarget)
		return fmt.Errorf("%w: %s", ErrConfigInvalid, diagnostics)
	}

	if err := o.deps.Proxy.Commit(ctx); err != nil {
		o.revertStatic(ctx, currentLink, previousTarget)
		return err
	}
	ok, diagnostics, err = o.deps.Proxy.ValidateActive(ctx)
	if err != nil {
		o.revertStatic(ctx, currentLink, previousTarget)
		return err
	}
	if !ok {
		o.revertStatic(ctx, currentLink, previousTarget)
		return fmt.Errorf("%w: %s", ErrConfigInvalid, diagnostics)
	}

	o.transition("Reload", "reloading proxy")
	if err := o.deps.Proxy.Reload(ctx); err != nil {
		o.revertStatic(ctx, currentLink, previousTarget)
		return err
	}

	manifest := &Manifest{
		ReleaseID:  releaseID,
		Mode:       string(o.env.Mode),
		Backend:    releaseDir,
		Domain:     o.env.Domain,
		RunID:      o.runID,
		DeployedAt: time.Now().UTC(),
	}
	o.logManifestDiff(previous, manifest)
	if err := o.writeManifest(ctx, manifest); err != nil {
		log.Warn().Err(err).Msg("failed to write release manifest")
	}
	return nil
}

// switchSymlink replaces link with a pointer to target via
// create-temporary-then-rename, so a reader never observes a missing or
// half-updated link.
func (o *Orchestrator) switchSymlink(ctx context.Context, link, target string) error {
	tmp := link + ".next"
	command := fmt.Sprintf("ln -sfn %s %s && mv -T %s %s", target, tmp, tmp, link)
	return o.runOnProxy(ctx, "switch-symlink", command)
}

func (o *Orchestrator) revertSymlink(ctx context.Context, link, previousTarget string) {
	o.transition("RevertSymlink", "restoring previous release pointer")
	var err error
	if previousTarget != "" {
		err = o.switchSymlink(ctx, link, previousTarget)
	} else {
		err = o.runOnProxy(ctx, "remove-symlink", fmt.Sprintf("rm -f %s", link))
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to revert release symlink")
	}
}

func (o *Orchestrator) revertStatic(ctx context.Context, link, previousTarget string) {
	o.transition("RevertConfig", "restoring previous proxy configuration")
	if err := o.deps.Proxy.Revert(ctx); err != nil {
		log.Error().Err(err).Msg("failed to revert proxy configuration")
	}
	o.revertSymlink(ctx, link, previousTarget)
}

// PruneStatic removes old release directories for a static environment,
// outside of a deploy. The same selection rules apply.
func PruneStatic(ctx context.Context, host remote.Executor, env *config.Environment) error {
	return pruneStatic(ctx, host, env.Proxy.Host,
		path.Join(env.Static.DeployRoot, "releases"),
		path.Join(env.Static.DeployRoot, "current"),
		env.Static.Retain)
}

func (o *Orchestrator) pruneReleases(ctx context.Context, releasesRoot, currentLink string, retain int) error {
	return pruneStatic(ctx, o.deps.ProxyHost, o.env.Proxy.Host, releasesRoot, currentLink, retain)
}

// pruneStatic removes all but the retain most recent release directories.
// The target of `current` is never removed, whatever its age.
func pruneStatic(ctx context.Context, host remote.Executor, hostLabel, releasesRoot, currentLink string, retain int) error {
	batch := remote.NewBatch(hostLabel, host).
		Add("list", fmt.Sprintf("ls -1t %s", releasesRoot)).
		Add("current", fmt.Sprintf("readlink %s", currentLink))
	if err := batch.Run(ctx); err != nil {
		return fmt.Errorf("pruning releases: %w", err)
	}
	listing := batch.Result("list")
	if !listing.Ok() {
		return fmt.Errorf("pruning releases: %s", listing.Diagnostic())
	}
	current := path.Base(batch.Result("current").Out())

	prunable := selectPrunable(listing.Lines(), current, retain)
	if len(prunable) == 0 {
		return nil
	}

	rm := remote.NewBatch(hostLabel, host)
	for _, name := range prunable {
		rm.Add(name, fmt.Sprintf("rm -rf %s", path.Join(releasesRoot, name)))
	}
	if err := rm.Run(ctx); err != nil {
		return fmt.Errorf("pruning releases: %w", err)
	}
	if failed := rm.Failed(); len(failed) > 0 {
		return fmt.Errorf("pruning releases: failed to remove %s", strings.Join(failed, ", "))
	}
	log.Info().Int("removed", len(prunable)).Msg("pruned old releases")
	return nil
}

func (o *Orchestrator) removeReleaseDir(ctx context.Context, releaseDir string) {
	if err := o.runOnProxy(ctx, "remove-release-dir", fmt.Sprintf("rm -rf %s", releaseDir)); err != nil {
		log.Warn().Err(err).Str("dir", releaseDir).Msg("failed to remove release directory")
	}
}

// runOnProxy executes one command on the proxy host and converts a
// non-zero exit into an error carrying the remote diagnostics.
func (o *Orchestrator) runOnProxy(ctx context.Context, name, command string) error {
	result, err := o.deps.ProxyHost.Exec(ctx, command)
	if err != nil {
		return err
	}
	if !result.Ok() {
		return fmt.Errorf("%s: %s", name, result.Diagnostic())
	}
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
