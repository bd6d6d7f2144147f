package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/slipway-sh/slipway/internal/config"
	"github.com/slipway-sh/slipway/internal/remote"
)

// hostClient is the slice of remote.Client the generator needs on the
// traffic-facing host.
type hostClient interface {
	remote.Executor
	Upload(ctx context.Context, content io.Reader, remotePath string, mode os.FileMode) error
}

// Docs are the rendered per-environment proxy documents. Upstream is empty
// in static mode.
type Docs struct {
	Upstream string
	Site     string
}

// Generator renders, stages, validates and commits proxy configuration for
// one environment. Staged documents never touch the active directory until
// Commit, and Commit refuses to run before a passing Validate.
type Generator struct {
	env    *config.Environment
	client hostClient

	docs        Docs
	rendered    bool
	validated   bool
	committed   bool
	hadPrevious bool
}

func NewGenerator(client hostClient, env *config.Environment) *Generator {
	return &Generator{env: env, client: client}
}

func (g *Generator) configDir() string { return g.env.Tuning.ConfigDir }
func (g *Generator) stagingDir() string {
	return path.Join(g.configDir(), ".slipway", "staging", g.env.ServiceName())
}
func (g *Generator) backupDir() string    { return path.Join(g.configDir(), ".slipway", "backup") }
func (g *Generator) upstreamName() string { return g.env.ServiceName() + ".upstream.conf" }
func (g *Generator) siteName() string     { return g.env.ServiceName() + ".conf" }

// ActiveUpstreamPath is the live upstream document location; exposed for
// state discovery.
func (g *Generator) ActiveUpstreamPath() string {
	return path.Join(g.configDir(), g.upstreamName())
}

func (g *Generator) activeSitePath() string {
	return path.Join(g.configDir(), g.siteName())
}

type siteData struct {
	ServiceName    string
	Domain         string
	TLS            *config.TLS
	Static         bool
	Root           string
	ConnectTimeout string
	ReadTimeout    string
	SendTimeout    string
	BufferSize     string
	BodySizeLimit  string
}

// Render produces the upstream and site documents for the given backend:
// an address:port pair in container mode, a document root in static mode.
func (g *Generator) Render(backend string) (Docs, error) {
	isStatic := g.env.Mode == config.ModeStaticRelease

	var docs Docs
	if !isStatic {
		var buf bytes.Buffer
		err := upstreamTemplate.Execute(&buf, struct {
			ServiceName string
			Backend     string
		}{g.env.ServiceName(), backend})
		if err != nil {
			return Docs{}, fmt.Errorf("rendering upstream document: %w", err)
		}
		docs.Upstream = buf.String()
	}

	data := siteData{
		ServiceName:   g.env.ServiceName(),
		Domain:        g.env.Domain,
		TLS:           g.env.TLS,
		Static:        isStatic,
		BufferSize:    g.env.Tuning.BufferSize,
		BodySizeLimit: g.env.Tuning.BodySizeLimit,
	}
	if isStatic {
		data.Root = backend
	}
	if d := g.env.Tuning.ConnectTimeout; d > 0 {
		data.ConnectTimeout = fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d := g.env.Tuning.ReadTimeout; d > 0 {
		data.ReadTimeout = fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d := g.env.Tuning.SendTimeout; d > 0 {
		data.SendTimeout = fmt.Sprintf("%ds", int(d.Seconds()))
	}

	var buf bytes.Buffer
	if err := siteTemplate.Execute(&buf, data); err != nil {
		return Docs{}, fmt.Errorf("rendering site document: %w", err)
	}
	docs.Site = buf.String()

	g.docs = docs
	g.rendered = true
	g.validated = false
	g.committed = false
	return docs, nil
}

// Stage uploads the rendered documents plus a validation harness to the
// staging directory on the proxy host. The staging directory lives under
// the config dir so the later move stays on one filesystem.
func (g *Generator) Stage(ctx context.Context) error {
	if !g.rendered {
		panic("proxy: Stage called before Render")
	}

	uploads := map[string]string{
		path.Join(g.stagingDir(), g.siteName()): g.docs.Site,
	}
	includes := []string{path.Join(g.stagingDir(), g.siteName())}
	if g.docs.Upstream != "" {
		p := path.Join(g.stagingDir(), g.upstreamName())
		uploads[p] = g.docs.Upstream
		includes = append([]string{p}, includes...)
	}

	var harness bytes.Buffer
	if err := validateTemplate.Execute(&harness, struct{ Includes []string }{includes}); err != nil {
		return fmt.Errorf("rendering validation harness: %w", err)
	}
	uploads[path.Join(g.stagingDir(), "validate.conf")] = harness.String()

	for remotePath, content := range uploads {
		if err := g.client.Upload(ctx, strings.NewReader(content), remotePath, 0o644); err != nil {
			return fmt.Errorf("staging proxy documents: %w", err)
		}
	}
	return nil
}

// Validate runs the proxy's own configuration test against the complete
// staged document set. A failure returns the validator's diagnostics.
func (g *Generator) Validate(ctx context.Context) (bool, string, error) {
	command := fmt.Sprintf("sudo nginx -t -c %s", path.Join(g.stagingDir(), "validate.conf"))
	result, err := g.client.Exec(ctx, command)
	if err != nil {
		return false, "", fmt.Errorf("running proxy validation: %w", err)
	}
	if !result.Ok() {
		return false, result.Diagnostic(), nil
	}
	g.validated = true
	return true, "", nil
}

// Commit atomically moves the staged documents into the active directory,
// backing up the previous documents first so Revert can restore them.
// Calling Commit without a passing Validate is a programming error.
func (g *Generator) Commit(ctx context.Context) error {
	if !g.validated {
		panic("proxy: Commit called without a passing Validate")
	}

	batch := remote.NewBatch(g.env.Proxy.Host, g.client).
		Add("mkdir-backup", fmt.Sprintf("mkdir -p %s", g.backupDir()))
	if g.docs.Upstream != "" {
		batch.Add("backup-upstream", fmt.Sprintf("cp -f %s %s",
			g.ActiveUpstreamPath(), path.Join(g.backupDir(), g.upstreamName())))
	}
	batch.Add("backup-site", fmt.Sprintf("cp -f %s %s",
		g.activeSitePath(), path.Join(g.backupDir(), g.siteName())))
	if g.docs.Upstream != "" {
		batch.Add("commit-upstream", fmt.Sprintf("mv -f %s %s",
			path.Join(g.stagingDir(), g.upstreamName()), g.ActiveUpstreamPath()))
	}
	batch.Add("commit-site", fmt.Sprintf("mv -f %s %s",
		path.Join(g.stagingDir(), g.siteName()), g.activeSitePath()))

	if err := batch.Run(ctx); err != nil {
		return err
	}
	// Backups fail harmlessly on a first deploy when no previous documents
	// exist. In static mode there is no upstream, so the site document is
	// the one that tells a redeploy from a first deploy.
	if g.docs.Upstream != "" {
		g.hadPrevious = batch.Result("backup-upstream").Ok()
	} else {
		g.hadPrevious = batch.Result("backup-site").Ok()
	}
	for _, name := range []string{"commit-upstream", "commit-site"} {
		if g.docs.Upstream == "" && name == "commit-upstream" {
			continue
		}
		if r := batch.Result(name); !r.Ok() {
			return fmt.Errorf("committing proxy documents (%s): %s", name, r.Diagnostic())
		}
	}
	g.committed = true
	return nil
}

// ValidateActive runs the proxy's configuration test against the live
// configuration tree, after Commit and before Reload.
func (g *Generator) ValidateActive(ctx context.Context) (bool, string, error) {
	result, err := g.client.Exec(ctx, "sudo nginx -t")
	if err != nil {
		return false, "", fmt.Errorf("running proxy validation: %w", err)
	}
	if !result.Ok() {
		return false, result.Diagnostic(), nil
	}
	return true, "", nil
}

// Revert restores the active directory to its pre-deploy content: the
// backed-up documents come back, or on a first deploy the freshly
// committed documents are removed.
func (g *Generator) Revert(ctx context.Context) error {
	if !g.committed {
		return nil
	}

	batch := remote.NewBatch(g.env.Proxy.Host, g.client)
	if g.hadPrevious {
		if g.docs.Upstream != "" {
			batch.Add("restore-upstream", fmt.Sprintf("cp -f %s %s",
				path.Join(g.backupDir(), g.upstreamName()), g.ActiveUpstreamPath()))
		}
		batch.Add("restore-site", fmt.Sprintf("cp -f %s %s",
			path.Join(g.backupDir(), g.siteName()), g.activeSitePath()))
	} else {
		if g.docs.Upstream != "" {
			batch.Add("remove-upstream", fmt.Sprintf("rm -f %s", g.ActiveUpstreamPath()))
		}
		batch.Add("remove-site", fmt.Sprintf("rm -f %s", g.activeSitePath()))
	}
	if err := batch.Run(ctx); err != nil {
		return err
	}
	if failed := batch.Failed(); len(failed) > 0 {
		return fmt.Errorf("reverting proxy documents: %s failed", strings.Join(failed, ", "))
	}
	log.Warn().Str("environment", g.env.Name).Msg("reverted proxy configuration")
	g.committed = false
	return nil
}

// Reload signals the proxy to pick up the committed configuration without
// dropping connections. This is the only step that moves traffic.
func (g *Generator) Reload(ctx context.Context) error {
	result, err := g.client.Exec(ctx, g.env.Tuning.ReloadCommand)
	if err != nil {
		return fmt.Errorf("reloading proxy: %w", err)
	}
	if !result.Ok() {
		return fmt.Errorf("reloading proxy: %s", result.Diagnostic())
	}
	return nil
}

var upstreamServerRe = regexp.MustCompile(`(?m)^\s*server\s+([^;\s]+)\s*;`)

// ParseBackend extracts the backend address from an upstream document.
func ParseBackend(doc string) (string, bool) {
	m := upstreamServerRe.FindStringSubmatch(doc)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CurrentBackend reads the live upstream document and returns the backend
// address it routes to. found is false on a first deploy, when no document
// exists yet.
func (g *Generator) CurrentBackend(ctx context.Context) (string, bool, error) {
	result, err := g.client.Exec(ctx, fmt.Sprintf("cat %s", g.ActiveUpstreamPath()))
	if err != nil {
		return "", false, err
	}
	if !result.Ok() {
		// Absent document: first deploy.
		return "", false, nil
	}
	backend, found := ParseBackend(result.Stdout)
	return backend, found, nil
}
