package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/interp"
	"github.com/gantryci/gantry/internal/manifest"
	"github.com/gantryci/gantry/internal/output"
	"github.com/gantryci/gantry/internal/runner"
	"github.com/gantryci/gantry/internal/version"
)

const uploadTimeout = 5 * time.Minute

// Options configures publish behavior.
type Options struct {
	Tag    string // release tag that opened the gate
	DryRun bool   // build and verify, but skip mint and upload
}

// Publisher handles the build-and-upload workflow.
type Publisher struct {
	root     string
	cfg      *config.Config
	out      *output.Writer
	resolver *interp.Resolver
	tokens   oauth2.TokenSource
	client   *http.Client
}

// NewPublisher creates a new Publisher rooted at the project directory.
func NewPublisher(root string, cfg *config.Config, out *output.Writer) *Publisher {
	return &Publisher{
		root:     root,
		cfg:      cfg,
		out:      out,
		resolver: interp.NewResolver(cfg),
		client:   &http.Client{Timeout: uploadTimeout},
	}
}

// SetTokenSource overrides the minted credential source (for testing).
func (p *Publisher) SetTokenSource(ts oauth2.TokenSource) {
	p.tokens = ts
}

// Publish builds both distributions and uploads them to the configured
// index. Each step is logged; the workflow aborts on the first error.
// The returned artifacts carry the names and digests of what was built.
func (p *Publisher) Publish(ctx context.Context, opts Options) ([]runner.PublishedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pub := p.cfg.Publish
	step := 1

	p.out.Step(step, "Resolving publish interpreter (python %s)", pub.Python)
	step++
	python, err := p.resolver.Resolve(pub.Python)
	if err != nil {
		return nil, err
	}

	p.out.Step(step, "Verifying release version %s", opts.Tag)
	step++
	if err := p.verifyVersion(opts.Tag); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.out.Step(step, "Building distributions...")
	step++
	sdist, wheel, err := p.build(ctx, python)
	if err != nil {
		return nil, fmt.Errorf("failed to build distributions: %w", err)
	}
	p.out.StepDetail("%s", filepath.Base(sdist))
	p.out.StepDetail("%s", filepath.Base(wheel))

	if p.cfg.ManifestCheckEnabled() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.out.Step(step, "Checking source manifest...")
		step++
		if err := p.checkManifest(ctx, sdist); err != nil {
			return nil, err
		}
	}

	artifacts, err := digests(sdist, wheel)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		p.dryRun(step, artifacts)
		return artifacts, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.out.Step(step, "Minting upload token...")
	step++
	tokens := p.tokens
	if tokens == nil {
		tokens = NewTokenSource(pub.MintURL, pub.Audience)
	}
	if _, err := tokens.Token(); err != nil {
		return nil, fmt.Errorf("failed to mint upload token: %w", err)
	}

	p.out.Step(step, "Uploading to %s", pub.Repository)
	up := &uploader{repositoryURL: pub.Repository, tokens: tokens, client: p.client}
	for _, path := range []string{sdist, wheel} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.out.StepDetail("Uploading: %s", filepath.Base(path))
		if err := up.upload(ctx, path); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}
	}

	p.out.FinalSuccess("Published %s %s.", p.cfg.Project.Name, opts.Tag)
	return artifacts, nil
}

// BuildDistributions runs the build portion of the workflow only: resolve
// the publish interpreter, build both distributions into a clean dist
// directory, and verify the source manifest when enabled. Nothing is
// uploaded and no version preflight runs.
func (p *Publisher) BuildDistributions(ctx context.Context) ([]runner.PublishedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pub := p.cfg.Publish
	step := 1

	p.out.Step(step, "Resolving publish interpreter (python %s)", pub.Python)
	step++
	python, err := p.resolver.Resolve(pub.Python)
	if err != nil {
		return nil, err
	}

	p.out.Step(step, "Building distributions...")
	step++
	sdist, wheel, err := p.build(ctx, python)
	if err != nil {
		return nil, fmt.Errorf("failed to build distributions: %w", err)
	}
	p.out.StepDetail("%s", filepath.Base(sdist))
	p.out.StepDetail("%s", filepath.Base(wheel))

	if p.cfg.ManifestCheckEnabled() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.out.Step(step, "Checking source manifest...")
		if err := p.checkManifest(ctx, sdist); err != nil {
			return nil, err
		}
	}

	artifacts, err := digests(sdist, wheel)
	if err != nil {
		return nil, err
	}
	p.out.FinalSuccess("Built %d distributions.", len(artifacts))
	return artifacts, nil
}

// dryRun prints the upload that would have happened.
func (p *Publisher) dryRun(step int, artifacts []runner.PublishedArtifact) {
	p.out.DryRunStart()
	p.out.Step(step, "Would mint an upload token from %s", p.cfg.Publish.MintURL)
	step++
	p.out.Step(step, "Would upload to %s:", p.cfg.Publish.Repository)
	for _, a := range artifacts {
		p.out.StepDetail("%s (sha256 %s)", a.Name, a.SHA256)
	}
	p.out.DryRunEnd()
}

// verifyVersion confirms the tag is a release version and matches the
// project's declared version when a VERSION file exists.
func (p *Publisher) verifyVersion(tag string) error {
	if tag == "" {
		return errors.Config("publish requires a release tag")
	}
	if !version.IsReleaseTag(tag) {
		return errors.Configf("tag %q is not a release version", tag)
	}

	path := filepath.Join(p.root, p.cfg.Project.VersionFile)
	declared, err := version.Read(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if declared != tag {
		return errors.Configf("tag %q does not match project version %q", tag, declared)
	}
	return nil
}

// build runs python -m build into a clean dist directory and returns the
// resulting sdist and wheel paths. The directory is emptied first so the
// exactly-one check below sees only this build's output.
func (p *Publisher) build(ctx context.Context, python string) (sdist, wheel string, err error) {
	distDir := filepath.Join(p.root, "dist")
	if err := os.RemoveAll(distDir); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return "", "", err
	}

	cmd := exec.CommandContext(ctx, python, "-m", "build", "--sdist", "--wheel", "--outdir", distDir)
	cmd.Dir = p.root
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", "", fmt.Errorf("python -m build: %w\n%s", err, outputTail(string(out), 20))
	}

	if sdist, err = singleMatch(distDir, "*.tar.gz"); err != nil {
		return "", "", err
	}
	if wheel, err = singleMatch(distDir, "*.whl"); err != nil {
		return "", "", err
	}
	return sdist, wheel, nil
}

// checkManifest verifies the sdist against version control.
func (p *Publisher) checkManifest(ctx context.Context, sdist string) error {
	return manifest.Check(ctx, p.root, sdist)
}

// singleMatch returns the single file matching pattern under dir, erroring
// when the build produced none or several.
func singleMatch(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("build produced no %s artifact", pattern)
	default:
		return "", fmt.Errorf("build produced %d %s artifacts, want exactly one", len(matches), pattern)
	}
}

// digests returns the artifact records for the built files.
func digests(paths ...string) ([]runner.PublishedArtifact, error) {
	artifacts := make([]runner.PublishedArtifact, 0, len(paths))
	for _, path := range paths {
		sum, err := fileSHA256(path)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, runner.PublishedArtifact{
			Name:   filepath.Base(path),
			SHA256: sum,
		})
	}
	return artifacts, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// outputTail returns the last n non-empty lines of s.
func outputTail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
