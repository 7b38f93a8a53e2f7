package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/interp"
	"github.com/gantryci/gantry/internal/output"
)

// fakeBuildPython writes an executable script that emulates
// `python -m build --sdist --wheel --outdir DIR`.
func fakeBuildPython(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter script requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "python3.8")
	script := `#!/bin/sh
outdir="$6"
mkdir -p "$outdir"
printf 'sdist bytes' > "$outdir/demo-1.2.3.tar.gz"
printf 'wheel bytes' > "$outdir/demo-1.2.3-py3-none-any.whl"
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func publishTestConfig(python, repository, mintURL string, checkManifest bool) *config.Config {
	return &config.Config{
		Project: config.ProjectConfig{Name: "demo", Package: "demo", VersionFile: "VERSION"},
		Publish: &config.PublishConfig{
			Python:        "3.8",
			Repository:    repository,
			MintURL:       mintURL,
			Audience:      "pypi",
			CheckManifest: &checkManifest,
		},
		Interpreters: map[string]string{"3.8": python},
	}
}

func testPublisher(t *testing.T, cfg *config.Config) (*Publisher, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	out := output.NewWithWriters(&buf, &buf, false)
	return NewPublisher(t.TempDir(), cfg, out), &buf
}

func TestPublisher_DryRun(t *testing.T) {
	cfg := publishTestConfig(fakeBuildPython(t), "http://unused.invalid", "http://unused.invalid", false)
	p, buf := testPublisher(t, cfg)

	artifacts, err := p.Publish(context.Background(), Options{Tag: "1.2.3", DryRun: true})
	if err != nil {
		t.Fatalf("Publish() error = %v\noutput:\n%s", err, buf.String())
	}

	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(artifacts))
	}
	sdistSum := sha256.Sum256([]byte("sdist bytes"))
	if artifacts[0].Name != "demo-1.2.3.tar.gz" || artifacts[0].SHA256 != hex.EncodeToString(sdistSum[:]) {
		t.Errorf("sdist artifact = %+v, want name and digest of the built sdist", artifacts[0])
	}
	if artifacts[1].Name != "demo-1.2.3-py3-none-any.whl" {
		t.Errorf("wheel artifact = %+v, want the built wheel", artifacts[1])
	}

	got := buf.String()
	if !strings.Contains(got, "DRY RUN") {
		t.Errorf("output missing dry run header:\n%s", got)
	}
	if !strings.Contains(got, "Would upload") {
		t.Errorf("output missing upload preview:\n%s", got)
	}
	if strings.Contains(got, "Published") {
		t.Errorf("dry run must not report a publish:\n%s", got)
	}
}

func TestPublisher_BuildDistributions(t *testing.T) {
	cfg := publishTestConfig(fakeBuildPython(t), "http://unused.invalid", "http://unused.invalid", false)
	p, buf := testPublisher(t, cfg)

	artifacts, err := p.BuildDistributions(context.Background())
	if err != nil {
		t.Fatalf("BuildDistributions() error = %v\noutput:\n%s", err, buf.String())
	}
	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(artifacts))
	}

	got := buf.String()
	if !strings.Contains(got, "Built 2 distributions.") {
		t.Errorf("output missing final build message:\n%s", got)
	}
	if strings.Contains(got, "Minting") || strings.Contains(got, "Uploading") {
		t.Errorf("build must not mint or upload:\n%s", got)
	}
}

func TestPublisher_UploadsBothDistributions(t *testing.T) {
	var uploads atomic.Int32
	var filetypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		filetypes = append(filetypes, r.FormValue("filetype"))
		uploads.Add(1)
	}))
	defer srv.Close()

	cfg := publishTestConfig(fakeBuildPython(t), srv.URL, "http://unused.invalid", false)
	p, buf := testPublisher(t, cfg)
	p.SetTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "minted"}))

	artifacts, err := p.Publish(context.Background(), Options{Tag: "1.2.3"})
	if err != nil {
		t.Fatalf("Publish() error = %v\noutput:\n%s", err, buf.String())
	}

	if got := uploads.Load(); got != 2 {
		t.Errorf("uploads = %d, want 2", got)
	}
	if len(filetypes) != 2 || filetypes[0] != "sdist" || filetypes[1] != "bdist_wheel" {
		t.Errorf("filetypes = %v, want sdist then bdist_wheel", filetypes)
	}
	if len(artifacts) != 2 {
		t.Errorf("artifacts = %d, want 2", len(artifacts))
	}
	if !strings.Contains(buf.String(), "Published demo 1.2.3.") {
		t.Errorf("output missing final publish message:\n%s", buf.String())
	}
}

func TestPublisher_VersionMismatch(t *testing.T) {
	cfg := publishTestConfig(fakeBuildPython(t), "http://unused.invalid", "http://unused.invalid", false)
	p, _ := testPublisher(t, cfg)
	if err := os.WriteFile(filepath.Join(p.root, "VERSION"), []byte("1.2.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := p.Publish(context.Background(), Options{Tag: "1.2.3"})
	if err == nil {
		t.Fatal("Publish() = nil, want version mismatch error")
	}
	if !strings.Contains(err.Error(), "does not match") {
		t.Errorf("error = %q, want version mismatch", err)
	}
	if got := errors.GetExitCode(err); got != errors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", got, errors.ExitConfigError)
	}
}

func TestPublisher_VerifyVersion(t *testing.T) {
	cfg := publishTestConfig(fakeBuildPython(t), "", "", false)
	p, _ := testPublisher(t, cfg)

	tests := []struct {
		name    string
		tag     string
		wantErr bool
	}{
		{"release", "1.2.3", false},
		{"release_with_suffix", "1.2.3rc1", false},
		{"empty", "", true},
		{"not_a_version", "nightly", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.verifyVersion(tt.tag)
			if (err != nil) != tt.wantErr {
				t.Errorf("verifyVersion(%q) error = %v, wantErr %v", tt.tag, err, tt.wantErr)
			}
		})
	}
}

func TestPublisher_MissingInterpreter(t *testing.T) {
	cfg := publishTestConfig("", "http://unused.invalid", "http://unused.invalid", false)
	cfg.Publish.Python = "9.99"
	cfg.Interpreters = nil
	t.Setenv(interp.EnvVar("9.99"), "")

	p, _ := testPublisher(t, cfg)
	_, err := p.Publish(context.Background(), Options{Tag: "1.2.3"})
	if err == nil {
		t.Fatal("Publish() = nil, want missing interpreter error")
	}
	if got := errors.GetExitCode(err); got != errors.ExitSetupError {
		t.Errorf("exit code = %d, want %d", got, errors.ExitSetupError)
	}
}

func TestPublisher_BuildFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter script requires a POSIX shell")
	}

	python := filepath.Join(t.TempDir(), "python3.8")
	script := "#!/bin/sh\necho 'ERROR missing pyproject.toml' >&2\nexit 1\n"
	if err := os.WriteFile(python, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := publishTestConfig(python, "http://unused.invalid", "http://unused.invalid", false)
	p, _ := testPublisher(t, cfg)

	_, err := p.Publish(context.Background(), Options{Tag: "1.2.3"})
	if err == nil {
		t.Fatal("Publish() = nil, want build failure")
	}
	if !strings.Contains(err.Error(), "python -m build") {
		t.Errorf("error = %q, want mention of the build command", err)
	}
	if !strings.Contains(err.Error(), "missing pyproject.toml") {
		t.Errorf("error = %q, want captured build output", err)
	}
}

// A manifest check failure aborts the workflow before any upload.
func TestPublisher_ManifestFailureAbortsUpload(t *testing.T) {
	var uploads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
	}))
	defer srv.Close()

	cfg := publishTestConfig(fakeBuildPython(t), srv.URL, "http://unused.invalid", true)
	p, _ := testPublisher(t, cfg)
	p.SetTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "minted"}))

	// The root is not a repository and the fake sdist is not a real
	// archive, so the manifest check fails either way.
	_, err := p.Publish(context.Background(), Options{Tag: "1.2.3"})
	if err == nil {
		t.Fatal("Publish() = nil, want manifest check failure")
	}
	if got := uploads.Load(); got != 0 {
		t.Errorf("uploads = %d, want 0 after manifest failure", got)
	}
}

func TestSingleMatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.whl", "b.whl", "only.tar.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got, err := singleMatch(dir, "*.tar.gz"); err != nil || filepath.Base(got) != "only.tar.gz" {
		t.Errorf("singleMatch(*.tar.gz) = %q, %v, want only.tar.gz", got, err)
	}
	if _, err := singleMatch(dir, "*.whl"); err == nil {
		t.Error("singleMatch(*.whl) = nil, want error for two matches")
	}
	if _, err := singleMatch(dir, "*.zip"); err == nil {
		t.Error("singleMatch(*.zip) = nil, want error for no matches")
	}
}

func TestOutputTail(t *testing.T) {
	s := "one\ntwo\nthree\nfour\n"
	if got := outputTail(s, 2); got != "three\nfour" {
		t.Errorf("outputTail() = %q, want last two lines", got)
	}
	if got := outputTail("short", 5); got != "short" {
		t.Errorf("outputTail() = %q, want input unchanged", got)
	}
}
