package env

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/interp"
)

func TestVenvBin(t *testing.T) {
	t.Parallel()
	got := venvBin(filepath.Join("work", "venv"))
	want := filepath.Join("work", "venv", "bin")
	if runtime.GOOS == "windows" {
		want = filepath.Join("work", "venv", "Scripts")
	}
	if got != want {
		t.Errorf("venvBin() = %q, want %q", got, want)
	}
}

func TestHostRuntime_CommandEnv(t *testing.T) {
	t.Parallel()
	cfg := config.EnvironmentConfig{
		Kind:   config.KindTest,
		Python: "3.9",
		Env:    map[string]string{"PYTHONHASHSEED": "0"},
	}
	e := New("py39", cfg, "/checkout", "pkg", nil)

	rt := &hostRuntime{
		env: e,
		opts: Options{
			Root:    "/checkout",
			Environ: []string{"PATH=/usr/bin", "HOME=/home/u"},
		},
		dir:  "/tmp/work/py39",
		venv: "/tmp/work/py39/venv",
	}

	environ := rt.commandEnv()
	byKey := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			t.Fatalf("malformed environ entry %q", kv)
		}
		// Later entries override earlier ones, same as os/exec.
		byKey[k] = v
	}

	binDir := venvBin("/tmp/work/py39/venv")
	if !strings.HasPrefix(byKey["PATH"], binDir) {
		t.Errorf("PATH = %q, want venv bin %q first", byKey["PATH"], binDir)
	}
	if byKey["VIRTUAL_ENV"] != "/tmp/work/py39/venv" {
		t.Errorf("VIRTUAL_ENV = %q, want venv path", byKey["VIRTUAL_ENV"])
	}
	if byKey["GANTRY_ENV"] != "py39" {
		t.Errorf("GANTRY_ENV = %q, want py39", byKey["GANTRY_ENV"])
	}
	if byKey["GANTRY_ENV_KIND"] != config.KindTest {
		t.Errorf("GANTRY_ENV_KIND = %q, want %q", byKey["GANTRY_ENV_KIND"], config.KindTest)
	}
	if byKey["PYTHONHASHSEED"] != "0" {
		t.Errorf("PYTHONHASHSEED = %q, want 0", byKey["PYTHONHASHSEED"])
	}
	if byKey["HOME"] != "/home/u" {
		t.Errorf("HOME = %q, want inherited value", byKey["HOME"])
	}
}

func TestHostProvisioner_MissingInterpreter(t *testing.T) {
	t.Setenv(interp.EnvVar("9.99"), "")

	resolver := interp.NewResolver(&config.Config{})
	p := NewHostProvisioner(Options{Root: t.TempDir(), WorkDir: t.TempDir()}, resolver)
	e := New("py999", config.EnvironmentConfig{Kind: config.KindTest, Python: "9.99"}, "/x", "x", nil)

	_, err := p.Provision(context.Background(), e)
	if err == nil {
		t.Fatal("Provision() error = nil, want setup error")
	}
	if got := errors.GetExitCode(err); got != errors.ExitSetupError {
		t.Errorf("GetExitCode() = %d, want %d", got, errors.ExitSetupError)
	}
}

func TestHostProvisioner_VenvCreateFails(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "missing-python")
	resolver := interp.NewResolver(&config.Config{
		Interpreters: map[string]string{"3.99": missing},
	})

	workDir := t.TempDir()
	p := NewHostProvisioner(Options{Root: t.TempDir(), WorkDir: workDir}, resolver)
	e := New("py399", config.EnvironmentConfig{Kind: config.KindTest, Python: "3.99"}, "/x", "x", nil)

	_, err := p.Provision(context.Background(), e)
	if err == nil {
		t.Fatal("Provision() error = nil, want venv failure")
	}
	if got := errors.GetExitCode(err); got != errors.ExitSetupError {
		t.Errorf("GetExitCode() = %d, want %d", got, errors.ExitSetupError)
	}
	if !strings.Contains(err.Error(), "py399") || !strings.Contains(err.Error(), "python -m venv") {
		t.Errorf("error = %q, want environment and step named", err)
	}

	// The half-built work directory is discarded.
	if _, statErr := os.Stat(filepath.Join(workDir, "py399")); !os.IsNotExist(statErr) {
		t.Errorf("work directory survived a failed provision: %v", statErr)
	}
}

func TestHostRuntime_CloseRemovesWorkDir(t *testing.T) {
	t.Parallel()
	workDir := t.TempDir()
	dir := filepath.Join(workDir, "py38")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	rt := &hostRuntime{opts: Options{}, dir: dir}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Close() kept the work directory")
	}
}

func TestHostRuntime_CloseKeepsWorkDir(t *testing.T) {
	t.Parallel()
	workDir := t.TempDir()
	dir := filepath.Join(workDir, "py38")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	rt := &hostRuntime{opts: Options{KeepWork: true}, dir: dir}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Close() with KeepWork removed the work directory: %v", err)
	}
}
