package env

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/interp"
)

// HostProvisioner builds a disposable virtualenv per environment on the host.
type HostProvisioner struct {
	opts     Options
	resolver *interp.Resolver
}

// NewHostProvisioner creates a host provisioner. The resolver maps matrix
// interpreter versions to executables.
func NewHostProvisioner(opts Options, resolver *interp.Resolver) *HostProvisioner {
	return &HostProvisioner{opts: opts, resolver: resolver}
}

// Provision creates the environment's work directory and virtualenv,
// installs the project with its extras, and verifies the dependency set
// with pip check before any command runs.
func (p *HostProvisioner) Provision(ctx context.Context, e *Environment) (Runtime, error) {
	python, err := p.resolver.Resolve(e.Python)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(p.opts.WorkDir, e.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Setupf("create work directory %s: %v", dir, err)
	}

	rt := &hostRuntime{
		env:  e,
		opts: p.opts,
		dir:  dir,
		venv: filepath.Join(dir, "venv"),
	}

	if out, err := rt.runDirect(ctx, python, "-m", "venv", rt.venv); err != nil {
		rt.discard()
		return nil, setupFailure(e, "python -m venv", out, err)
	}
	install := "pip install " + e.InstallSpec()
	if out, err := rt.Run(ctx, install); err != nil {
		rt.discard()
		return nil, setupFailure(e, install, out, err)
	}
	if out, err := rt.Run(ctx, "pip check"); err != nil {
		rt.discard()
		return nil, setupFailure(e, "pip check", out, err)
	}

	return rt, nil
}

// hostRuntime runs commands with the environment's virtualenv activated:
// venv bin prepended to PATH, VIRTUAL_ENV set, project root as the working
// directory.
type hostRuntime struct {
	env  *Environment
	opts Options
	dir  string // work directory for this environment
	venv string // virtualenv root inside the work directory
}

func (r *hostRuntime) Run(ctx context.Context, command string) (string, error) {
	cmd := shellCommand(ctx, command)
	cmd.Dir = r.opts.Root
	cmd.Env = r.commandEnv()
	return runCapture(cmd, r.opts.Verbose, r.opts.stdout(), r.opts.stderr())
}

// runDirect executes a program without a shell. Used for the interpreter
// itself, whose resolved path may not be shell-safe.
func (r *hostRuntime) runDirect(ctx context.Context, program string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = r.opts.Root
	cmd.Env = r.commandEnv()
	return runCapture(cmd, r.opts.Verbose, r.opts.stdout(), r.opts.stderr())
}

// commandEnv assembles the process environment for commands.
// Precedence (highest to lowest):
//  1. Per-environment variables from configuration
//  2. Virtualenv activation variables (PATH, VIRTUAL_ENV)
//  3. Inherited process environment
//
// Later entries override earlier ones when the same key appears multiple
// times.
func (r *hostRuntime) commandEnv() []string {
	environ := prependPath(r.opts.environ(), venvBin(r.venv))
	environ = append(environ, "VIRTUAL_ENV="+r.venv)

	extra := r.env.ExtraEnv()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		environ = append(environ, k+"="+extra[k])
	}
	return environ
}

func (r *hostRuntime) Close() error {
	if r.opts.KeepWork {
		return nil
	}
	return os.RemoveAll(r.dir)
}

// discard removes a half-built context after a provisioning failure.
// Failed contexts are kept with --keep-work for inspection.
func (r *hostRuntime) discard() {
	if !r.opts.KeepWork {
		os.RemoveAll(r.dir)
	}
}

// venvBin returns the executable directory of a virtualenv.
func venvBin(venv string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venv, "Scripts")
	}
	return filepath.Join(venv, "bin")
}
