package env

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
)

// Mount points inside the container. The checkout is mounted read-write at
// guestRoot and the per-environment work directory at guestWork, so the
// virtualenv and pip cache survive across container invocations. The venv
// must sit at a stable guest path because its scripts embed absolute
// interpreter paths.
const (
	guestRoot = "/work"
	guestWork = "/gantry"
	guestVenv = guestWork + "/venv"
)

// IsDockerAvailable checks if Docker is available on the system.
// Returns true if docker is available, false otherwise.
func IsDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// CheckDockerAvailable returns a setup error if Docker is not available.
func CheckDockerAvailable() error {
	if !IsDockerAvailable() {
		return errors.Setup("docker is not available or not running")
	}
	return nil
}

// GetDockerMode determines if container execution should be used based on
// flags, environment, and configuration.
// Precedence: explicit flag > GANTRY_DOCKER env var > config > default (false)
func GetDockerMode(explicitDocker, explicitNoDocker bool, cfg *config.Config) bool {
	// Explicit flags take highest precedence
	if explicitNoDocker {
		return false
	}
	if explicitDocker {
		return true
	}

	if v := os.Getenv("GANTRY_DOCKER"); v != "" {
		v = strings.ToLower(v)
		return v == "1" || v == "true" || v == "yes"
	}

	if cfg != nil {
		return cfg.DockerEnabled()
	}

	// Default to native execution
	return false
}

// DockerProvisioner builds container-backed contexts from the official
// Python images. Provisioning runs the same steps as the host provisioner,
// inside the container.
type DockerProvisioner struct {
	opts  Options
	image string // image template; ${python} expands to the interpreter version
}

// NewDockerProvisioner creates a docker provisioner. imageTemplate is the
// configured default image, used when an environment declares no override.
func NewDockerProvisioner(opts Options, imageTemplate string) *DockerProvisioner {
	return &DockerProvisioner{opts: opts, image: imageTemplate}
}

// Provision creates the environment's work directory on the host, then
// builds the virtualenv, installs the project, and runs pip check inside
// the container.
func (p *DockerProvisioner) Provision(ctx context.Context, e *Environment) (Runtime, error) {
	if err := CheckDockerAvailable(); err != nil {
		return nil, err
	}

	dir := filepath.Join(p.opts.WorkDir, e.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Setupf("create work directory %s: %v", dir, err)
	}

	rt := &dockerRuntime{
		env:   e,
		opts:  p.opts,
		dir:   dir,
		image: p.resolveImage(e),
	}

	if out, err := rt.Run(ctx, "python -m venv "+guestVenv); err != nil {
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

// resolveImage picks the container image for an environment: its declared
// override, or the configured template with ${python} interpolated.
func (p *DockerProvisioner) resolveImage(e *Environment) string {
	image := e.Image
	if image == "" {
		image = p.image
	}
	return e.Interpolate(image)
}

// dockerRuntime runs commands in disposable containers sharing the mounted
// checkout and work directory.
type dockerRuntime struct {
	env   *Environment
	opts  Options
	dir   string // host work directory for this environment
	image string
}

func (r *dockerRuntime) Run(ctx context.Context, command string) (string, error) {
	args := r.buildRunArgs(command)
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = r.opts.Root
	return runCapture(cmd, r.opts.Verbose, r.opts.stdout(), r.opts.stderr())
}

// buildRunArgs constructs the docker run arguments for one command.
func (r *dockerRuntime) buildRunArgs(command string) []string {
	args := []string{"run", "--rm"}

	// Add user mapping on non-Windows systems
	if runtime.GOOS != "windows" {
		args = append(args, "--user", fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()))
	}

	args = append(args,
		"-v", r.opts.Root+":"+guestRoot,
		"-v", r.dir+":"+guestWork,
		"-w", guestRoot,
		"-e", "HOME="+guestWork,
		"-e", "VIRTUAL_ENV="+guestVenv,
	)

	extra := r.env.ExtraEnv()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+extra[k])
	}

	args = append(args, r.image, "sh", "-c", guestCommand(command))
	return args
}

// guestCommand wraps a command line for the container shell, activating the
// virtualenv by prepending its bin directory to the guest PATH. The prefix
// is harmless before the venv exists, which lets venv creation itself go
// through the same path.
func guestCommand(command string) string {
	return "export PATH=" + guestVenv + "/bin:$PATH; " + command
}

func (r *dockerRuntime) Close() error {
	if r.opts.KeepWork {
		return nil
	}
	return os.RemoveAll(r.dir)
}

func (r *dockerRuntime) discard() {
	if !r.opts.KeepWork {
		os.RemoveAll(r.dir)
	}
}
