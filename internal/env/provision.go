package env

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gantryci/gantry/internal/errors"
)

// Provisioner prepares isolated execution contexts for matrix environments.
// Implementations: HostProvisioner (virtualenv on the host) and
// DockerProvisioner (official Python containers).
type Provisioner interface {
	// Provision builds the context for e and returns a Runtime bound to it.
	// Provisioning failures (missing interpreter, venv or install failure)
	// are setup errors attributed to the environment.
	Provision(ctx context.Context, e *Environment) (Runtime, error)
}

// Runtime executes commands inside a provisioned context.
type Runtime interface {
	// Run executes one shell command line with the environment's variables
	// set, returning the combined stdout+stderr output. A non-zero exit is
	// returned as an error alongside the captured output.
	Run(ctx context.Context, command string) (string, error)

	// Close releases the context. The work directory is removed unless the
	// provisioner was asked to keep it.
	Close() error
}

// Options carries the provisioning inputs shared by all provisioners.
type Options struct {
	Root     string // absolute project root
	WorkDir  string // invocation work directory; one subdirectory per environment
	KeepWork bool   // keep work directories after Close
	Verbose  bool   // stream command output while capturing

	// Stdout and Stderr receive streamed output in verbose mode.
	// Nil writers default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// Environ is the base process environment. Nil means os.Environ().
	Environ []string
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o Options) stderr() io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return os.Stderr
}

func (o Options) environ() []string {
	if o.Environ != nil {
		return append([]string(nil), o.Environ...)
	}
	return os.Environ()
}

// setupFailure builds the setup error for a failed provisioning step,
// folding a tail of the captured output into the message so the failure is
// diagnosable without rerunning in verbose mode.
func setupFailure(e *Environment, step, out string, err error) error {
	msg := fmt.Sprintf("%v", err)
	if tail := lastLines(out, 20); tail != "" {
		msg += "\n" + tail
	}
	return &errors.PipelineError{
		Kind:    errors.KindSetup,
		Env:     e.Name,
		Command: step,
		Message: msg,
	}
}

// lastLines returns at most n trailing non-empty lines of s.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		kept = append(kept, lines[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "\n")
}
