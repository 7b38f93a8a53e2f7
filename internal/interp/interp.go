// Package interp resolves Python interpreters for matrix environments.
package interp

import (
	"os"
	"os/exec"
	"strings"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
)

// EnvVarPrefix is the prefix of per-version interpreter override variables.
const EnvVarPrefix = "GANTRY_PYTHON_"

// EnvVar returns the override environment variable name for an interpreter
// version, e.g. GANTRY_PYTHON_3_10 for "3.10".
func EnvVar(version string) string {
	return EnvVarPrefix + strings.ReplaceAll(version, ".", "_")
}

// Resolver resolves interpreter versions to executables. Lookup order:
// config override, override environment variable, then python<version> on
// PATH. A version that resolves nowhere is a host setup error.
type Resolver struct {
	overrides map[string]string
	getenv    func(string) string
	lookPath  func(string) (string, error)
}

// NewResolver creates a resolver with interpreter overrides from configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		overrides: cfg.Interpreters,
		getenv:    os.Getenv,
		lookPath:  exec.LookPath,
	}
}

// Resolve returns the interpreter executable for a major.minor version.
func (r *Resolver) Resolve(version string) (string, error) {
	if path, ok := r.overrides[version]; ok && path != "" {
		return path, nil
	}

	if path := r.getenv(EnvVar(version)); path != "" {
		return path, nil
	}

	name := "python" + version
	path, err := r.lookPath(name)
	if err != nil {
		return "", errors.Setupf("Python %s not found (tried config override, $%s, and %q on PATH)",
			version, EnvVar(version), name)
	}
	return path, nil
}

// Exists reports whether an interpreter for the version can be resolved.
func (r *Resolver) Exists(version string) bool {
	_, err := r.Resolve(version)
	return err == nil
}
