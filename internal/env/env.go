// Package env models matrix environments and their execution contexts.
package env

import (
	"regexp"
	"strings"

	"github.com/gantryci/gantry/internal/config"
)

// varPattern matches variable references in the format ${varname}.
// Captures the variable name in group 1.
// Examples: ${package}, ${root}, ${python}
var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// escapePlaceholder is a sentinel value used during variable interpolation
// to temporarily replace escaped variable syntax ($${var}) with a placeholder.
// This prevents ${var} from being interpreted as a variable reference when
// the user wants a literal ${var} in the output.
//
// NUL bytes (\x00) are used because:
//  1. NUL cannot appear in POSIX shell command strings (terminates C strings)
//  2. NUL cannot appear in YAML scalars loaded from gantry.yaml
//  3. This guarantees no collision with any user-provided variable values
//
// The interpolation process:
//  1. Replace $${var} with escapePlaceholder
//  2. Replace ${var} with actual values
//  3. Restore escapePlaceholder back to ${var} (literal)
const escapePlaceholder = "\x00ESCAPED\x00"

// Environment is one verification environment of the matrix, resolved
// against the project it belongs to.
type Environment struct {
	Name     string
	Kind     string
	Python   string
	Extras   []string
	Commands []string
	Image    string // container image override, empty means the configured default

	root    string            // absolute project root
	pkg     string            // Python import package name
	vars    map[string]string // interpolation variables from config
	procEnv map[string]string // per-environment process variables
}

// New creates an environment from its matrix entry. root is the absolute
// project root, pkg the Python import package name, and vars the
// project-level interpolation variables.
func New(name string, cfg config.EnvironmentConfig, root, pkg string, vars map[string]string) *Environment {
	return &Environment{
		Name:     name,
		Kind:     cfg.Kind,
		Python:   cfg.Python,
		Extras:   append([]string(nil), cfg.Extras...),
		Commands: append([]string(nil), cfg.Commands...),
		Image:    cfg.Image,
		root:     root,
		pkg:      pkg,
		vars:     copyMapNilIfEmpty(vars),
		procEnv:  copyMapNilIfEmpty(cfg.Env),
	}
}

// FromConfig builds the full matrix in environment name order.
func FromConfig(cfg *config.Config, root string) []*Environment {
	names := cfg.EnvironmentNames()
	envs := make([]*Environment, 0, len(names))
	for _, name := range names {
		envs = append(envs, New(name, cfg.Matrix[name], root, cfg.Project.Package, cfg.Vars))
	}
	return envs
}

// Select filters environments by name, preserving matrix order.
// Unknown names are reported so a typo never silently shrinks a run.
func Select(envs []*Environment, names []string) ([]*Environment, []string) {
	if len(names) == 0 {
		return envs, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	selected := make([]*Environment, 0, len(names))
	for _, e := range envs {
		if wanted[e.Name] {
			selected = append(selected, e)
			delete(wanted, e.Name)
		}
	}
	var unknown []string
	for _, name := range names {
		if wanted[name] {
			unknown = append(unknown, name)
		}
	}
	return selected, unknown
}

// Interpolate replaces ${var} with variable values.
// Escaping: $${var} becomes ${var} (literal).
//
// Built-in variables:
//   - ${package}: Python import package name
//   - ${root}: project root directory (absolute path)
//   - ${env}: environment name (e.g., "py310", "linters")
//   - ${python}: interpreter version (e.g., "3.10")
//
// Project-level vars from configuration may shadow the built-ins.
// Unmatched variables are kept as-is.
func (e *Environment) Interpolate(s string) string {
	// First, handle escaped variables: $${var} -> placeholder
	result := strings.ReplaceAll(s, "$${", escapePlaceholder)

	vars := map[string]string{
		"package": e.pkg,
		"root":    e.root,
		"env":     e.Name,
		"python":  e.Python,
	}
	for k, v := range e.vars {
		vars[k] = v
	}

	result = varPattern.ReplaceAllStringFunc(result, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})

	// Restore escaped variables: placeholder -> ${var}
	result = strings.ReplaceAll(result, escapePlaceholder, "${")

	return result
}

// ResolvedCommands returns the environment's command list with variables
// interpolated.
func (e *Environment) ResolvedCommands() []string {
	commands := make([]string, len(e.Commands))
	for i, cmd := range e.Commands {
		commands[i] = e.Interpolate(cmd)
	}
	return commands
}

// ExtraEnv returns the process variables every command of this environment
// runs with: the per-environment env map (values interpolated) plus the
// identification variables GANTRY_ENV and GANTRY_ENV_KIND.
func (e *Environment) ExtraEnv() map[string]string {
	extra := make(map[string]string, len(e.procEnv)+2)
	for k, v := range e.procEnv {
		extra[k] = e.Interpolate(v)
	}
	extra["GANTRY_ENV"] = e.Name
	extra["GANTRY_ENV_KIND"] = e.Kind
	return extra
}

// Root returns the absolute project root the environment runs against.
func (e *Environment) Root() string { return e.root }

// Package returns the Python import package name.
func (e *Environment) Package() string { return e.pkg }

// InstallSpec returns the pip editable install argument for the project,
// e.g. "-e .[test]" or "-e ." when no extras are declared.
func (e *Environment) InstallSpec() string {
	if len(e.Extras) == 0 {
		return "-e ."
	}
	return "-e .[" + strings.Join(e.Extras, ",") + "]"
}

// copyMapNilIfEmpty copies the map, returning nil if the map is nil or empty.
// Returning nil for empty maps is intentional: in YAML unmarshaling, nil
// signals "not configured" while an empty map signals "explicitly configured
// as empty". Since configuration rarely distinguishes these cases, we
// normalize both to nil to simplify downstream nil checks.
func copyMapNilIfEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
