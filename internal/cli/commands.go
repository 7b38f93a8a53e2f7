package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/env"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/interp"
	"github.com/gantryci/gantry/internal/output"
)

// out is the shared writer for command output.
var out = output.New()

// Help column widths.
const (
	helpCommandWidth    = 12
	helpFlagWidthShort  = 14
	helpFlagWidthGlobal = 15
	helpEnvVarWidth     = 20
	helpEmitKindWidth   = 42
)

func applyVerbosityToOutput(opts *GlobalOptions) {
	if opts.Quiet {
		out.SetQuiet(true)
	}
}

// loadProject locates and loads the project configuration. On failure it
// prints the error and returns a nil project with the exit code to use.
func loadProject(opts *GlobalOptions) (*config.Project, int) {
	var proj *config.Project
	var err error
	if opts.Config != "" {
		proj, err = config.LoadProjectFile(opts.Config)
	} else {
		proj, err = config.LoadProject()
	}
	if err != nil {
		out.ErrorPrefix("%v", err)
		return nil, errors.ExitConfigError
	}
	return proj, errors.ExitSuccess
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so an
// interrupted pipeline still records its cancelled environments.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// displayPath shortens path to be relative to root when it lies inside it.
func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func cmdList(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printListUsage()
		return errors.ExitSuccess
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}
	for _, warning := range proj.Warnings {
		out.WarningSimple("%s", warning)
	}

	resolver := interp.NewResolver(proj.Config)
	for _, e := range env.FromConfig(proj.Config, proj.Root) {
		out.EnvInfo(e.Name, e.Kind, e.Python)
		if opts.Verbose {
			if !resolver.Exists(e.Python) {
				out.EnvDetail("python", "no interpreter found on this host")
			}
			if len(e.Extras) > 0 {
				out.EnvDetail("extras", strings.Join(e.Extras, ", "))
			}
			for _, command := range e.Commands {
				out.EnvDetail("command", command)
			}
		}
	}
	return errors.ExitSuccess
}

func printListUsage() {
	w := output.New()
	w.HelpTitle("gantry list - list the environments of the verification matrix")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry list [-v]")
	w.Println("")
	w.Println("With -v each environment also shows its extras and commands.")
}

func cmdValidate(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printValidateUsage()
		return errors.ExitSuccess
	}

	path := opts.Config
	if path == "" {
		root, err := config.FindRoot()
		if err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitConfigError
		}
		path = filepath.Join(root, config.ConfigFileName)
	}

	cfg, warnings, err := config.LoadAndValidate(path)
	for _, warning := range warnings {
		out.WarningSimple("%s", warning)
	}
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	out.ValidationSuccess("%s is valid.", displayPath(mustGetwd(), path))
	out.SummaryItem("Project", cfg.Project.Name)
	out.SummaryItem("Environments", strings.Join(cfg.EnvironmentNames(), ", "))
	if cfg.PublishEnabled() {
		out.SummaryItem("Publish", cfg.Publish.Repository)
	} else {
		out.SummaryItem("Publish", "disabled")
	}
	if len(warnings) > 0 {
		out.SummaryItem("Warnings", fmt.Sprintf("%d", len(warnings)))
	}
	return errors.ExitSuccess
}

func mustGetwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func printValidateUsage() {
	w := output.New()
	w.HelpTitle("gantry validate - validate gantry.yaml and report warnings")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry validate")
	w.HelpUsage("gantry --config path/to/gantry.yaml validate")
	w.Println("")
	w.Println("Validation failures exit with code 2. Warnings do not fail validation.")
}

func cmdCompose(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printComposeUsage()
		return errors.ExitSuccess
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	path, err := env.WriteComposeFile(proj.Config, proj.Root)
	if err != nil {
		out.ErrorPrefix("compose: %v", err)
		return errors.GetExitCode(err)
	}
	out.Success("Wrote %s", displayPath(proj.Root, path))
	out.Hint("run 'docker compose -f %s up' to start the matrix", env.ComposeFileName)
	return errors.ExitSuccess
}

func printComposeUsage() {
	w := output.New()
	w.HelpTitle("gantry compose - write a docker compose file mirroring the matrix")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry compose")
	w.Println("")
	w.Println("The file %s is written to the project root with one", env.ComposeFileName)
	w.Println("service per environment. Existing files are overwritten.")
}
