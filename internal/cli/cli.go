// Package cli implements the gantry command line interface.
package cli

import (
	"fmt"
	"strings"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/env"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/output"
)

// Version is the gantry version, injected at build time via ldflags.
var Version = "dev"

// GlobalOptions carries flags that apply to every command.
type GlobalOptions struct {
	Docker   bool
	NoDocker bool
	Quiet    bool
	Verbose  bool
	Config   string
}

// Run executes the command line interface and returns an exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return errors.ExitSuccess
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return errors.ExitSuccess
	case "--version", "version":
		fmt.Printf("gantry %s\n", Version)
		return errors.ExitSuccess
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	if len(remaining) == 0 {
		printUsage()
		return errors.ExitSuccess
	}

	command := remaining[0]
	commandArgs := remaining[1:]

	switch command {
	case "ci":
		return cmdCI(commandArgs, opts)
	case "run":
		return cmdRun(commandArgs, opts)
	case "list":
		return cmdList(commandArgs, opts)
	case "validate":
		return cmdValidate(commandArgs, opts)
	case "init":
		return cmdInit(commandArgs)
	case "emit":
		return cmdEmit(commandArgs)
	case "build":
		return cmdBuild(commandArgs, opts)
	case "compose":
		return cmdCompose(commandArgs, opts)
	case "completion":
		return cmdCompletion(commandArgs)
	case "version":
		fmt.Printf("gantry %s\n", Version)
		return errors.ExitSuccess
	case "help":
		printUsage()
		return errors.ExitSuccess
	default:
		out.ErrorPrefix("unknown command %q", command)
		out.Hint("run 'gantry help' for the command list")
		return errors.ExitConfigError
	}
}

// wantsHelp reports whether args request help before the first --
// separator. Arguments after -- belong to the command, not to gantry.
func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "-h" || arg == "--help" || arg == "help" {
			return true
		}
	}
	return false
}

// parseGlobalFlags extracts global flags from args and returns the
// remaining arguments in order. Everything after a bare -- is passed
// through untouched, including the separator itself.
func parseGlobalFlags(args []string) (*GlobalOptions, []string, error) {
	opts := &GlobalOptions{}
	var remaining []string

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "--docker":
			opts.Docker = true
			i++
		case arg == "--no-docker":
			opts.NoDocker = true
			i++
		case arg == "-q" || arg == "--quiet":
			opts.Quiet = true
			i++
		case arg == "-v" || arg == "--verbose":
			opts.Verbose = true
			i++
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--config requires a file path")
			}
			opts.Config = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--config="):
			opts.Config = strings.TrimPrefix(arg, "--config=")
			i++
		case arg == "--":
			remaining = append(remaining, args[i:]...)
			i = len(args)
		default:
			remaining = append(remaining, arg)
			i++
		}
	}

	if err := validateGlobalOptions(opts); err != nil {
		return nil, nil, err
	}

	applyVerbosityToOutput(opts)

	return opts, remaining, nil
}

func validateGlobalOptions(opts *GlobalOptions) error {
	if opts.Quiet && opts.Verbose {
		return fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}
	if opts.Docker && opts.NoDocker {
		return fmt.Errorf("--docker and --no-docker are mutually exclusive")
	}
	if opts.Config != "" && strings.HasPrefix(opts.Config, "-") {
		return fmt.Errorf("--config requires a file path, got %q", opts.Config)
	}
	return nil
}

func printUsage() {
	w := output.New()

	w.HelpTitle(fmt.Sprintf("gantry %s - verification pipeline orchestrator", Version))
	w.Println("")

	proj, err := config.LoadProject()
	if err == nil {
		printProjectHelp(w, proj)
	} else {
		printGenericHelp(w)
	}
}

// printProjectHelp shows help with the current project's matrix inlined.
func printProjectHelp(w *output.Writer, proj *config.Project) {
	w.HelpSection("Usage:")
	w.HelpUsage("gantry <command> [flags]")
	w.HelpUsage("gantry run [environment...]")
	w.Println("")

	printPipelineCommands(w)

	w.HelpSection(fmt.Sprintf("Environments in %s:", proj.Config.Project.Name))
	for _, e := range env.FromConfig(proj.Config, proj.Root) {
		w.HelpCommand(e.Name, fmt.Sprintf("%s, python %s", e.Kind, e.Python), helpCommandWidth)
	}
	w.Println("")

	printUtilityCommands(w)
	printGlobalFlags(w)

	w.HelpSection("Examples:")
	w.HelpExample("gantry ci", "run the full pipeline for the current trigger")
	if names := proj.Config.EnvironmentNames(); len(names) > 0 {
		w.HelpExample("gantry run "+names[0], "run a single environment")
	}
	w.HelpExample("gantry ci --on tag --tag 1.2.3", "simulate a tag-push pipeline")
}

// printGenericHelp shows help outside a gantry project.
func printGenericHelp(w *output.Writer) {
	w.HelpSection("Usage:")
	w.HelpUsage("gantry <command> [flags]")
	w.Println("")

	printPipelineCommands(w)
	printUtilityCommands(w)
	printGlobalFlags(w)

	w.HelpSection("Examples:")
	w.HelpExample("gantry init", "scaffold gantry.yaml in the current directory")
	w.HelpExample("gantry ci", "run the full pipeline for the current trigger")
	w.HelpExample("gantry run py38 linters", "run selected environments")
}

func printPipelineCommands(w *output.Writer) {
	w.HelpSection("Pipeline commands:")
	w.HelpCommand("ci", "run the verification matrix, then publish when the gate opens", helpCommandWidth)
	w.HelpCommand("run", "run the matrix or selected environments, never publish", helpCommandWidth)
	w.HelpCommand("build", "build sdist and wheel without uploading", helpCommandWidth)
	w.Println("")
}

func printUtilityCommands(w *output.Writer) {
	w.HelpSection("Other commands:")
	w.HelpCommand("list", "list the environments of the verification matrix", helpCommandWidth)
	w.HelpCommand("validate", "validate gantry.yaml and report warnings", helpCommandWidth)
	w.HelpCommand("init", "scaffold gantry.yaml and supporting files", helpCommandWidth)
	w.HelpCommand("compose", "write a docker compose file mirroring the matrix", helpCommandWidth)
	w.HelpCommand("emit", "print a runtime annotation for the current step", helpCommandWidth)
	w.HelpCommand("completion", "generate shell completion (bash, zsh, fish)", helpCommandWidth)
	w.HelpCommand("version", "print the gantry version", helpCommandWidth)
	w.HelpCommand("help", "show this help", helpCommandWidth)
	w.Println("")
}

func printGlobalFlags(w *output.Writer) {
	w.HelpSection("Global flags:")
	w.HelpFlag("--docker", "force every environment into containers", helpFlagWidthGlobal)
	w.HelpFlag("--no-docker", "force every environment onto the host", helpFlagWidthGlobal)
	w.HelpFlag("--config PATH", "load configuration from PATH instead of gantry.yaml", helpFlagWidthGlobal)
	w.HelpFlag("-q, --quiet", "suppress progress output", helpFlagWidthGlobal)
	w.HelpFlag("-v, --verbose", "stream command output while environments run", helpFlagWidthGlobal)
	w.Println("")

	w.HelpSection("Environment:")
	w.HelpEnvVar("GANTRY_DOCKER", "set to 1/true to prefer containers when no flag is given", helpEnvVarWidth)
	w.HelpEnvVar("GANTRY_PYTHON_X_Y", "absolute path of the python X.Y interpreter", helpEnvVarWidth)
	w.HelpEnvVar("GANTRY_PARALLEL", "worker count for parallel runs (default: CPU count)", helpEnvVarWidth)
	w.Println("")
}
