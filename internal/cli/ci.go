package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gantryci/gantry/internal/artifact"
	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/env"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/interp"
	"github.com/gantryci/gantry/internal/output"
	"github.com/gantryci/gantry/internal/publish"
	"github.com/gantryci/gantry/internal/report"
	"github.com/gantryci/gantry/internal/runner"
	"github.com/gantryci/gantry/internal/trigger"
)

type ciOptions struct {
	on         string
	tag        string
	ref        string
	sequential bool
	keepWork   bool
	dryRun     bool
	noPublish  bool
}

func parseCIFlags(args []string) (*ciOptions, error) {
	opts := &ciOptions{}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "--sequential":
			opts.sequential = true
			i++
		case arg == "--keep-work":
			opts.keepWork = true
			i++
		case arg == "--dry-run":
			opts.dryRun = true
			i++
		case arg == "--no-publish":
			opts.noPublish = true
			i++
		case arg == "--on":
			if i+1 >= len(args) {
				return nil, errors.Config("--on requires a trigger kind")
			}
			opts.on = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--on="):
			opts.on = strings.TrimPrefix(arg, "--on=")
			i++
		case arg == "--tag":
			if i+1 >= len(args) {
				return nil, errors.Config("--tag requires a value")
			}
			opts.tag = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--tag="):
			opts.tag = strings.TrimPrefix(arg, "--tag=")
			i++
		case arg == "--ref":
			if i+1 >= len(args) {
				return nil, errors.Config("--ref requires a value")
			}
			opts.ref = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--ref="):
			opts.ref = strings.TrimPrefix(arg, "--ref=")
			i++
		default:
			return nil, errors.Configf("unknown argument %q for ci", arg)
		}
	}

	return opts, nil
}

// cmdCI runs the full pipeline: resolve the trigger, run the matrix,
// evaluate the publish gate, publish, store artifacts, and report.
func cmdCI(args []string, gopts *GlobalOptions) int {
	if wantsHelp(args) {
		printCIUsage()
		return errors.ExitSuccess
	}

	ciOpts, err := parseCIFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	proj, exitCode := loadProject(gopts)
	if proj == nil {
		return exitCode
	}
	for _, warning := range proj.Warnings {
		out.WarningSimple("%s", warning)
	}
	cfg := proj.Config

	ev, err := trigger.Resolve(ciOpts.on, ciOpts.tag, ciOpts.ref)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	if err := trigger.Allowed(cfg.Triggers, ev); err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	out.Info("Trigger: %s", ev.Describe())

	envs := env.FromConfig(cfg, proj.Root)

	prov, err := buildProvisioner(proj, gopts, ciOpts.keepWork)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	inv := runner.New(prov, out).Run(ctx, envs, ev, runner.RunOptions{
		Project:    cfg.Project.Name,
		Sequential: ciOpts.sequential,
		Workers:    cfg.Workers,
	})
	inv.GateOpen = publish.Gate(inv, len(envs))

	exit := errors.GetExitCode(inv.Err())

	if inv.GateOpen && cfg.PublishEnabled() && !ciOpts.noPublish {
		artifacts, err := publish.NewPublisher(proj.Root, cfg, out).Publish(ctx, publish.Options{
			Tag:    ev.Tag,
			DryRun: ciOpts.dryRun,
		})
		if err != nil {
			out.ErrorPrefix("publish: %v", err)
			exit = errors.GetExitCode(err)
		} else if !ciOpts.dryRun {
			inv.Published = true
			inv.PublishedArtifacts = artifacts
		}
	}

	// Artifact storage failures only fail the invocation once something
	// was published; before that they are warnings.
	if err := collectAndStore(ctx, proj, inv); err != nil {
		if inv.Published {
			out.ErrorPrefix("artifacts: %v", err)
			if exit == errors.ExitSuccess {
				exit = errors.GetExitCode(err)
			}
		} else {
			out.WarningSimple("artifacts: %v", err)
		}
	}

	writeRunReport(proj, inv)
	reportToGitHub(ctx, cfg, ev, inv)

	runner.PrintSummary(inv, out)
	return exit
}

type runOptions struct {
	sequential bool
	keepWork   bool
}

func parseRunFlags(args []string) (*runOptions, []string, error) {
	opts := &runOptions{}
	var names []string

	for _, arg := range args {
		switch {
		case arg == "--sequential":
			opts.sequential = true
		case arg == "--keep-work":
			opts.keepWork = true
		case strings.HasPrefix(arg, "-"):
			return nil, nil, errors.Configf("unknown argument %q for run", arg)
		default:
			names = append(names, arg)
		}
	}

	return opts, names, nil
}

// cmdRun runs the matrix, or a selection of its environments, without
// trigger filtering. The publish gate stays closed; publishing is the ci
// command's job.
func cmdRun(args []string, gopts *GlobalOptions) int {
	if wantsHelp(args) {
		printRunUsage()
		return errors.ExitSuccess
	}

	runOpts, names, err := parseRunFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	proj, exitCode := loadProject(gopts)
	if proj == nil {
		return exitCode
	}
	for _, warning := range proj.Warnings {
		out.WarningSimple("%s", warning)
	}
	cfg := proj.Config

	envs := env.FromConfig(cfg, proj.Root)
	if len(names) > 0 {
		selected, missing := env.Select(envs, names)
		if len(missing) > 0 {
			out.ErrorPrefix("unknown environment(s): %s", strings.Join(missing, ", "))
			out.Hint("run 'gantry list' to see the matrix")
			return errors.ExitConfigError
		}
		envs = selected
	}

	ev := trigger.Event{Kind: trigger.KindManual, Source: trigger.SourceDefault}

	prov, err := buildProvisioner(proj, gopts, runOpts.keepWork)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	inv := runner.New(prov, out).Run(ctx, envs, ev, runner.RunOptions{
		Project:    cfg.Project.Name,
		Sequential: runOpts.sequential,
		Workers:    cfg.Workers,
	})

	if err := collectAndStore(ctx, proj, inv); err != nil {
		out.WarningSimple("artifacts: %v", err)
	}
	writeRunReport(proj, inv)

	runner.PrintSummary(inv, out)
	return errors.GetExitCode(inv.Err())
}

// cmdBuild builds both distributions without publishing. It needs no
// trigger and ignores the publish gate.
func cmdBuild(args []string, gopts *GlobalOptions) int {
	if wantsHelp(args) {
		printBuildUsage()
		return errors.ExitSuccess
	}
	if len(args) > 0 {
		out.ErrorPrefix("build takes no arguments, got %q", strings.Join(args, " "))
		return errors.ExitConfigError
	}

	proj, exitCode := loadProject(gopts)
	if proj == nil {
		return exitCode
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := publish.NewPublisher(proj.Root, proj.Config, out).BuildDistributions(ctx); err != nil {
		out.ErrorPrefix("build: %v", err)
		return errors.GetExitCode(err)
	}
	return errors.ExitSuccess
}

// buildProvisioner picks host or docker provisioning from flags, the
// GANTRY_DOCKER variable, and the configuration, in that order.
func buildProvisioner(proj *config.Project, gopts *GlobalOptions, keepWork bool) (env.Provisioner, error) {
	opts := env.Options{
		Root:     proj.Root,
		WorkDir:  filepath.Join(proj.StateDir(), "work"),
		KeepWork: keepWork,
		Verbose:  gopts.Verbose,
	}

	if env.GetDockerMode(gopts.Docker, gopts.NoDocker, proj.Config) {
		if err := env.CheckDockerAvailable(); err != nil {
			return nil, err
		}
		return env.NewDockerProvisioner(opts, proj.Config.DockerImage()), nil
	}
	return env.NewHostProvisioner(opts, interp.NewResolver(proj.Config)), nil
}

// collectAndStore gathers configured artifact globs into the state
// directory and uploads them when an object store is configured.
func collectAndStore(ctx context.Context, proj *config.Project, inv *runner.Invocation) error {
	items, err := artifact.Collect(proj.Root, inv.ID, proj.Config.Artifacts.Paths, out)
	if err != nil {
		return err
	}
	if len(items) == 0 || !artifact.StoreEnabled(proj.Config) {
		return nil
	}

	store, err := artifact.NewStore(proj.Config.Artifacts.Store)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}
	return store.Upload(ctx, inv.ID, items)
}

// writeRunReport persists the invocation under the state directory. A
// failed report never fails the invocation.
func writeRunReport(proj *config.Project, inv *runner.Invocation) {
	path, err := report.WriteRun(proj.Root, inv)
	if err != nil {
		out.WarningSimple("run report: %v", err)
		return
	}
	out.Info("Run report: %s", displayPath(proj.Root, path))
}

// reportToGitHub posts check runs for the invocation. Reporting is best
// effort and never changes the exit code.
func reportToGitHub(ctx context.Context, cfg *config.Config, ev trigger.Event, inv *runner.Invocation) {
	if !report.GitHubEnabled(cfg, ev) {
		return
	}

	gh := cfg.Report.GitHub
	client, err := report.NewGitHubClient(ctx, gh)
	if err != nil {
		out.WarningSimple("github reporting: %v", err)
		return
	}
	if err := report.NewCheckReporter(client, gh.Owner, gh.Repo).Report(ctx, inv); err != nil {
		out.WarningSimple("github reporting: %v", err)
	}
}

func printCIUsage() {
	w := output.New()
	w.HelpTitle("gantry ci - run the verification matrix, then publish when the gate opens")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry ci [flags]")
	w.Println("")
	w.HelpSection("Flags:")
	w.HelpFlag("--on KIND", "trigger kind: push, pull_request, schedule, manual, tag", helpFlagWidthShort)
	w.HelpFlag("--tag TAG", "tag name for --on tag", helpFlagWidthShort)
	w.HelpFlag("--ref REF", "git ref, e.g. refs/heads/master", helpFlagWidthShort)
	w.HelpFlag("--sequential", "run environments one at a time", helpFlagWidthShort)
	w.HelpFlag("--keep-work", "keep per-environment work directories", helpFlagWidthShort)
	w.HelpFlag("--dry-run", "stop the publish stage before uploading", helpFlagWidthShort)
	w.HelpFlag("--no-publish", "run the matrix but never publish", helpFlagWidthShort)
	w.Println("")
	w.Println("Without flags the trigger is read from the CI environment")
	w.Println("(GITHUB_EVENT_NAME, GITHUB_REF) and falls back to a branch push.")
	w.Println("")
	w.HelpSection("Examples:")
	w.HelpExample("gantry ci", "pipeline for the current trigger")
	w.HelpExample("gantry ci --on tag --tag 1.2.3 --dry-run", "rehearse a release")
	w.HelpExample("gantry ci --on pull_request", "what a pull request would run")
}

func printRunUsage() {
	w := output.New()
	w.HelpTitle("gantry run - run the matrix or selected environments, never publish")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry run [flags] [environment...]")
	w.Println("")
	w.HelpSection("Flags:")
	w.HelpFlag("--sequential", "run environments one at a time", helpFlagWidthShort)
	w.HelpFlag("--keep-work", "keep per-environment work directories", helpFlagWidthShort)
	w.Println("")
	w.HelpSection("Examples:")
	w.HelpExample("gantry run", "run the full matrix")
	w.HelpExample("gantry run py38 linters", "run two environments")
	w.HelpExample("gantry run --keep-work py38", "keep the venv for inspection")
}

func printBuildUsage() {
	w := output.New()
	w.HelpTitle("gantry build - build sdist and wheel without uploading")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry build")
	w.Println("")
	w.Println("Distributions are written to dist/ in the project root. The")
	w.Println("source manifest check runs when enabled in gantry.yaml.")
}
