package cli

import (
	"fmt"
	"strings"

	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/output"
)

const completionCommands = "ci run list validate init emit build compose version help completion"

const completionEmitKinds = "save save-list save-file save-file-list error warning info progress check-rc"

// cmdCompletion prints a completion script for the requested shell. The
// scripts complete commands, per-command flags, annotation kinds, and the
// environment names of the current project.
func cmdCompletion(args []string) int {
	if wantsHelp(args) {
		printCompletionUsage()
		return errors.ExitSuccess
	}
	if len(args) == 0 {
		out.Errorln("usage: gantry completion <bash|zsh|fish> [--alias=NAME]")
		return errors.ExitConfigError
	}

	shell := args[0]
	alias := ""
	for _, arg := range args[1:] {
		if strings.HasPrefix(arg, "--alias=") {
			alias = strings.TrimPrefix(arg, "--alias=")
			continue
		}
		out.ErrorPrefix("completion: unknown argument %q", arg)
		return errors.ExitConfigError
	}

	switch shell {
	case "bash":
		fmt.Print(bashCompletion(alias))
	case "zsh":
		fmt.Print(zshCompletion(alias))
	case "fish":
		fmt.Print(fishCompletion(alias))
	default:
		out.ErrorPrefix("unsupported shell %q (bash, zsh and fish are supported)", shell)
		return errors.ExitConfigError
	}
	return errors.ExitSuccess
}

func bashCompletion(alias string) string {
	script := fmt.Sprintf(`# bash completion for gantry
_gantry_completion() {
    local cur commands
    cur="${COMP_WORDS[COMP_CWORD]}"
    commands="%s"

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=($(compgen -W "${commands}" -- "${cur}"))
        return 0
    fi

    case "${COMP_WORDS[1]}" in
        run)
            local envs
            envs=$(gantry list 2>/dev/null | awk '{print $1}')
            COMPREPLY=($(compgen -W "${envs} --sequential --keep-work" -- "${cur}"))
            ;;
        ci)
            COMPREPLY=($(compgen -W "--on --tag --ref --sequential --keep-work --dry-run --no-publish" -- "${cur}"))
            ;;
        emit)
            COMPREPLY=($(compgen -W "%s" -- "${cur}"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "${cur}"))
            ;;
    esac
    return 0
}
complete -F _gantry_completion gantry
`, completionCommands, completionEmitKinds)

	if alias != "" {
		script += fmt.Sprintf("complete -F _gantry_completion %s\n", alias)
	}
	return script
}

func zshCompletion(alias string) string {
	compdefLine := "#compdef gantry"
	if alias != "" {
		compdefLine += " " + alias
	}

	return fmt.Sprintf(`%s
# zsh completion for gantry
_gantry() {
    local -a commands
    commands=(
        'ci:run the verification matrix, then publish when the gate opens'
        'run:run the matrix or selected environments, never publish'
        'build:build sdist and wheel without uploading'
        'list:list the environments of the verification matrix'
        'validate:validate gantry.yaml and report warnings'
        'init:scaffold gantry.yaml and supporting files'
        'compose:write a docker compose file mirroring the matrix'
        'emit:print a runtime annotation for the current step'
        'completion:generate shell completion'
        'version:print the gantry version'
        'help:show help'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "${words[2]}" in
        run)
            local -a envs
            envs=(${(f)"$(gantry list 2>/dev/null | awk '{print $1}')"})
            _describe 'environment' envs
            ;;
        emit)
            _values 'kind' %s
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
    esac
}
_gantry "$@"
`, compdefLine, completionEmitKinds)
}

func fishCompletion(alias string) string {
	names := []string{"gantry"}
	if alias != "" {
		names = append(names, alias)
	}

	var b strings.Builder
	b.WriteString("# fish completion for gantry\n")
	for _, name := range names {
		b.WriteString(fmt.Sprintf(`complete -c %[1]s -f
complete -c %[1]s -n '__fish_use_subcommand' -a ci -d 'run the verification matrix, then publish when the gate opens'
complete -c %[1]s -n '__fish_use_subcommand' -a run -d 'run the matrix or selected environments, never publish'
complete -c %[1]s -n '__fish_use_subcommand' -a build -d 'build sdist and wheel without uploading'
complete -c %[1]s -n '__fish_use_subcommand' -a list -d 'list the environments of the verification matrix'
complete -c %[1]s -n '__fish_use_subcommand' -a validate -d 'validate gantry.yaml and report warnings'
complete -c %[1]s -n '__fish_use_subcommand' -a init -d 'scaffold gantry.yaml and supporting files'
complete -c %[1]s -n '__fish_use_subcommand' -a compose -d 'write a docker compose file mirroring the matrix'
complete -c %[1]s -n '__fish_use_subcommand' -a emit -d 'print a runtime annotation for the current step'
complete -c %[1]s -n '__fish_use_subcommand' -a completion -d 'generate shell completion'
complete -c %[1]s -n '__fish_use_subcommand' -a version -d 'print the gantry version'
complete -c %[1]s -n '__fish_use_subcommand' -a help -d 'show help'
complete -c %[1]s -n '__fish_seen_subcommand_from run' -a '(gantry list 2>/dev/null | awk \'{print $1}\')'
complete -c %[1]s -n '__fish_seen_subcommand_from emit' -a '%[2]s'
complete -c %[1]s -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'
complete -c %[1]s -l docker -d 'force every environment into containers'
complete -c %[1]s -l no-docker -d 'force every environment onto the host'
complete -c %[1]s -l config -r -d 'load configuration from a file'
complete -c %[1]s -s q -l quiet -d 'suppress progress output'
complete -c %[1]s -s v -l verbose -d 'stream command output'
`, name, completionEmitKinds))
	}
	return b.String()
}

func printCompletionUsage() {
	w := output.New()
	w.HelpTitle("gantry completion - generate shell completion")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry completion <bash|zsh|fish> [--alias=NAME]")
	w.Println("")
	w.HelpSection("Examples:")
	w.HelpExample("gantry completion bash > /etc/bash_completion.d/gantry", "")
	w.HelpExample("gantry completion zsh > ~/.zsh/completions/_gantry", "")
	w.HelpExample("gantry completion fish > ~/.config/fish/completions/gantry.fish", "")
	w.Println("")
	w.Println("With --alias=NAME the script also completes for a shell alias.")
}
