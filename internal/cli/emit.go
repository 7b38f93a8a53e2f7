package cli

import (
	"fmt"

	"github.com/gantryci/gantry/internal/annotation"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/output"
)

// cmdEmit prints one runtime annotation to stdout. Commands running inside
// an environment call this to pass structured data back to the runner,
// which folds the annotations into the run report.
func cmdEmit(args []string) int {
	if wantsHelp(args) {
		printEmitUsage()
		return errors.ExitSuccess
	}
	if len(args) == 0 {
		out.ErrorPrefix("emit requires an annotation kind")
		out.Hint("run 'gantry emit --help' for the available kinds")
		return errors.ExitConfigError
	}

	kind := args[0]
	rest := args[1:]
	// A -- separator protects values that begin with a dash from global
	// flag parsing; drop it here.
	if len(rest) > 0 && rest[0] == "--" {
		rest = rest[1:]
	}

	line, err := emitLine(kind, rest)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	// Annotations go to stdout undecorated so the runner can scan them.
	fmt.Println(line)
	return errors.ExitSuccess
}

func emitLine(kind string, args []string) (string, error) {
	switch kind {
	case "save":
		if len(args) != 2 {
			return "", errors.Config("emit save requires exactly two arguments: <key> <value>")
		}
		return annotation.Save(args[0], args[1]), nil
	case "save-list":
		if len(args) < 1 {
			return "", errors.Config("emit save-list requires a key")
		}
		return annotation.SaveList(args[0], args[1:]...), nil
	case "save-file":
		if len(args) < 2 {
			return "", errors.Config("emit save-file requires <key> <path> [refs...]")
		}
		return annotation.SaveFile(args[0], args[1], args[2:]...), nil
	case "save-file-list":
		if len(args) < 2 {
			return "", errors.Config("emit save-file-list requires <key> and at least one <path[:ref,...]> entry")
		}
		line, err := annotation.SaveFileList(args[0], args[1:]...)
		if err != nil {
			return "", errors.Config(err.Error())
		}
		return line, nil
	case "error":
		if len(args) != 1 {
			return "", errors.Config("emit error requires exactly one message")
		}
		return annotation.Error(args[0]), nil
	case "warning":
		if len(args) != 1 {
			return "", errors.Config("emit warning requires exactly one message")
		}
		return annotation.Warning(args[0]), nil
	case "info":
		if len(args) != 1 {
			return "", errors.Config("emit info requires exactly one message")
		}
		return annotation.Info(args[0]), nil
	case "progress":
		if len(args) != 1 {
			return "", errors.Config("emit progress requires exactly one value between 0 and 1")
		}
		line, err := annotation.ProgressString(args[0])
		if err != nil {
			return "", errors.Config(err.Error())
		}
		return line, nil
	case "check-rc":
		if len(args) < 1 {
			return "", errors.Config("emit check-rc requires a return code")
		}
		line, err := annotation.CheckRC(args[0], args[1:]...)
		if err != nil {
			return "", errors.Config(err.Error())
		}
		return line, nil
	}
	return "", errors.Configf("unknown annotation kind %q", kind)
}

func printEmitUsage() {
	w := output.New()
	w.HelpTitle("gantry emit - print a runtime annotation for the current step")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry emit <kind> [arguments...]")
	w.Println("")
	w.HelpSection("Kinds:")
	w.HelpSubCommand("save <key> <value>", "record one value", helpEmitKindWidth)
	w.HelpSubCommand("save-list <key> [values...]", "record a list of values", helpEmitKindWidth)
	w.HelpSubCommand("save-file <key> <path> [refs...]", "record a file with references", helpEmitKindWidth)
	w.HelpSubCommand("save-file-list <key> <path[:ref,...]>...", "record several files", helpEmitKindWidth)
	w.HelpSubCommand("error <message>", "report an error message", helpEmitKindWidth)
	w.HelpSubCommand("warning <message>", "report a warning message", helpEmitKindWidth)
	w.HelpSubCommand("info <message>", "report an informational message", helpEmitKindWidth)
	w.HelpSubCommand("progress <value>", "report progress between 0 and 1", helpEmitKindWidth)
	w.HelpSubCommand("check-rc <rc> [ok-codes...] [message]", "report a checked return code", helpEmitKindWidth)
	w.Println("")
	w.Println("Use -- before values that begin with a dash:")
	w.HelpExample("gantry emit info -- --starting--", "message with leading dashes")
	w.Println("")
	w.HelpSection("Examples:")
	w.HelpExample("gantry emit save coverage 93.4", "")
	w.HelpExample("gantry emit save-file report report.html", "")
	w.HelpExample("gantry emit check-rc $? 0 2 \"tests failed\"", "")
}
