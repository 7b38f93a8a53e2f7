package cli

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
	"github.com/gantryci/gantry/internal/output"
)

//go:embed init_template.yaml
var configTemplate string

// cmdInit scaffolds gantry.yaml, a VERSION file and a .gitignore entry in
// the current directory. It is idempotent: existing files are left alone.
func cmdInit(args []string) int {
	if wantsHelp(args) {
		printInitUsage()
		return errors.ExitSuccess
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			out.ErrorPrefix("init: unknown option %q", arg)
			return errors.ExitConfigError
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitRuntime
	}

	name := sanitizeProjectName(filepath.Base(cwd))
	var created []string
	isNew := false

	configPath := filepath.Join(cwd, config.ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		content := strings.ReplaceAll(configTemplate, "{{project}}", name)
		if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitSetupError
		}
		created = append(created, config.ConfigFileName)
		isNew = true
	}

	versionPath := filepath.Join(cwd, config.DefaultVersionFile)
	if _, err := os.Stat(versionPath); os.IsNotExist(err) {
		if err := os.WriteFile(versionPath, []byte("0.1.0\n"), 0o644); err != nil {
			out.WarningSimple("could not create %s: %v", config.DefaultVersionFile, err)
		} else {
			created = append(created, config.DefaultVersionFile)
		}
	}

	if updateGitignore(cwd) {
		created = append(created, ".gitignore")
	}

	switch {
	case isNew:
		out.Success("Initialized gantry project %q", name)
	case len(created) > 0:
		out.Success("Updated gantry project")
	default:
		out.Info("Already initialized, nothing to do.")
	}

	for _, file := range created {
		out.StepDetail("%s", file)
	}

	if isNew {
		out.Hint("edit %s, then run 'gantry validate'", config.ConfigFileName)
	}
	return errors.ExitSuccess
}

// sanitizeProjectName turns a directory name into a valid project name:
// lowercase, alphanumeric runs joined by single hyphens.
func sanitizeProjectName(dir string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(dir) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}

	name := b.String()
	if name == "" {
		return "my-project"
	}
	return name
}

// updateGitignore appends the state directory to .gitignore when missing.
// It reports whether the file was changed.
func updateGitignore(dir string) bool {
	path := filepath.Join(dir, ".gitignore")
	entry := config.StateDirName + "/"

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			return false
		}
	}

	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		out.WarningSimple("could not update .gitignore: %v", err)
		return false
	}
	return true
}

func printInitUsage() {
	w := output.New()
	w.HelpTitle("gantry init - scaffold gantry.yaml and supporting files")
	w.Println("")
	w.HelpSection("Usage:")
	w.HelpUsage("gantry init")
	w.Println("")
	w.Println("Creates gantry.yaml, a VERSION file and a .gitignore entry for")
	w.Println("the %s state directory. Existing files are never", config.StateDirName)
	w.Println("overwritten; running init twice is safe.")
}
