package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
)

// chdir changes into dir for the duration of the test; testing.T.Chdir
// needs Go 1.24 and the build toolchain is older.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Error(err)
		}
	})
}

func TestCmdInit_Fresh(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if got := cmdInit(nil); got != errors.ExitSuccess {
		t.Fatalf("cmdInit() = %d, want %d", got, errors.ExitSuccess)
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("gantry.yaml not created: %v", err)
	}
	if strings.Contains(string(data), "{{project}}") {
		t.Error("template placeholder not substituted")
	}

	// The scaffold must pass its own validation.
	if _, _, err := config.LoadAndValidate(configPath); err != nil {
		t.Errorf("generated config invalid: %v", err)
	}

	version, err := os.ReadFile(filepath.Join(dir, config.DefaultVersionFile))
	if err != nil {
		t.Fatalf("VERSION not created: %v", err)
	}
	if string(version) != "0.1.0\n" {
		t.Errorf("VERSION = %q, want %q", version, "0.1.0\n")
	}

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf(".gitignore not created: %v", err)
	}
	if !strings.Contains(string(gitignore), config.StateDirName+"/") {
		t.Errorf(".gitignore = %q, missing state directory entry", gitignore)
	}
}

func TestCmdInit_Idempotent(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if got := cmdInit(nil); got != errors.ExitSuccess {
		t.Fatalf("first cmdInit() = %d", got)
	}
	before, err := os.ReadFile(filepath.Join(dir, config.ConfigFileName))
	if err != nil {
		t.Fatal(err)
	}

	if got := cmdInit(nil); got != errors.ExitSuccess {
		t.Fatalf("second cmdInit() = %d", got)
	}
	after, err := os.ReadFile(filepath.Join(dir, config.ConfigFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("second init rewrote gantry.yaml")
	}
}

func TestCmdInit_KeepsExistingVersion(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, config.DefaultVersionFile), []byte("7.3.1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := cmdInit(nil); got != errors.ExitSuccess {
		t.Fatalf("cmdInit() = %d", got)
	}

	version, err := os.ReadFile(filepath.Join(dir, config.DefaultVersionFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(version) != "7.3.1\n" {
		t.Errorf("VERSION = %q, want existing content kept", version)
	}
}

func TestCmdInit_RejectsFlags(t *testing.T) {
	if got := cmdInit([]string{"--force"}); got != errors.ExitConfigError {
		t.Errorf("cmdInit(--force) = %d, want %d", got, errors.ExitConfigError)
	}
}

func TestSanitizeProjectName(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"pipeline-runtime-utils", "pipeline-runtime-utils"},
		{"My Project", "my-project"},
		{"foo_bar", "foo-bar"},
		{"--weird--", "weird"},
		{"CamelCase", "camelcase"},
		{"...", "my-project"},
		{"a..b", "a-b"},
	}

	for _, tt := range tests {
		if got := sanitizeProjectName(tt.dir); got != tt.want {
			t.Errorf("sanitizeProjectName(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestUpdateGitignore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(path, []byte("dist/"), 0644); err != nil {
		t.Fatal(err)
	}

	if !updateGitignore(dir) {
		t.Fatal("updateGitignore() = false, want change")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "dist/\n" + config.StateDirName + "/\n"
	if string(data) != want {
		t.Errorf(".gitignore = %q, want %q", data, want)
	}

	if updateGitignore(dir) {
		t.Error("updateGitignore() = true on second call, want no change")
	}
}
