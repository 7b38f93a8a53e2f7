// Package main tests for the gantry CLI entry point.
package main

import (
	"os/exec"
	"strings"
	"testing"
)

// TestMain_BuildVerification verifies the binary builds successfully.
// This is a smoke test to ensure the package compiles without errors.
func TestMain_BuildVerification(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("go", "build", "-o", "/dev/null", ".")
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to build main package: %v", err)
	}
}

// TestMain_HelpFlag verifies the --help flag works correctly.
func TestMain_HelpFlag(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("go", "run", ".", "--help")
	out, err := cmd.CombinedOutput()
	if err != nil {
		// --help should exit with code 0
		t.Fatalf("--help failed: %v\noutput: %s", err, out)
	}

	output := string(out)
	if !strings.Contains(output, "gantry") {
		t.Errorf("--help output missing command name: %s", output)
	}
}

// TestMain_VersionFlag verifies the --version flag works correctly.
func TestMain_VersionFlag(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("go", "run", ".", "--version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("--version failed: %v\noutput: %s", err, out)
	}

	if !strings.Contains(string(out), "gantry") {
		t.Errorf("--version output missing command name: %s", out)
	}
}

// TestMain_UnknownCommand verifies unknown commands exit with code 2.
func TestMain_UnknownCommand(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("go", "run", ".", "deploy")
	err := cmd.Run()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("unknown command did not fail: %v", err)
	}
	if code := exitErr.ExitCode(); code != 2 {
		t.Errorf("unknown command exit code = %d, want 2", code)
	}
}
