// Package gantry provides public constants and utilities for external tools
// integrating with Gantry.
package gantry

// Exit codes returned by the gantry CLI.
// These constants allow external tools (CI wrappers, shell scripts) to check
// exit codes symbolically rather than using magic numbers.
const (
	// ExitSuccess indicates the command completed successfully. For `ci` and
	// `run` this means every selected environment passed.
	ExitSuccess = 0

	// ExitFailure indicates a verification failure (an environment failed,
	// the invocation was cancelled, or the publish stage failed).
	ExitFailure = 1

	// ExitConfigError indicates a configuration error (invalid gantry.yaml,
	// schema violation, bad command-line usage).
	ExitConfigError = 2

	// ExitSetupError indicates a host setup error (Docker unavailable,
	// state directory not writable, missing required tool).
	ExitSetupError = 3
)
