// Package errors provides structured error types and exit codes for Gantry.
package errors

import (
	"fmt"
)

// Exit codes surfaced by the CLI.
const (
	ExitSuccess     = 0 // Success
	ExitRuntime     = 1 // Verification or runtime failure (environment failed, publish failed, etc.)
	ExitConfigError = 2 // Configuration error (invalid config, bad usage, etc.)
	ExitSetupError  = 3 // Host setup error (Docker not available, state dir not writable, etc.)
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindNotFound
	KindValidation
	KindSetup
	KindCanceled
)

// PipelineError is the base error type for Gantry.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Env     string // Environment name if applicable
	Command string // Command if applicable
	Cause   error  // Underlying error
}

func (e *PipelineError) Error() string {
	if e.Env != "" && e.Command != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Env, e.Command, e.Message)
	}
	if e.Env != "" {
		return fmt.Sprintf("[%s] %s", e.Env, e.Message)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *PipelineError) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindValidation:
		return ExitConfigError
	case KindSetup:
		return ExitSetupError
	default:
		return ExitRuntime
	}
}

// New creates a new runtime error.
func New(message string) *PipelineError {
	return &PipelineError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Newf creates a new runtime error with formatting.
func Newf(format string, args ...interface{}) *PipelineError {
	return New(fmt.Sprintf(format, args...))
}

// Config creates a new configuration error.
func Config(message string) *PipelineError {
	return &PipelineError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *PipelineError {
	return Config(fmt.Sprintf(format, args...))
}

// Setup creates a new host setup error.
func Setup(message string) *PipelineError {
	return &PipelineError{
		Kind:    KindSetup,
		Message: message,
	}
}

// Setupf creates a new host setup error with formatting.
func Setupf(format string, args ...interface{}) *PipelineError {
	return Setup(fmt.Sprintf(format, args...))
}

// Canceled creates an error recording that work was cut short by cancellation.
func Canceled(message string) *PipelineError {
	return &PipelineError{
		Kind:    KindCanceled,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// EnvError creates an error for a specific environment.
func EnvError(env, command, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindRuntime,
		Env:     env,
		Command: command,
		Message: message,
	}
}

// NotFound creates a not found error.
func NotFound(what, name string) *PipelineError {
	return &PipelineError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if pe, ok := err.(*PipelineError); ok {
		return pe.ExitCode()
	}
	return ExitRuntime
}
