package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// MaxWorkers caps the parallel worker count, from config or environment.
const MaxWorkers = 256

// Validation patterns.
var (
	// Project name: a distribution name as the index accepts it. Must start
	// and end with a letter or digit; dots, underscores, and hyphens allowed
	// in between.
	projectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`)

	// Package name: a Python import name.
	packageNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	// Environment name: lowercase letters, digits, underscores, and hyphens.
	envNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

	// Interpreter version: major.minor.
	pythonVersionPattern = regexp.MustCompile(`^\d+\.\d+$`)

	// A single cron field: digits, wildcards, steps, ranges, lists.
	cronFieldPattern = regexp.MustCompile(`^[0-9*,/-]+$`)
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors and returns warnings for
// non-fatal issues. It expects defaults to have been applied.
func Validate(cfg *Config) (warnings []string, err error) {
	if err := validateProject(cfg); err != nil {
		return nil, err
	}

	if err := validateMatrix(cfg); err != nil {
		return nil, err
	}

	if err := validateTriggers(cfg); err != nil {
		return nil, err
	}

	if err := validateWorkers(cfg); err != nil {
		return nil, err
	}

	if err := validateInterpreters(cfg); err != nil {
		return nil, err
	}

	if err := validatePublish(cfg); err != nil {
		return nil, err
	}

	if err := validateArtifacts(cfg); err != nil {
		return nil, err
	}

	if err := validateReport(cfg); err != nil {
		return nil, err
	}

	return nil, nil
}

func validateProject(cfg *Config) error {
	if err := ValidateProjectName(cfg.Project.Name); err != nil {
		return err
	}
	if cfg.Project.Package != "" && !packageNamePattern.MatchString(cfg.Project.Package) {
		return &ValidationError{
			Field:   "project.package",
			Message: "must be a valid Python import name",
		}
	}
	return nil
}

func validateMatrix(cfg *Config) error {
	for name, env := range cfg.Matrix {
		if err := ValidateEnvironmentName(name); err != nil {
			return err
		}
		if err := validateEnvironmentConfig(name, env); err != nil {
			return err
		}
	}
	return nil
}

func validateEnvironmentConfig(name string, env EnvironmentConfig) error {
	switch env.Kind {
	case KindTest, KindLint, KindPackaging, KindDocs:
	case "":
		return &ValidationError{
			Field:   fmt.Sprintf("matrix.%s.kind", name),
			Message: "is required",
		}
	default:
		return &ValidationError{
			Field:   fmt.Sprintf("matrix.%s.kind", name),
			Message: `must be "test", "lint", "packaging", or "docs"`,
		}
	}

	if env.Python == "" {
		return &ValidationError{
			Field:   fmt.Sprintf("matrix.%s.python", name),
			Message: "is required",
		}
	}
	if !pythonVersionPattern.MatchString(env.Python) {
		return &ValidationError{
			Field:   fmt.Sprintf("matrix.%s.python", name),
			Message: `must be a major.minor interpreter version such as "3.10"`,
		}
	}

	return nil
}

func validateTriggers(cfg *Config) error {
	if cfg.Triggers == nil {
		return nil
	}
	if cron := cfg.Triggers.ScheduleCron(); cron != "" {
		if err := validateCron(cron); err != nil {
			return err
		}
	}
	return nil
}

func validateCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return &ValidationError{
			Field:   "triggers.schedule",
			Message: fmt.Sprintf("cron expression must have 5 fields, got %d", len(fields)),
		}
	}
	for _, f := range fields {
		if !cronFieldPattern.MatchString(f) {
			return &ValidationError{
				Field:   "triggers.schedule",
				Message: fmt.Sprintf("invalid cron field %q", f),
			}
		}
	}
	return nil
}

func validateWorkers(cfg *Config) error {
	if cfg.Workers < 0 {
		return &ValidationError{Field: "workers", Message: "must not be negative"}
	}
	if cfg.Workers > MaxWorkers {
		return &ValidationError{
			Field:   "workers",
			Message: fmt.Sprintf("must be at most %d", MaxWorkers),
		}
	}
	return nil
}

func validateInterpreters(cfg *Config) error {
	for version := range cfg.Interpreters {
		if !pythonVersionPattern.MatchString(version) {
			return &ValidationError{
				Field:   fmt.Sprintf("interpreters.%s", version),
				Message: `key must be a major.minor interpreter version such as "3.10"`,
			}
		}
	}
	return nil
}

func validatePublish(cfg *Config) error {
	if cfg.Publish == nil {
		return nil
	}
	p := cfg.Publish
	if p.Python != "" && !pythonVersionPattern.MatchString(p.Python) {
		return &ValidationError{
			Field:   "publish.python",
			Message: `must be a major.minor interpreter version such as "3.8"`,
		}
	}
	if err := validateHTTPURL("publish.repository", p.Repository); err != nil {
		return err
	}
	if err := validateHTTPURL("publish.mint_url", p.MintURL); err != nil {
		return err
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an http(s) URL"}
	}
	return nil
}

func validateArtifacts(cfg *Config) error {
	if cfg.Artifacts == nil || cfg.Artifacts.Store == nil {
		return nil
	}
	store := cfg.Artifacts.Store
	if store.Endpoint == "" {
		return &ValidationError{Field: "artifacts.store.endpoint", Message: "is required"}
	}
	if store.Bucket == "" {
		return &ValidationError{Field: "artifacts.store.bucket", Message: "is required"}
	}
	return nil
}

func validateReport(cfg *Config) error {
	if cfg.Report == nil || cfg.Report.GitHub == nil {
		return nil
	}
	gh := cfg.Report.GitHub
	if (gh.Owner == "") != (gh.Repo == "") {
		return &ValidationError{
			Field:   "report.github",
			Message: "owner and repo must be set together",
		}
	}
	appFields := 0
	if gh.AppID != 0 {
		appFields++
	}
	if gh.InstallationID != 0 {
		appFields++
	}
	if gh.PrivateKey != "" {
		appFields++
	}
	if appFields != 0 && appFields != 3 {
		return &ValidationError{
			Field:   "report.github",
			Message: "app_id, installation_id, and private_key must be set together",
		}
	}
	return nil
}

// ValidateProjectName checks if a project name is valid.
// Returns a ValidationError if the name is empty, too long (>128 chars),
// or doesn't match the required pattern.
func ValidateProjectName(name string) error {
	if name == "" {
		return &ValidationError{Field: "project.name", Message: "is required"}
	}
	if len(name) > 128 {
		return &ValidationError{Field: "project.name", Message: "must be 128 characters or less"}
	}
	if !projectNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   "project.name",
			Message: "must start and end with a letter or digit; dots, underscores, and hyphens allowed in between",
		}
	}
	return nil
}

// ValidateEnvironmentName checks if a matrix environment name is valid.
func ValidateEnvironmentName(name string) error {
	if name == "" {
		return &ValidationError{Field: "environment name", Message: "is required"}
	}
	if !envNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   fmt.Sprintf("matrix.%s", name),
			Message: "environment name must match pattern ^[a-z][a-z0-9_-]*$",
		}
	}
	return nil
}
