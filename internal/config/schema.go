// Package config provides configuration loading and validation for gantry.yaml.
package config

import "sort"

// Config represents the complete gantry.yaml configuration.
type Config struct {
	Project      ProjectConfig                `yaml:"project"`
	Matrix       map[string]EnvironmentConfig `yaml:"matrix,omitempty"`
	Triggers     *TriggersConfig              `yaml:"triggers,omitempty"`
	Publish      *PublishConfig               `yaml:"publish,omitempty"`
	Artifacts    *ArtifactsConfig             `yaml:"artifacts,omitempty"`
	Report       *ReportConfig                `yaml:"report,omitempty"`
	Workers      int                          `yaml:"workers,omitempty"`
	Interpreters map[string]string            `yaml:"interpreters,omitempty"`
	Docker       *DockerConfig                `yaml:"docker,omitempty"`
	Vars         map[string]string            `yaml:"vars,omitempty"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name        string `yaml:"name"`
	Package     string `yaml:"package,omitempty"` // Python import name; defaults to name with hyphens replaced
	Description string `yaml:"description,omitempty"`
	Repository  string `yaml:"repository,omitempty"`
	VersionFile string `yaml:"version_file,omitempty"`
}

// EnvironmentConfig defines one verification environment of the matrix.
type EnvironmentConfig struct {
	Kind     string            `yaml:"kind,omitempty"` // test, lint, packaging, or docs
	Python   string            `yaml:"python,omitempty"`
	Extras   []string          `yaml:"extras,omitempty"`
	Commands []string          `yaml:"commands,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Image    string            `yaml:"image,omitempty"` // Docker image override for this environment
}

// Environment kinds.
const (
	KindTest      = "test"
	KindLint      = "lint"
	KindPackaging = "packaging"
	KindDocs      = "docs"
)

// TriggersConfig declares which trigger kinds may start an invocation.
// Pointer fields distinguish "not configured" (defaults apply) from an
// explicit empty value (kind disabled).
type TriggersConfig struct {
	Branches    []string `yaml:"branches,omitempty"`
	PullRequest *bool    `yaml:"pull_request,omitempty"`
	Schedule    *string  `yaml:"schedule,omitempty"` // cron expression
	Manual      *bool    `yaml:"manual,omitempty"`
	Tags        *string  `yaml:"tags,omitempty"` // release tag glob
}

// PushEnabled reports whether branch pushes may trigger an invocation.
func (t *TriggersConfig) PushEnabled() bool {
	return t != nil && len(t.Branches) > 0
}

// PullRequestEnabled reports whether pull request events may trigger an invocation.
func (t *TriggersConfig) PullRequestEnabled() bool {
	return t != nil && t.PullRequest != nil && *t.PullRequest
}

// ScheduleEnabled reports whether scheduled runs are declared.
func (t *TriggersConfig) ScheduleEnabled() bool {
	return t != nil && t.Schedule != nil && *t.Schedule != ""
}

// ScheduleCron returns the declared cron expression, or "" when disabled.
func (t *TriggersConfig) ScheduleCron() string {
	if t == nil || t.Schedule == nil {
		return ""
	}
	return *t.Schedule
}

// ManualEnabled reports whether manual dispatch is declared.
func (t *TriggersConfig) ManualEnabled() bool {
	return t != nil && t.Manual != nil && *t.Manual
}

// TagsEnabled reports whether tag pushes may trigger an invocation.
func (t *TriggersConfig) TagsEnabled() bool {
	return t != nil && t.Tags != nil && *t.Tags != ""
}

// TagGlob returns the declared release tag glob, or "" when disabled.
func (t *TriggersConfig) TagGlob() string {
	if t == nil || t.Tags == nil {
		return ""
	}
	return *t.Tags
}

// PublishConfig configures the publish stage.
type PublishConfig struct {
	Enabled       *bool  `yaml:"enabled,omitempty"`
	Python        string `yaml:"python,omitempty"`
	Repository    string `yaml:"repository,omitempty"` // index upload endpoint
	MintURL       string `yaml:"mint_url,omitempty"`   // identity-token exchange endpoint
	Audience      string `yaml:"audience,omitempty"`
	CheckManifest *bool  `yaml:"check_manifest,omitempty"`
}

// PublishEnabled reports whether the publish stage may run at all.
func (c *Config) PublishEnabled() bool {
	return c.Publish != nil && c.Publish.Enabled != nil && *c.Publish.Enabled
}

// ManifestCheckEnabled reports whether the sdist manifest comparison runs
// before upload.
func (c *Config) ManifestCheckEnabled() bool {
	return c.Publish != nil && c.Publish.CheckManifest != nil && *c.Publish.CheckManifest
}

// ArtifactsConfig configures artifact collection.
type ArtifactsConfig struct {
	Paths []string     `yaml:"paths,omitempty"` // glob patterns relative to the project root
	Store *StoreConfig `yaml:"store,omitempty"`
}

// StoreConfig configures an optional S3-compatible artifact store.
// Credentials are read from the environment, never from the config file.
type StoreConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix,omitempty"`
	Secure       *bool  `yaml:"secure,omitempty"`
	AccessKeyEnv string `yaml:"access_key_env,omitempty"`
	SecretKeyEnv string `yaml:"secret_key_env,omitempty"`
}

// ReportConfig configures external reporting of invocation results.
type ReportConfig struct {
	GitHub *GitHubReportConfig `yaml:"github,omitempty"`
}

// GitHubReportConfig configures check-run reporting to a GitHub repository.
// Token auth reads GANTRY_GITHUB_TOKEN (or GITHUB_TOKEN); App auth uses the
// key triple below.
type GitHubReportConfig struct {
	Owner          string `yaml:"owner,omitempty"`
	Repo           string `yaml:"repo,omitempty"`
	AppID          int64  `yaml:"app_id,omitempty"`
	InstallationID int64  `yaml:"installation_id,omitempty"`
	PrivateKey     string `yaml:"private_key,omitempty"` // path to the App PEM key
}

// DockerConfig configures container-backed execution contexts.
type DockerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Image   string `yaml:"image,omitempty"` // template; ${python} expands to the interpreter version
}

// DockerEnabled reports whether container execution is the configured default.
// CLI flags override this per run.
func (c *Config) DockerEnabled() bool {
	return c.Docker != nil && c.Docker.Enabled != nil && *c.Docker.Enabled
}

// DockerImage returns the configured container image template.
func (c *Config) DockerImage() string {
	if c.Docker != nil && c.Docker.Image != "" {
		return c.Docker.Image
	}
	return DefaultDockerImage
}

// EnvironmentNames returns the matrix environment names in sorted order.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Matrix))
	for name := range c.Matrix {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
