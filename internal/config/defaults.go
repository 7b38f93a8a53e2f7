package config

import (
	"regexp"
	"strings"
)

// Default configuration values.
const (
	DefaultSchedule          = "30 2 * * *"
	DefaultTagPattern        = "[0-9]+.[0-9]+.[0-9]+*"
	DefaultPublishPython     = "3.8"
	DefaultRepositoryURL     = "https://upload.pypi.org/legacy/"
	DefaultMintTokenURL      = "https://pypi.org/_/oidc/mint-token"
	DefaultAudience          = "pypi"
	DefaultVersionFile       = "VERSION"
	DefaultDockerImage       = "python:${python}-slim"
	DefaultStoreAccessKeyEnv = "GANTRY_STORE_ACCESS_KEY"
	DefaultStoreSecretKeyEnv = "GANTRY_STORE_SECRET_KEY"
)

// DefaultBranches are the branch-push triggers enabled when gantry.yaml
// declares none.
var DefaultBranches = []string{"master", "main"}

// DefaultArtifactPaths are the artifact globs collected when gantry.yaml
// declares none.
var DefaultArtifactPaths = []string{"dist/*.tar.gz", "dist/*.whl", "coverage.xml"}

// pyEnvName matches test environment names that encode an interpreter
// version, e.g. py38 or py312.
var pyEnvName = regexp.MustCompile(`^py(\d)(\d+)$`)

// DefaultMatrix returns the verification matrix used when gantry.yaml
// declares none. Test environments cover the supported interpreter range;
// lint, packaging, and docs run on the oldest supported interpreter.
func DefaultMatrix() map[string]EnvironmentConfig {
	return map[string]EnvironmentConfig{
		"py38":      {Kind: KindTest, Python: "3.8"},
		"py39":      {Kind: KindTest, Python: "3.9"},
		"py310":     {Kind: KindTest, Python: "3.10"},
		"py311":     {Kind: KindTest, Python: "3.11"},
		"py312":     {Kind: KindTest, Python: "3.12"},
		"linters":   {Kind: KindLint, Python: "3.8"},
		"packaging": {Kind: KindPackaging, Python: "3.8"},
		"docs":      {Kind: KindDocs, Python: "3.8"},
	}
}

// defaultExtras returns the dependency extras installed for an environment kind.
func defaultExtras(kind string) []string {
	switch kind {
	case KindPackaging:
		return []string{"package"}
	case KindDocs:
		return []string{"docs"}
	default:
		return []string{"test"}
	}
}

// defaultCommands returns the command sequence for an environment kind.
func defaultCommands(kind string) []string {
	switch kind {
	case KindTest:
		return []string{"pytest --verbose --cov=${package}"}
	case KindLint:
		return []string{
			"black --check .",
			"flake8 .",
			"pydocstyle ${package}",
		}
	case KindPackaging:
		return []string{
			"check-manifest",
			"python setup.py check --metadata --restructuredtext --strict",
		}
	case KindDocs:
		return []string{"sphinx-build -W -b html -E docs build/sphinx/html"}
	}
	return nil
}

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	applyProjectDefaults(cfg)
	applyMatrixDefaults(cfg)
	applyTriggerDefaults(cfg)
	applyPublishDefaults(cfg)
	applyArtifactsDefaults(cfg)
	applyDockerDefaults(cfg)
}

func applyProjectDefaults(cfg *Config) {
	if cfg.Project.Package == "" {
		cfg.Project.Package = strings.ReplaceAll(cfg.Project.Name, "-", "_")
	}
	if cfg.Project.VersionFile == "" {
		cfg.Project.VersionFile = DefaultVersionFile
	}
}

func applyMatrixDefaults(cfg *Config) {
	if len(cfg.Matrix) == 0 {
		cfg.Matrix = DefaultMatrix()
	}

	base := DefaultMatrix()
	for name, env := range cfg.Matrix {
		// Environments named after a default matrix entry inherit its kind
		// and interpreter.
		if d, ok := base[name]; ok {
			if env.Kind == "" {
				env.Kind = d.Kind
			}
			if env.Python == "" {
				env.Python = d.Python
			}
		}
		if env.Kind == "" && pyEnvName.MatchString(name) {
			env.Kind = KindTest
		}
		if env.Python == "" {
			if m := pyEnvName.FindStringSubmatch(name); m != nil {
				env.Python = m[1] + "." + m[2]
			}
		}
		if env.Extras == nil {
			env.Extras = defaultExtras(env.Kind)
		}
		if len(env.Commands) == 0 {
			env.Commands = defaultCommands(env.Kind)
		}
		cfg.Matrix[name] = env
	}
}

func applyTriggerDefaults(cfg *Config) {
	if cfg.Triggers == nil {
		cfg.Triggers = &TriggersConfig{}
	}
	t := cfg.Triggers
	if t.Branches == nil {
		t.Branches = append([]string(nil), DefaultBranches...)
	}
	if t.PullRequest == nil {
		t.PullRequest = boolPtr(true)
	}
	if t.Schedule == nil {
		t.Schedule = stringPtr(DefaultSchedule)
	}
	if t.Manual == nil {
		t.Manual = boolPtr(true)
	}
	if t.Tags == nil {
		t.Tags = stringPtr(DefaultTagPattern)
	}
}

func applyPublishDefaults(cfg *Config) {
	if cfg.Publish == nil {
		cfg.Publish = &PublishConfig{}
	}
	p := cfg.Publish
	if p.Enabled == nil {
		p.Enabled = boolPtr(true)
	}
	if p.Python == "" {
		p.Python = DefaultPublishPython
	}
	if p.Repository == "" {
		p.Repository = DefaultRepositoryURL
	}
	if p.MintURL == "" {
		p.MintURL = DefaultMintTokenURL
	}
	if p.Audience == "" {
		p.Audience = DefaultAudience
	}
	if p.CheckManifest == nil {
		p.CheckManifest = boolPtr(true)
	}
}

func applyArtifactsDefaults(cfg *Config) {
	if cfg.Artifacts == nil {
		cfg.Artifacts = &ArtifactsConfig{}
	}
	a := cfg.Artifacts
	if a.Paths == nil {
		a.Paths = append([]string(nil), DefaultArtifactPaths...)
	}
	if a.Store != nil {
		if a.Store.Secure == nil {
			a.Store.Secure = boolPtr(true)
		}
		if a.Store.AccessKeyEnv == "" {
			a.Store.AccessKeyEnv = DefaultStoreAccessKeyEnv
		}
		if a.Store.SecretKeyEnv == "" {
			a.Store.SecretKeyEnv = DefaultStoreSecretKeyEnv
		}
	}
}

func applyDockerDefaults(cfg *Config) {
	if cfg.Docker == nil {
		return // container execution is optional
	}
	if cfg.Docker.Enabled == nil {
		cfg.Docker.Enabled = boolPtr(false)
	}
	if cfg.Docker.Image == "" {
		cfg.Docker.Image = DefaultDockerImage
	}
}

func boolPtr(v bool) *bool       { return &v }
func stringPtr(v string) *string { return &v }
