package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gantryci/gantry/internal/config"
)

// ComposeFileName is the compose file gantry writes. A distinct name keeps
// a project's own docker-compose.yml untouched.
const ComposeFileName = "docker-compose.gantry.yml"

// ComposeConfig represents a docker-compose file structure.
type ComposeConfig struct {
	Services map[string]ComposeService `yaml:"services"`
}

// ComposeService represents a service in a docker-compose file.
type ComposeService struct {
	Image       string            `yaml:"image,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	WorkingDir  string            `yaml:"working_dir,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Command     string            `yaml:"command,omitempty"`
}

// GenerateComposeFile renders a compose file with one service per matrix
// environment. Each service installs the project into its container
// interpreter and runs the environment's commands; containers are
// disposable, so no virtualenv indirection is needed.
func GenerateComposeFile(cfg *config.Config, root string) (string, error) {
	compose := &ComposeConfig{
		Services: make(map[string]ComposeService),
	}

	for _, e := range FromConfig(cfg, root) {
		compose.Services[e.Name] = generateServiceForEnvironment(e, cfg.DockerImage())
	}

	data, err := yaml.Marshal(compose)
	if err != nil {
		return "", fmt.Errorf("failed to generate compose file: %w", err)
	}
	return string(data), nil
}

// WriteComposeFile generates and writes the compose file at the project root.
func WriteComposeFile(cfg *config.Config, root string) (string, error) {
	content, err := GenerateComposeFile(cfg, root)
	if err != nil {
		return "", err
	}

	path := filepath.Join(root, ComposeFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write compose file: %w", err)
	}
	return path, nil
}

// generateServiceForEnvironment creates a compose service for one
// environment: the checkout mounted at the guest root, the environment's
// variables set, and the full verification step chain as the command.
func generateServiceForEnvironment(e *Environment, imageTemplate string) ComposeService {
	image := e.Image
	if image == "" {
		image = imageTemplate
	}

	steps := []string{"pip install " + e.InstallSpec(), "pip check"}
	steps = append(steps, e.ResolvedCommands()...)

	return ComposeService{
		Image:       e.Interpolate(image),
		Volumes:     []string{".:" + guestRoot},
		WorkingDir:  guestRoot,
		Environment: e.ExtraEnv(),
		Command:     "sh -c '" + strings.Join(steps, " && ") + "'",
	}
}
