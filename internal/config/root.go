package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "gantry.yaml"

// StateDirName is the name of the per-project state directory. Work trees,
// run reports, and collected artifacts live under it.
const StateDirName = ".gantry"

// ErrNoProjectRoot is returned when gantry.yaml is not found.
var ErrNoProjectRoot = errors.New("gantry.yaml not found: not a gantry project (or any parent up to the root)")

// FindRoot walks up from the current working directory until it finds gantry.yaml.
func FindRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindRootFrom(cwd)
}

// FindRootFrom walks up from the given directory until it finds gantry.yaml.
func FindRootFrom(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", ErrNoProjectRoot
		}
		dir = parent
	}
}

// Project represents a loaded gantry project.
type Project struct {
	Root     string
	Config   *Config
	Warnings []string
}

// LoadProject finds and loads a project from the current directory.
func LoadProject() (*Project, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadProjectFrom(root)
}

// LoadProjectFrom loads a project rooted at the given directory.
func LoadProjectFrom(root string) (*Project, error) {
	return LoadProjectFile(filepath.Join(root, ConfigFileName))
}

// LoadProjectFile loads a project from an explicit configuration file path.
// The project root is the file's directory.
func LoadProjectFile(configPath string) (*Project, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	cfg, warnings, err := LoadAndValidate(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return &Project{
		Root:     filepath.Dir(abs),
		Config:   cfg,
		Warnings: warnings,
	}, nil
}

// ConfigPath returns the full path to the project configuration file.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.Root, ConfigFileName)
}

// StateDir returns the absolute path of the project state directory.
func (p *Project) StateDir() string {
	return filepath.Join(p.Root, StateDirName)
}
