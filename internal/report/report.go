// Package report persists invocation reports and posts results to GitHub.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/runner"
)

// WriteRun writes the invocation report under the project's state directory
// and returns the file path.
func WriteRun(root string, inv *runner.Invocation) (string, error) {
	dir := filepath.Join(root, config.StateDirName, "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create runs directory: %w", err)
	}

	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, inv.ID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write run report: %w", err)
	}
	return path, nil
}

// ReadRun loads a previously written invocation report.
func ReadRun(path string) (*runner.Invocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inv runner.Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parsing run report %s: %w", filepath.Base(path), err)
	}
	return &inv, nil
}
