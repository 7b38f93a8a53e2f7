// Package artifact collects build and coverage outputs of an invocation
// and optionally mirrors them to an S3-compatible store.
package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/output"
)

const indexFileName = "index.json"

// Item is one collected artifact file.
type Item struct {
	Name   string `json:"name"`   // file name inside the artifact directory
	Source string `json:"source"` // project-relative path it was collected from
	Size   int64  `json:"size"`
	Path   string `json:"-"` // absolute path of the collected copy
}

// Index is the manifest written next to the collected files.
type Index struct {
	Invocation string    `json:"invocation"`
	Collected  time.Time `json:"collected"`
	Items      []Item    `json:"items"`
}

// Dir returns the artifact directory for an invocation.
func Dir(root, invocationID string) string {
	return filepath.Join(root, config.StateDirName, "artifacts", invocationID)
}

// Collect copies files matching the configured globs into the invocation's
// artifact directory and writes an index. Unreadable matches are skipped
// with a warning; only directory or index write failures are errors.
func Collect(root, invocationID string, globs []string, out *output.Writer) ([]Item, error) {
	destDir := Dir(root, invocationID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var items []Item
	seen := make(map[string]bool)
	for _, pattern := range globs {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			out.Warning("invalid artifact pattern %q: %v", pattern, err)
			continue
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			name := filepath.Base(match)
			// Collected files are flattened; the first glob wins a name.
			if seen[name] {
				continue
			}

			dest := filepath.Join(destDir, name)
			if err := copyFile(match, dest); err != nil {
				out.Warning("failed to copy artifact %s: %v", match, err)
				continue
			}
			seen[name] = true

			source, err := filepath.Rel(root, match)
			if err != nil {
				source = match
			}
			items = append(items, Item{
				Name:   name,
				Source: filepath.ToSlash(source),
				Size:   info.Size(),
				Path:   dest,
			})
		}
	}

	if len(items) == 0 {
		// Nothing matched; do not leave an empty directory per invocation.
		_ = os.Remove(destDir)
		return nil, nil
	}
	if err := writeIndex(destDir, invocationID, items); err != nil {
		return items, fmt.Errorf("failed to write artifact index: %w", err)
	}
	return items, nil
}

func writeIndex(dir, invocationID string, items []Item) error {
	idx := Index{
		Invocation: invocationID,
		Collected:  time.Now().UTC(),
		Items:      items,
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, indexFileName), append(data, '\n'), 0o644)
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = destination.Close() }()

	_, err = io.Copy(destination, source)
	return err
}
