// Package manifest verifies that a source distribution matches version control.
//
// A release built from an incomplete MANIFEST.in silently ships without data
// files or templates. Comparing the sdist against `git ls-files` before upload
// catches that class of packaging bug while the release can still be aborted.
package manifest

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Check compares the files under version control in root against the contents
// of the sdist archive at sdistPath. On mismatch the returned error carries a
// unified diff of the two listings.
func Check(ctx context.Context, root, sdistPath string) error {
	vcs, err := GitFiles(ctx, root)
	if err != nil {
		return fmt.Errorf("listing version-controlled files: %w", err)
	}

	sdist, err := SdistFiles(sdistPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(sdistPath), err)
	}

	return Compare(vcs, sdist, filepath.Base(sdistPath))
}

// GitFiles returns the files tracked by git under root.
func GitFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("git ls-files: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var files []string
	for _, name := range strings.Split(string(out), "\x00") {
		if name != "" {
			files = append(files, name)
		}
	}
	return files, nil
}

// SdistFiles returns the regular files inside the tar.gz archive at path,
// with the top-level <name>-<version>/ component stripped.
func SdistFiles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gz.Close() }()

	var files []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if name := stripArchiveRoot(hdr.Name); name != "" {
			files = append(files, name)
		}
	}
	return files, nil
}

// Compare checks the version-controlled listing against the sdist listing.
// Entries that build tooling generates or that never belong in a distribution
// are dropped from both sides first, so a tracked setup.cfg compares cleanly.
func Compare(vcs, sdist []string, sdistName string) error {
	wantList := normalize(vcs)
	gotList := normalize(sdist)

	if equal(wantList, gotList) {
		return nil
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(wantList, "\n")),
		B:        difflib.SplitLines(strings.Join(gotList, "\n")),
		FromFile: "git ls-files",
		ToFile:   sdistName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Errorf("source distribution does not match version control (diff unavailable: %v)", err)
	}
	return fmt.Errorf("source distribution does not match version control:\n%s", strings.TrimSpace(text))
}

// stripArchiveRoot removes the sdist's single top-level directory from an
// entry name. Entries outside such a directory are ignored.
func stripArchiveRoot(name string) string {
	name = strings.TrimPrefix(path.Clean(name), "./")
	idx := strings.IndexByte(name, '/')
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}

// generated reports whether name is an entry the comparison disregards:
// metadata that sdist builds add, and VCS or CI files that distributions
// conventionally omit.
func generated(name string) bool {
	if name == "PKG-INFO" || name == "setup.cfg" {
		return true
	}
	base := path.Base(name)
	if strings.HasPrefix(base, ".git") {
		return true
	}
	if strings.HasPrefix(name, ".github/") {
		return true
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasSuffix(part, ".egg-info") {
			return true
		}
	}
	return false
}

func normalize(files []string) []string {
	out := make([]string, 0, len(files))
	for _, name := range files {
		if !generated(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
