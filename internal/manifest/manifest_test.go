package manifest

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestCompare_Match(t *testing.T) {
	vcs := []string{"setup.py", "src/demo/__init__.py", "README.md", ".gitignore", ".github/workflows/ci.yml"}
	sdist := []string{"PKG-INFO", "setup.cfg", "demo.egg-info/SOURCES.txt", "README.md", "setup.py", "src/demo/__init__.py"}

	if err := Compare(vcs, sdist, "demo-1.0.0.tar.gz"); err != nil {
		t.Errorf("Compare() = %v, want nil", err)
	}
}

func TestCompare_Mismatch(t *testing.T) {
	vcs := []string{"setup.py", "src/demo/__init__.py", "src/demo/templates/report.html"}
	sdist := []string{"setup.py", "src/demo/__init__.py"}

	err := Compare(vcs, sdist, "demo-1.0.0.tar.gz")
	if err == nil {
		t.Fatal("Compare() = nil, want error")
	}

	msg := err.Error()
	if !strings.Contains(msg, "does not match version control") {
		t.Errorf("error = %q, want mention of version control mismatch", msg)
	}
	if !strings.Contains(msg, "-src/demo/templates/report.html") {
		t.Errorf("error = %q, want diff line for the missing file", msg)
	}
	if !strings.Contains(msg, "git ls-files") || !strings.Contains(msg, "demo-1.0.0.tar.gz") {
		t.Errorf("error = %q, want diff headers naming both sides", msg)
	}
}

func TestCompare_ExtraSdistFile(t *testing.T) {
	vcs := []string{"setup.py"}
	sdist := []string{"setup.py", "stray.pyc"}

	err := Compare(vcs, sdist, "demo-1.0.0.tar.gz")
	if err == nil {
		t.Fatal("Compare() = nil, want error")
	}
	if !strings.Contains(err.Error(), "+stray.pyc") {
		t.Errorf("error = %q, want diff line for the extra file", err)
	}
}

func TestGenerated(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"PKG-INFO", true},
		{"setup.cfg", true},
		{"demo.egg-info/PKG-INFO", true},
		{"demo.egg-info/SOURCES.txt", true},
		{"src/demo.egg-info/top_level.txt", true},
		{".gitignore", true},
		{".gitattributes", true},
		{".github/workflows/ci.yml", true},
		{"setup.py", false},
		{"src/demo/__init__.py", false},
		{"docs/conf.py", false},
		{"README.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generated(tt.name); got != tt.want {
				t.Errorf("generated(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestStripArchiveRoot(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  string
	}{
		{"simple", "demo-1.0.0/setup.py", "setup.py"},
		{"nested", "demo-1.0.0/src/demo/__init__.py", "src/demo/__init__.py"},
		{"dot_prefix", "./demo-1.0.0/setup.py", "setup.py"},
		{"no_root", "setup.py", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripArchiveRoot(tt.entry); got != tt.want {
				t.Errorf("stripArchiveRoot(%q) = %q, want %q", tt.entry, got, tt.want)
			}
		})
	}
}

func TestSdistFiles(t *testing.T) {
	archive := writeSdist(t, "demo-1.0.0", []string{
		"PKG-INFO",
		"setup.py",
		"src/demo/__init__.py",
	})

	got, err := SdistFiles(archive)
	if err != nil {
		t.Fatalf("SdistFiles() error = %v", err)
	}

	want := []string{"PKG-INFO", "setup.py", "src/demo/__init__.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SdistFiles() = %v, want %v", got, want)
	}
}

func TestSdistFiles_MissingArchive(t *testing.T) {
	if _, err := SdistFiles(filepath.Join(t.TempDir(), "missing.tar.gz")); err == nil {
		t.Error("SdistFiles() = nil, want error for missing archive")
	}
}

func TestGitFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	for _, args := range [][]string{
		{"init", "--quiet"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	mustWrite(t, filepath.Join(root, "setup.py"), "from setuptools import setup\n")
	mustWrite(t, filepath.Join(root, "src", "demo", "__init__.py"), "")

	add := exec.Command("git", "add", ".")
	add.Dir = root
	if out, err := add.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v\n%s", err, out)
	}

	got, err := GitFiles(context.Background(), root)
	if err != nil {
		t.Fatalf("GitFiles() error = %v", err)
	}

	want := []string{"setup.py", "src/demo/__init__.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GitFiles() = %v, want %v", got, want)
	}
}

func TestGitFiles_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	if _, err := GitFiles(context.Background(), t.TempDir()); err == nil {
		t.Error("GitFiles() = nil, want error outside a repository")
	}
}

// writeSdist creates a tar.gz with the given file names under a single
// root directory, mirroring the layout python -m build produces.
func writeSdist(t *testing.T, root string, files []string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), root+".tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer func() { _ = f.Close() }()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	dirHdr := &tar.Header{Name: root + "/", Mode: 0o755, Typeflag: tar.TypeDir}
	if err := tw.WriteHeader(dirHdr); err != nil {
		t.Fatalf("write dir header: %v", err)
	}

	for _, name := range files {
		content := []byte("content of " + name + "\n")
		hdr := &tar.Header{
			Name:     root + "/" + name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write(content); err != nil {
			t.Fatalf("write content %s: %v", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return path
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
