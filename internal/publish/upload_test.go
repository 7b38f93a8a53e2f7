package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestParseDistribution(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     distribution
		wantErr  bool
	}{
		{
			name:     "sdist",
			filename: "demo-1.2.3.tar.gz",
			want:     distribution{Name: "demo", Version: "1.2.3", Filetype: "sdist", Pyversion: "source"},
		},
		{
			name:     "sdist_prerelease",
			filename: "demo-pkg-1.2.3rc1.tar.gz",
			want:     distribution{Name: "demo-pkg", Version: "1.2.3rc1", Filetype: "sdist", Pyversion: "source"},
		},
		{
			name:     "wheel",
			filename: "demo_pkg-1.2.3-py3-none-any.whl",
			want:     distribution{Name: "demo_pkg", Version: "1.2.3", Filetype: "bdist_wheel", Pyversion: "py3"},
		},
		{
			name:     "wheel_with_build_tag",
			filename: "demo_pkg-1.2.3-2-py3-none-any.whl",
			want:     distribution{Name: "demo_pkg", Version: "1.2.3", Filetype: "bdist_wheel", Pyversion: "py3"},
		},
		{
			name:     "sdist_without_version",
			filename: "demo.tar.gz",
			wantErr:  true,
		},
		{
			name:     "wheel_too_few_parts",
			filename: "demo-1.2.3.whl",
			wantErr:  true,
		},
		{
			name:     "unsupported",
			filename: "demo-1.2.3.zip",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDistribution(tt.filename)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDistribution(%q) = %+v, want error", tt.filename, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDistribution(%q) error = %v", tt.filename, err)
			}
			if got != tt.want {
				t.Errorf("parseDistribution(%q) = %+v, want %+v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestUploader_Upload(t *testing.T) {
	content := []byte("sdist bytes")
	path := filepath.Join(t.TempDir(), "demo-1.2.3.tar.gz")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256(content)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "__token__" || pass != "minted-token" {
			t.Errorf("basic auth = %q/%q, want __token__ with the minted token", user, pass)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}

		wantFields := map[string]string{
			":action":          "file_upload",
			"protocol_version": "1",
			"name":             "demo",
			"version":          "1.2.3",
			"filetype":         "sdist",
			"pyversion":        "source",
			"sha256_digest":    hex.EncodeToString(digest[:]),
		}
		for field, want := range wantFields {
			if got := r.FormValue(field); got != want {
				t.Errorf("form field %s = %q, want %q", field, got, want)
			}
		}

		file, hdr, err := r.FormFile("content")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer func() { _ = file.Close() }()
		if hdr.Filename != "demo-1.2.3.tar.gz" {
			t.Errorf("content filename = %q, want the artifact name", hdr.Filename)
		}
		body, _ := io.ReadAll(file)
		if string(body) != string(content) {
			t.Errorf("uploaded content = %q, want original bytes", body)
		}
	}))
	defer srv.Close()

	up := &uploader{
		repositoryURL: srv.URL,
		tokens:        oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "minted-token"}),
		client:        srv.Client(),
	}
	if err := up.upload(context.Background(), path); err != nil {
		t.Fatalf("upload() error = %v", err)
	}
}

func TestUploader_UploadRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo-1.2.3.tar.gz")
	if err := os.WriteFile(path, []byte("sdist bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "File already exists", http.StatusBadRequest)
	}))
	defer srv.Close()

	up := &uploader{
		repositoryURL: srv.URL,
		tokens:        oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "minted-token"}),
		client:        srv.Client(),
	}

	err := up.upload(context.Background(), path)
	if err == nil {
		t.Fatal("upload() = nil, want error for rejected upload")
	}
	if !strings.Contains(err.Error(), "File already exists") {
		t.Errorf("error = %q, want the index's rejection message", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %q, want the response status", err)
	}
}
