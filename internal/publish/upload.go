package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// distribution describes one upload, derived from the artifact filename.
type distribution struct {
	Name      string
	Version   string
	Filetype  string // sdist or bdist_wheel
	Pyversion string // "source" for sdists, the python tag for wheels
}

// parseDistribution extracts upload metadata from a distribution filename.
func parseDistribution(filename string) (distribution, error) {
	switch {
	case strings.HasSuffix(filename, ".tar.gz"):
		stem := strings.TrimSuffix(filename, ".tar.gz")
		idx := strings.LastIndexByte(stem, '-')
		if idx <= 0 || idx == len(stem)-1 {
			return distribution{}, fmt.Errorf("cannot parse sdist filename %q", filename)
		}
		return distribution{
			Name:      stem[:idx],
			Version:   stem[idx+1:],
			Filetype:  "sdist",
			Pyversion: "source",
		}, nil

	case strings.HasSuffix(filename, ".whl"):
		// name-version[-build]-python-abi-platform
		parts := strings.Split(strings.TrimSuffix(filename, ".whl"), "-")
		if len(parts) < 5 {
			return distribution{}, fmt.Errorf("cannot parse wheel filename %q", filename)
		}
		return distribution{
			Name:      parts[0],
			Version:   parts[1],
			Filetype:  "bdist_wheel",
			Pyversion: parts[len(parts)-3],
		}, nil
	}
	return distribution{}, fmt.Errorf("unsupported distribution type %q", filename)
}

// uploader posts distribution files to the package index using the
// file_upload protocol, authenticated with a minted token.
type uploader struct {
	repositoryURL string
	tokens        oauth2.TokenSource
	client        *http.Client
}

// upload posts one distribution file. Duplicate-version rejections come back
// as the index's own error; there are no retries.
func (u *uploader) upload(ctx context.Context, path string) error {
	dist, err := parseDistribution(filepath.Base(path))
	if err != nil {
		return err
	}

	// Distribution archives are small enough to buffer, and the digest
	// fields need the full content anyway.
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(data)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{":action", "file_upload"},
		{"protocol_version", "1"},
		{"name", dist.Name},
		{"version", dist.Version},
		{"filetype", dist.Filetype},
		{"pyversion", dist.Pyversion},
		{"metadata_version", "2.1"},
		{"sha256_digest", hex.EncodeToString(digest[:])},
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("content", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	tok, err := u.tokens.Token()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.repositoryURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("__token__", tok.AccessToken)

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return responseError("index rejected upload", resp)
	}
	return nil
}
