package artifact

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gantryci/gantry/internal/config"
	"github.com/gantryci/gantry/internal/errors"
)

// StoreEnabled reports whether an artifact store is configured.
func StoreEnabled(cfg *config.Config) bool {
	return cfg.Artifacts != nil && cfg.Artifacts.Store != nil && cfg.Artifacts.Store.Endpoint != ""
}

// Store mirrors collected artifacts to an S3-compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore builds a store client. Credentials come from the environment
// variables the config names, never from the config file.
func NewStore(sc *config.StoreConfig) (*Store, error) {
	access := os.Getenv(sc.AccessKeyEnv)
	secret := os.Getenv(sc.SecretKeyEnv)
	if access == "" || secret == "" {
		return nil, errors.Setupf("artifact store credentials missing: set %s and %s",
			sc.AccessKeyEnv, sc.SecretKeyEnv)
	}

	secure := sc.Secure == nil || *sc.Secure
	client, err := minio.New(sc.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(access, secret, ""),
		Secure:    secure,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}
	return &Store{client: client, bucket: sc.Bucket, prefix: sc.Prefix}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Upload stores each item under <prefix>/<invocation>/<name>.
func (s *Store) Upload(ctx context.Context, invocationID string, items []Item) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.put(ctx, s.key(invocationID, item.Name), item); err != nil {
			return fmt.Errorf("uploading %s: %w", item.Name, err)
		}
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, item Item) error {
	f, err := os.Open(item.Path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = s.client.PutObject(ctx, s.bucket, key, f, item.Size,
		minio.PutObjectOptions{ContentType: contentType(item.Name)})
	return err
}

func (s *Store) key(invocationID, name string) string {
	if s.prefix != "" {
		return path.Join(s.prefix, invocationID, name)
	}
	return path.Join(invocationID, name)
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".tar.gz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".whl"):
		return "application/zip"
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".xml"):
		return "text/xml"
	case strings.HasSuffix(name, ".html"):
		return "text/html"
	case strings.HasSuffix(name, ".txt"), strings.HasSuffix(name, ".log"):
		return "text/plain"
	}
	return "application/octet-stream"
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
