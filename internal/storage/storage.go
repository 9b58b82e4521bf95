// Package storage saves uploaded files and returns their public URL.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"nexify/internal/config"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// FileStorage persists an object under a slash-separated key.
type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// LocalStorage writes objects below a directory served at baseURL.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage creates dir if needed.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the root directory objects are written to.
func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) Save(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("empty storage key")
	}
	dest := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", clean, err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", clean, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", clean, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", clean, err)
	}
	return s.baseURL + "/" + clean, nil
}

// GCSStorage writes objects to a Google Cloud Storage bucket.
type GCSStorage struct {
	client      *storage.Client
	bucket      string
	urlTemplate string
}

// NewGCSStorage connects with a service account key file when one is given,
// otherwise with application default credentials.
func NewGCSStorage(ctx context.Context, bucket, credentialsFile, urlTemplate string) (*GCSStorage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("gcs credentials file %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, urlTemplate: urlTemplate}, nil
}

func (s *GCSStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if writer.ContentType == "" {
		writer.ContentType = "application/octet-stream"
	}
	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to copy upload to gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}
	return PublicURL(s.urlTemplate, s.bucket, key), nil
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// PublicURL fills a "%s/%s" style template with bucket and key.
func PublicURL(template, bucket, key string) string {
	if template == "" {
		template = "https://storage.googleapis.com/%s/%s"
	}
	return fmt.Sprintf(template, bucket, key)
}

// FromConfig builds the configured driver.
func FromConfig(ctx context.Context, cfg *config.Config) (FileStorage, error) {
	switch cfg.StorageDriver {
	case "gcs":
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, cfg.GCSPublicURLTemplate)
	case "", "local":
		return NewLocalStorage(cfg.StorageLocalDir, cfg.PublicBaseURL+"/media")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
