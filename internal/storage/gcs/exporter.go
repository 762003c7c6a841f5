// Package gcs uploads the finished CSV file to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to export to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Exporter copies local files into a bucket under <prefix>/<date>/<name>.
type Exporter struct {
	client *storage.Client
	bucket string
	prefix string
	now    func() time.Time
}

// New creates a GCS exporter.
func New(client *storage.Client, cfg Config, now func() time.Time) (*Exporter, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Exporter{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		now:    now,
	}, nil
}

// ObjectName returns the object path for localPath.
func (e *Exporter) ObjectName(localPath string) string {
	return path.Join(e.prefix, e.now().UTC().Format("2006-01-02"), filepath.Base(localPath))
}

// Export uploads localPath and returns its gs:// URI.
func (e *Exporter) Export(ctx context.Context, localPath string) (string, error) {
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open export file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	object := e.ObjectName(localPath)
	writer := e.client.Bucket(e.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "text/csv"
	if _, err := io.Copy(writer, f); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", e.bucket, object), nil
}
