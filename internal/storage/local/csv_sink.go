// Package local implements the CSV record sink on the local filesystem.
package local

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

const lockRetryDelay = 50 * time.Millisecond

// Config captures the parameters for the CSV sink.
type Config struct {
	// Path is the CSV file records are appended to.
	Path string `mapstructure:"path" yaml:"path"`
}

// CSVSink appends one row per record. Writes are serialized in-process by a
// mutex and across processes by an advisory lock next to the file.
type CSVSink struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewCSVSink prepares the output directory and returns the sink. The file
// itself is created on the first append.
func NewCSVSink(cfg Config) (*CSVSink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return &CSVSink{
		path: cfg.Path,
		lock: flock.New(cfg.Path + ".lock"),
	}, nil
}

// Name identifies the sink in logs and metrics.
func (s *CSVSink) Name() string {
	return "csv"
}

// Path returns the CSV file location.
func (s *CSVSink) Path() string {
	return s.path
}

// Append writes record as one row, writing the header first when the file is
// new or empty.
func (s *CSVSink) Append(ctx context.Context, record crawler.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	// #nosec G304 -- path comes from operator configuration.
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(crawler.Header); err != nil {
			_ = f.Close()
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(record.Row()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
