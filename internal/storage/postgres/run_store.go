package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunAborted   = "aborted"
)

// RunSummary is persisted when a harvest finishes.
type RunSummary struct {
	Status     string
	Pages      int
	TotalPages int
	Links      int
	Batches    crawler.BatchResult
	FinishedAt time.Time
}

// RunStore tracks harvest runs in the harvest_runs table.
type RunStore struct {
	pool execCloser
}

// NewRunStoreWithPool constructs a RunStore from an existing pool.
func NewRunStoreWithPool(pool execCloser) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// EnsureSchema creates the runs table if it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS harvest_runs (
	id           UUID PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ,
	status       TEXT NOT NULL,
	pages        INTEGER NOT NULL DEFAULT 0,
	total_pages  INTEGER NOT NULL DEFAULT 0,
	links        INTEGER NOT NULL DEFAULT 0,
	succeeded    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	sink_errors  INTEGER NOT NULL DEFAULT 0
)`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create harvest_runs: %w", err)
	}
	return nil
}

// Start records the beginning of a run.
func (s *RunStore) Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	const query = `
INSERT INTO harvest_runs (id, started_at, status)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, RunRunning); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// Finish stores the outcome of a run.
func (s *RunStore) Finish(ctx context.Context, runID uuid.UUID, summary RunSummary) error {
	const query = `
UPDATE harvest_runs
SET finished_at = $2,
	status = $3,
	pages = $4,
	total_pages = $5,
	links = $6,
	succeeded = $7,
	failed = $8,
	sink_errors = $9
WHERE id = $1`
	_, err := s.pool.Exec(ctx, query,
		runID,
		summary.FinishedAt,
		summary.Status,
		summary.Pages,
		summary.TotalPages,
		summary.Links,
		summary.Batches.Succeeded,
		summary.Batches.Failed,
		summary.Batches.SinkErrors,
	)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}
