// Package postgres mirrors harvested records and run summaries into Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultRecordTable = "job_records"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Connect opens a pool for cfg.DSN.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// RecordStore writes job records into Postgres. Records are keyed by job id
// and re-inserting an id is a no-op.
type RecordStore struct {
	pool  execCloser
	table string
}

// NewRecordStoreWithPool constructs a store from an existing pool.
func NewRecordStoreWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultRecordTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Name identifies the sink in logs and metrics.
func (s *RecordStore) Name() string {
	return "postgres"
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the records table if it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	job_id             TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	employment_type    TEXT NOT NULL,
	location           TEXT NOT NULL,
	company_name       TEXT NOT NULL,
	company_website    TEXT NOT NULL,
	contact_full_name  TEXT NOT NULL,
	contact_first_name TEXT NOT NULL,
	contact_last_name  TEXT NOT NULL,
	contact_position   TEXT NOT NULL,
	contact_phone      TEXT NOT NULL,
	contact_email      TEXT NOT NULL,
	platform           TEXT NOT NULL,
	listed_at          TIMESTAMPTZ NOT NULL,
	scraped_at         TIMESTAMPTZ NOT NULL,
	source_url         TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Append inserts record.
func (s *RecordStore) Append(ctx context.Context, record crawler.JobRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	r := record.Normalize()
	if crawler.IsSentinel(r.ID) {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	title,
	employment_type,
	location,
	company_name,
	company_website,
	contact_full_name,
	contact_first_name,
	contact_last_name,
	contact_position,
	contact_phone,
	contact_email,
	platform,
	listed_at,
	scraped_at,
	source_url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (job_id) DO NOTHING`, s.table)

	args := []any{
		r.ID,
		r.Title,
		r.EmploymentType,
		r.Location,
		r.CompanyName,
		r.CompanyWebsite,
		r.ContactFullName,
		r.ContactFirstName,
		r.ContactLastName,
		r.ContactPosition,
		r.ContactPhone,
		r.ContactEmail,
		r.Platform,
		r.ListedAt,
		r.ScrapedAt,
		r.SourceURL,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert job record: %w", err)
	}
	return nil
}
