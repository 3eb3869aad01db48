// Package postgres keeps the catalog audit trail in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/adcatalog/internal/catalog"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for audit rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// IDGenerator produces audit row ids.
type IDGenerator interface {
	NewID() (string, error)
}

// AuditStore appends catalog events to a table.
type AuditStore struct {
	pool  dbPool
	table string
	ids   IDGenerator
}

// New connects a pool and returns an AuditStore.
func New(ctx context.Context, cfg Config, ids IDGenerator) (*AuditStore, error) {
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
	store, err := NewWithPool(pool, cfg.Table, ids)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool, table string, ids IDGenerator) (*AuditStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if table == "" {
		table = "catalog_events"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &AuditStore{pool: pool, table: table, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (s *AuditStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the audit table when it does not exist.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	related_id  TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_occurred_at_idx ON %[1]s (occurred_at DESC);`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Record inserts one event row.
func (s *AuditStore) Record(ctx context.Context, event catalog.Event) error {
	if event.Kind == "" || event.RecordID == "" {
		return fmt.Errorf("event kind and record id are required")
	}
	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("audit id: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, kind, record_id, related_id, link, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6)`, s.table)
	args := []any{
		id,
		string(event.Kind),
		event.RecordID,
		event.RelatedID,
		event.Link,
		event.At.UTC(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent lists the newest events first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]catalog.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT kind, record_id, related_id, link, occurred_at
FROM %s
ORDER BY occurred_at DESC
LIMIT $1`, s.table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []catalog.Event
	for rows.Next() {
		var (
			event catalog.Event
			kind  string
		)
		if err := rows.Scan(&kind, &event.RecordID, &event.RelatedID, &event.Link, &event.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		event.Kind = catalog.EventKind(kind)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return events, nil
}
