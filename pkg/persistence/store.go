// Package persistence implements C2, the relational store of packages,
// invoices, progress events, audit events, routing keys, vendor aliases,
// GL mappings, dimension rules, and the durable workflow/activity
// execution tables C7 relies on for crash recovery.
//
// It follows the teacher's plain database/sql + driver pattern
// (pkg/database/multiregion.go) rather than an ORM: callers pass a DSN,
// the driver is selected by scheme, and every query is hand-written SQL.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB with the table operations C2 exposes. It is safe
// for concurrent use — the underlying *sql.DB pools its own connections,
// same as the teacher's MultiRegionRouter.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens dsn, selecting the driver by scheme:
//   - "sqlite://path" or a bare path ending in ".db" -> modernc.org/sqlite
//   - "postgres://..." -> lib/pq
//
// It then ensures the schema exists (CREATE TABLE IF NOT EXISTS for every
// table C2 names).
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, connStr := parseDSN(dsn)
	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("persistence: ping %s: %w", driver, err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	return s, nil
}

// OpenDB wraps an already-open *sql.DB (used by tests with sqlmock, which
// cannot be reached through Open's real-driver path).
func OpenDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func parseDSN(dsn string) (driver, connStr string) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	case strings.HasSuffix(dsn, ".db"):
		return "sqlite", dsn
	default:
		return "sqlite", dsn
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying *sql.DB for packages (workflow execution
// tables) that need transactions spanning multiple Store methods.
func (s *Store) DB() *sql.DB { return s.db }

// isPostgres reports whether placeholder style and upsert syntax should
// use "$1" (postgres) vs "?" (sqlite).
func (s *Store) isPostgres() bool { return s.driver == "postgres" }

// ph returns the positional placeholder for index i (1-based) in the
// store's active driver dialect.
func (s *Store) ph(i int) string {
	if s.isPostgres() {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.isPostgres()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema stmt: %w\n%s", err, stmt)
		}
	}
	return nil
}
