// Package postgres stores the catalog and user data in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

//go:embed schema.sql
var schemaSQL string

// Compile-time checks
var (
	_ interfaces.CatalogStore = (*Store)(nil)
	_ interfaces.UserStore    = (*Store)(nil)
)

// Store implements the catalog and user store over one connection pool. Catalog metadata
// (version, counts) is cached in memory and refreshed on every replace.
type Store struct {
	db              *sql.DB
	version         atomic.Value // string
	counts          atomic.Value // entities.CatalogCounts
	lastUpdated     atomic.Value // time.Time
	serverStartTime atomic.Value // time.Time
	updating        atomic.Bool
}

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return New(db), nil
}

// New wraps an open pool
func New(db *sql.DB) *Store {
	s := &Store{db: db}
	s.version.Store("")
	s.counts.Store(entities.CatalogCounts{})
	s.lastUpdated.Store(time.Time{})
	s.serverStartTime.Store(time.Time{})
	return s
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates missing tables and indexes
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return storeError("apply schema", err)
	}
	return nil
}

// LoadMeta reads the version and size of the catalog already in the database
func (s *Store) LoadMeta(ctx context.Context) error {
	var version string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT version, updated_at FROM catalog_meta WHERE id = 1`).Scan(&version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		logging.Info("Database holds no catalog yet")
		return nil
	}
	if err != nil {
		return storeError("load catalog meta", err)
	}

	var counts entities.CatalogCounts
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM standard_ingredient),
			(SELECT COUNT(*) FROM ingredient_alias),
			(SELECT COUNT(*) FROM interaction_rule)`).Scan(&counts.Ingredients, &counts.Aliases, &counts.Rules)
	if err != nil {
		return storeError("count catalog rows", err)
	}

	s.version.Store(version)
	s.counts.Store(counts)
	s.lastUpdated.Store(updatedAt)
	logging.Info("Catalog metadata loaded from database", "version", version, "ingredients", counts.Ingredients)
	return nil
}

// storeError marks a database failure as an unavailable store
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, entities.ErrCatalogUnavailable, err)
}

// Version returns the version of the loaded catalog
func (s *Store) Version() string {
	return s.version.Load().(string)
}

// Counts returns the row counts of the loaded catalog
func (s *Store) Counts() entities.CatalogCounts {
	return s.counts.Load().(entities.CatalogCounts)
}

// GetLastUpdated returns the time of the last successful reload
func (s *Store) GetLastUpdated() time.Time {
	return s.lastUpdated.Load().(time.Time)
}

// IsUpdating returns true if a reload is in progress
func (s *Store) IsUpdating() bool {
	return s.updating.Load()
}

// BeginUpdate claims the reload flag, returning false if another reload holds it
func (s *Store) BeginUpdate() bool {
	return s.updating.CompareAndSwap(false, true)
}

// EndUpdate releases the reload flag
func (s *Store) EndUpdate() {
	s.updating.Store(false)
}

// SetServerStartTime sets the server start time
func (s *Store) SetServerStartTime(startTime time.Time) {
	s.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (s *Store) GetServerStartTime() time.Time {
	return s.serverStartTime.Load().(time.Time)
}
