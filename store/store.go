// Package store implements the relational Index Store: a SQLite mirror
// of per-branch package metadata, reset wholesale whenever the schema
// version advances, and maintained through per-branch transactional
// writes plus a supplement-driven listing refresh.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ArcticLampyrid/aurmetad/log"
	"github.com/ArcticLampyrid/aurmetad/metrics"
)

// Store wraps a SQLite connection pool holding the package index.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if missing) the SQLite database at path,
// migrating its schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connecting to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.checkAndMigrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.initTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// checkAndMigrate resets every index table when the schema stored in
// PRAGMA user_version is older than currentSchemaVersion. A
// user_version of 0 with a pre-existing pkg_info table is treated as
// schema version 1, the pre-versioning layout that never set the
// pragma.
func (s *Store) checkAndMigrate(ctx context.Context) error {
	var version int
	if err := s.db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("store: reading schema version: %w", err)
	}

	if version == 0 {
		var legacyTableCount int
		err := s.db.GetContext(ctx, &legacyTableCount,
			"SELECT COUNT(name) FROM sqlite_master WHERE type='table' AND name='pkg_info'")
		if err != nil {
			return fmt.Errorf("store: probing legacy schema: %w", err)
		}
		if legacyTableCount != 0 {
			version = 1
		}
	}

	if version < currentSchemaVersion {
		logger := log.FromContext(ctx)
		if version > 0 {
			logger.Info("index schema outdated, resetting", "from", version, "to", currentSchemaVersion)
			for _, table := range droppableTables {
				if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
					return fmt.Errorf("store: dropping table %s: %w", table, err)
				}
			}
			metrics.SchemaResets.Inc()
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("store: writing schema version: %w", err)
		}
	}
	return nil
}

func (s *Store) initTables(ctx context.Context) error {
	for _, stmt := range createTableStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: creating table: %w", err)
		}
	}
	for _, stmt := range createIndexStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: creating index: %w", err)
		}
	}
	return nil
}
