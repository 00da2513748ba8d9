// Package localstore provides the durable, schema-versioned local cache
// that mirrors the remote users and tasks collections and holds the offline
// mutation queue.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store is the local cache backed by a single SQLite file.
type Store struct {
	db      *sql.DB
	schema  Schema
	version int
	log     *zap.Logger
}

// Open opens (creating if necessary) the database at path and brings it to
// the newest version of schema. Opening an up-to-date database is a no-op.
// A database whose version is newer than schema yields a *StorageError
// wrapping *SchemaUpgradeError.
func Open(ctx context.Context, path string, schema Schema, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("open", "", fmt.Errorf("create data directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("open", "", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, storageErr("open", "", fmt.Errorf("%s: %w", pragma, err))
		}
	}

	s := &Store{db: db, schema: schema, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the schema version the database is at.
func (s *Store) Version() int {
	return s.version
}

func (s *Store) migrate(ctx context.Context) error {
	migrations, err := s.schema.sorted()
	if err != nil {
		return storageErr("migrate", "", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return storageErr("migrate", "", fmt.Errorf("read schema version: %w", err))
	}

	target := s.schema.Latest()
	if current > target {
		return storageErr("migrate", "", &SchemaUpgradeError{Name: s.schema.Name, Current: current, Target: target})
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return storageErr("migrate", "", fmt.Errorf("version %d (%s): %w", m.Version, m.Description, err))
		}
		s.log.Info("applied local schema migration",
			zap.String("schema", s.schema.Name),
			zap.Int("version", m.Version),
			zap.String("description", m.Description),
		)
		current = m.Version
	}
	s.version = current
	return nil
}

func (s *Store) apply(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}
