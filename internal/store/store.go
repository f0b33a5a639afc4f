// Package store persists screen definitions and submission history in SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a screen or submission does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating a screen whose name is taken.
	ErrExists = errors.New("already exists")
)

const defaultBusyTimeout = 5 * time.Second

// Store wraps a pooled sqlx.DB connection to the screen catalog.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, defaultBusyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises them anyway.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), defaultBusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("store opened", zap.String("path", abs))
	return s, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS screen_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		screen_name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		option TEXT NOT NULL DEFAULT '',
		identifier_param TEXT NOT NULL DEFAULT '',
		params TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS field_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		screen_name TEXT NOT NULL,
		position INTEGER NOT NULL,
		field_name TEXT NOT NULL,
		max_length INTEGER NOT NULL,
		required BOOLEAN NOT NULL DEFAULT 0,
		type TEXT NOT NULL DEFAULT 'text',
		valid_values TEXT,
		tabs_needed INTEGER NOT NULL DEFAULT 1,
		tabs_needed_empty INTEGER,
		description TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(screen_name) REFERENCES screen_configs(screen_name) ON DELETE CASCADE ON UPDATE CASCADE,
		UNIQUE(screen_name, field_name)
	);`,
	`CREATE TABLE IF NOT EXISTS navigation_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		screen_name TEXT NOT NULL,
		step_order INTEGER NOT NULL,
		screen_title_contains TEXT NOT NULL,
		action_type TEXT NOT NULL,
		action_value TEXT NOT NULL DEFAULT '',
		wait_time INTEGER NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(screen_name) REFERENCES screen_configs(screen_name) ON DELETE CASCADE ON UPDATE CASCADE,
		UNIQUE(screen_name, step_order)
	);`,
	`CREATE TABLE IF NOT EXISTS screen_data_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		screen_name TEXT NOT NULL,
		screen_inputs TEXT NOT NULL DEFAULT '{}',
		screen_data TEXT NOT NULL DEFAULT '{}',
		run_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		outcome TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_field_configs_screen ON field_configs(screen_name, position);`,
	`CREATE INDEX IF NOT EXISTS idx_navigation_steps_screen ON navigation_steps(screen_name, step_order);`,
	`CREATE INDEX IF NOT EXISTS idx_submissions_screen ON screen_data_submissions(screen_name, created_at);`,
}
