// Package store provides storage backends for DialogPipe.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/dialogpipe/dialogpipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetRecord retrieves a state record, returning nil if absent.
func (s *SQLiteStore) GetRecord(scope models.StateScope, ownerID, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT record_data FROM state_records WHERE scope = ? AND owner_id = ? AND record_key = ?`,
		string(scope), ownerID, key).Scan(&data)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetRecord not found", "scope", scope, "ownerID", ownerID, "key", key)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetRecord failed", "error", err, "scope", scope, "ownerID", ownerID, "key", key)
		return nil, fmt.Errorf("failed to query state record: %w", err)
	}
	return []byte(data), nil
}

// SaveRecord stores or replaces a state record.
func (s *SQLiteStore) SaveRecord(scope models.StateScope, ownerID, key string, data []byte) error {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO state_records (scope, owner_id, record_key, record_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, owner_id, record_key)
		DO UPDATE SET record_data = excluded.record_data, updated_at = excluded.updated_at`,
		string(scope), ownerID, key, string(data), now, now)
	if err != nil {
		slog.Error("SQLiteStore SaveRecord failed", "error", err, "scope", scope, "ownerID", ownerID, "key", key)
		return fmt.Errorf("failed to save state record: %w", err)
	}
	slog.Debug("SQLiteStore SaveRecord succeeded", "scope", scope, "ownerID", ownerID, "key", key)
	return nil
}

// DeleteRecord removes a state record.
func (s *SQLiteStore) DeleteRecord(scope models.StateScope, ownerID, key string) error {
	_, err := s.db.Exec(`DELETE FROM state_records WHERE scope = ? AND owner_id = ? AND record_key = ?`,
		string(scope), ownerID, key)
	if err != nil {
		slog.Error("SQLiteStore DeleteRecord failed", "error", err, "scope", scope, "ownerID", ownerID, "key", key)
		return fmt.Errorf("failed to delete state record: %w", err)
	}
	slog.Debug("SQLiteStore DeleteRecord succeeded", "scope", scope, "ownerID", ownerID, "key", key)
	return nil
}

func (s *SQLiteStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, time) VALUES (?, ?, ?)`, r.To, r.Status, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	return nil
}

func (s *SQLiteStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, time FROM receipts`)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Status, &r.Time); err != nil {
			slog.Error("SQLiteStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetReceipts rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

func (s *SQLiteStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, body, time) VALUES (?, ?, ?)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

func (s *SQLiteStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, body, time FROM responses`)
	if err != nil {
		slog.Error("SQLiteStore GetResponses query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.From, &r.Body, &r.Time); err != nil {
			slog.Error("SQLiteStore GetResponses scan failed", "error", err)
			return nil, err
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return responses, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
