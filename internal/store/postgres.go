// Package store provides storage backends for DialogPipe.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/dialogpipe/dialogpipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// GetRecord retrieves a state record, returning nil if absent.
func (s *PostgresStore) GetRecord(scope models.StateScope, ownerID, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT record_data FROM state_records WHERE scope = $1 AND owner_id = $2 AND record_key = $3`,
		string(scope), ownerID, key).Scan(&data)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetRecord not found", "scope", scope, "ownerID", ownerID, "key", key)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetRecord failed", "error", err, "scope", scope, "ownerID", ownerID, "key", key)
		return nil, fmt.Errorf("failed to query state record: %w", err)
	}
	return []byte(data), nil
}

// SaveRecord stores or replaces a state record.
func (s *PostgresStore) SaveRecord(scope models.StateScope, ownerID, key string, data []byte) error {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO state_records (scope, owner_id, record_key, record_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope, owner_id, record_key)
		DO UPDATE SET record_data = EXCLUDED.record_data, updated_at = EXCLUDED.updated_at`,
		string(scope), ownerID, key, string(data), now, now)
	if err != nil {
		slog.Error("PostgresStore SaveRecord failed", "error", err, "scope", scope, "ownerID", ownerID, "key", key)
		return fmt.Errorf("failed to save state record: %w", err)
	}
	slog.Debug("PostgresStore SaveRecord succeeded", "scope", scope, "ownerID", ownerID, "key", key)
	return nil
}

// DeleteRecord removes a state record.
func (s *PostgresStore) DeleteRecord(scope models.StateScope, ownerID, key string) error {
	_, err := s.db.Exec(`DELETE FROM state_records WHERE scope = $1 AND owner_id = $2 AND record_key = $3`,
		string(scope), ownerID, key)
	if err != nil {
		slog.Error("PostgresStore DeleteRecord failed", "error", err, "scope", scope, "ownerID", ownerID, "key", key)
		return fmt.Errorf("failed to delete state record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (recipient, status, time) VALUES ($1, $2, $3)`, r.To, r.Status, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	return nil
}

func (s *PostgresStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT recipient, status, time FROM receipts`)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()
	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Status, &r.Time); err != nil {
			slog.Error("PostgresStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

func (s *PostgresStore) AddResponse(r models.Response) error {
	_, err := s.db.Exec(`INSERT INTO responses (sender, body, time) VALUES ($1, $2, $3)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	return nil
}

func (s *PostgresStore) GetResponses() ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT sender, body, time FROM responses`)
	if err != nil {
		slog.Error("PostgresStore GetResponses query failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.From, &r.Body, &r.Time); err != nil {
			slog.Error("PostgresStore GetResponses scan failed", "error", err)
			return nil, err
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return responses, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
