// Package store provides storage backends for DialogPipe.
//
// It persists opaque state records keyed by (scope, owner id, record key),
// plus delivery receipts and inbound responses. Backends: in-memory, SQLite,
// and PostgreSQL.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/models"
)

// Store defines the durable persistence surface used by the dialog engine.
// Records are opaque to the store; the dialog layer defines their shape.
// A missing record yields (nil, nil).
type Store interface {
	GetRecord(scope models.StateScope, ownerID, key string) ([]byte, error)
	SaveRecord(scope models.StateScope, ownerID, key string, data []byte) error
	DeleteRecord(scope models.StateScope, ownerID, key string) error

	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
	AddResponse(r models.Response) error
	GetResponses() ([]models.Response, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite" based on its shape.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

type recordKey struct {
	scope   models.StateScope
	ownerID string
	key     string
}

// InMemoryStore is a non-durable Store used for tests and API-only deployments.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[recordKey][]byte
	receipts  []models.Receipt
	responses []models.Response
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey][]byte)}
}

// GetRecord returns the stored record bytes, or nil if absent.
func (s *InMemoryStore) GetRecord(scope models.StateScope, ownerID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[recordKey{scope, ownerID, key}]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// SaveRecord stores the record bytes, replacing any previous value.
func (s *InMemoryStore) SaveRecord(scope models.StateScope, ownerID, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.records[recordKey{scope, ownerID, key}] = cp
	return nil
}

// DeleteRecord removes the record if present.
func (s *InMemoryStore) DeleteRecord(scope models.StateScope, ownerID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey{scope, ownerID, key})
	return nil
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Time == 0 {
		r.Time = time.Now().Unix()
	}
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

func (s *InMemoryStore) AddResponse(r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Time == 0 {
		r.Time = time.Now().Unix()
	}
	s.responses = append(s.responses, r)
	return nil
}

func (s *InMemoryStore) GetResponses() ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Response, len(s.responses))
	copy(out, s.responses)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
