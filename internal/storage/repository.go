package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic SQL destination for result tables.
//
// Each backend implements idempotent inserts in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Call once.
	Close()

	// EnsureTable creates the table and its constraints if missing.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows aligned to columns. With dedupeColumns set the
	// insert skips rows whose dedupe key already exists, which requires a
	// UNIQUE constraint over those columns.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error)
}

// Factory opens a repository for a backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering
// the same kind twice panics so backend selection is never ambiguous.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Registered reports whether kind has a backend.
func Registered(kind string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[kind]
	return ok
}

// New constructs a Repository using the registered backend factory.
//
// Safe for concurrent use with Register.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
