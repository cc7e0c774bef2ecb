// Package store persists CloudEvent receipts. A receipt is append-only proof
// that an event was ingested: a content digest plus non-sensitive metadata,
// never the payload itself.
//
// Three interchangeable backends implement ReceiptStore: an in-process map
// (volatile), SQLite (durable file-backed), and Postgres (durable server).
// Every backend must produce identical externally observable results; only
// durability and performance differ.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Pagination bounds for List.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ErrNotFound is returned by Get for an unknown receipt id. Empty List
// results are success, not ErrNotFound.
var ErrNotFound = errors.New("receipt not found")

// ErrStorageUnavailable wraps backend write/read failures. The ledger never
// retries internally; retry policy belongs to the caller. A failed Create
// leaves no partial state behind.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Receipt is the persisted record of one ingested event. Immutable once
// created: the ledger never updates or deletes receipts.
type Receipt struct {
	ReceiptID string         `json:"receipt_id"`
	TraceID   string         `json:"trace_id"`
	EventType string         `json:"event_type"`
	EventHash string         `json:"event_hash"`
	Time      time.Time      `json:"time"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ListOptions selects and pages receipts. A zero TraceID means no filter.
type ListOptions struct {
	TraceID string
	Limit   int
	Offset  int
}

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// ReceiptStore is the persistence abstraction for receipts.
type ReceiptStore interface {
	// Create allocates a fresh receipt id, stamps the current time and
	// persists atomically. Safe under concurrent calls: ids never collide
	// and a receipt is fully visible to readers once Create returns.
	Create(ctx context.Context, traceID, eventType, eventHash string, metadata map[string]any) (*Receipt, error)
	// Get returns the receipt or ErrNotFound.
	Get(ctx context.Context, receiptID string) (*Receipt, error)
	// List returns one page of receipts ordered by time ascending
	// (receipt id as tiebreak) and the total count of matching receipts
	// irrespective of paging. Out-of-range pages are empty, not errors.
	List(ctx context.Context, opts ListOptions) ([]*Receipt, int, error)
	// ListByTrace returns every receipt sharing the trace id, time
	// ascending. Unknown trace ids yield an empty slice.
	ListByTrace(ctx context.Context, traceID string) ([]*Receipt, error)
	Close() error
}

// Open selects a backend by name: "memory", "sqlite" (dsn is a file path) or
// "postgres" (dsn is a connection string).
func Open(backend, dsn string) (ReceiptStore, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite at %s: %w", dsn, err)
		}
		return NewSQLiteStore(db)
	case "postgres":
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
