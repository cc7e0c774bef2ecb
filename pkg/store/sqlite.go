package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// sqliteTimeLayout is RFC 3339 with a fixed-width fraction so that the TEXT
// column's lexicographic order is chronological order (RFC3339Nano trims
// trailing zeros, which breaks ORDER BY for sub-second ties).
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the durable file-backed backend. Receipts survive process
// restart; Create is transactional so readers never observe a torn write.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and runs migrations. The connection pool is capped
// at one connection: SQLite serializes writers anyway, and a single pooled
// connection also makes ":memory:" databases behave (database/sql would
// otherwise hand each connection its own empty in-memory database).
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, unavailable("migrate receipts", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS receipts (
		receipt_id TEXT PRIMARY KEY,
		trace_id   TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_hash TEXT NOT NULL,
		time       DATETIME NOT NULL,
		metadata   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_receipts_trace_id ON receipts (trace_id);
	CREATE INDEX IF NOT EXISTS idx_receipts_event_type ON receipts (event_type);
	CREATE INDEX IF NOT EXISTS idx_receipts_event_hash ON receipts (event_hash);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, traceID, eventType, eventHash string, metadata map[string]any) (*Receipt, error) {
	r := &Receipt{
		ReceiptID: uuid.New().String(),
		TraceID:   traceID,
		EventType: eventType,
		EventHash: eventHash,
		Time:      time.Now().UTC(),
		Metadata:  metadata,
	}

	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, unavailable("encode metadata", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin insert receipt", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO receipts (receipt_id, trace_id, event_type, event_hash, time, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ReceiptID, r.TraceID, r.EventType, r.EventHash, r.Time.Format(sqliteTimeLayout), metaJSON,
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, unavailable("insert receipt", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit receipt", err)
	}
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
		 FROM receipts WHERE receipt_id = ?`, receiptID)
	return scanReceipt(row.Scan)
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Receipt, int, error) {
	opts = opts.normalize()

	countQuery := `SELECT COUNT(*) FROM receipts`
	pageQuery := `SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
		FROM receipts ORDER BY time ASC, receipt_id ASC LIMIT ? OFFSET ?`
	countArgs := []any{}
	pageArgs := []any{opts.Limit, opts.Offset}
	if opts.TraceID != "" {
		countQuery = `SELECT COUNT(*) FROM receipts WHERE trace_id = ?`
		pageQuery = `SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
			FROM receipts WHERE trace_id = ? ORDER BY time ASC, receipt_id ASC LIMIT ? OFFSET ?`
		countArgs = []any{opts.TraceID}
		pageArgs = []any{opts.TraceID, opts.Limit, opts.Offset}
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, unavailable("count receipts", err)
	}

	receipts, err := s.queryPage(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}

func (s *SQLiteStore) ListByTrace(ctx context.Context, traceID string) ([]*Receipt, error) {
	return s.queryPage(ctx,
		`SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
		 FROM receipts WHERE trace_id = ? ORDER BY time ASC, receipt_id ASC`, traceID)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) queryPage(ctx context.Context, query string, args ...any) ([]*Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query receipts", err)
	}
	defer func() { _ = rows.Close() }()

	receipts := []*Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows.Scan)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate receipts", err)
	}
	return receipts, nil
}

// scanReceipt decodes one row, with the timestamp stored as RFC 3339 text and
// the metadata as a JSON string.
func scanReceipt(scan func(...any) error) (*Receipt, error) {
	var (
		r         Receipt
		timestamp string
		metaJSON  sql.NullString
	)
	err := scan(&r.ReceiptID, &r.TraceID, &r.EventType, &r.EventHash, &timestamp, &metaJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, unavailable("scan receipt", err)
	}

	r.Time = parseTime(timestamp)
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &r.Metadata)
	}
	return &r, nil
}

func marshalMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
