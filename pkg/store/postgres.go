package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresStore is the durable server-backed backend for deployments that
// already run Postgres. Behavior is identical to the SQLite backend; schema
// provisioning is expected from the deployment's own migration tooling:
//
//	CREATE TABLE receipts (
//	    receipt_id TEXT PRIMARY KEY,
//	    trace_id   TEXT NOT NULL,
//	    event_type TEXT NOT NULL,
//	    event_hash TEXT NOT NULL,
//	    time       TIMESTAMPTZ NOT NULL,
//	    metadata   TEXT
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, traceID, eventType, eventHash string, metadata map[string]any) (*Receipt, error) {
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
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ReceiptID, r.TraceID, r.EventType, r.EventHash, r.Time, metaJSON,
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

func (s *PostgresStore) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
		 FROM receipts WHERE receipt_id = $1`, receiptID)
	return scanPGReceipt(row.Scan)
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Receipt, int, error) {
	opts = opts.normalize()

	countQuery := `SELECT COUNT(*) FROM receipts`
	pageQuery := `SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
		FROM receipts ORDER BY time ASC, receipt_id ASC LIMIT $1 OFFSET $2`
	countArgs := []any{}
	pageArgs := []any{opts.Limit, opts.Offset}
	if opts.TraceID != "" {
		countQuery = `SELECT COUNT(*) FROM receipts WHERE trace_id = $1`
		pageQuery = `SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
			FROM receipts WHERE trace_id = $1 ORDER BY time ASC, receipt_id ASC LIMIT $2 OFFSET $3`
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

func (s *PostgresStore) ListByTrace(ctx context.Context, traceID string) ([]*Receipt, error) {
	return s.queryPage(ctx,
		`SELECT receipt_id, trace_id, event_type, event_hash, time, metadata
		 FROM receipts WHERE trace_id = $1 ORDER BY time ASC, receipt_id ASC`, traceID)
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) queryPage(ctx context.Context, query string, args ...any) ([]*Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query receipts", err)
	}
	defer func() { _ = rows.Close() }()

	receipts := []*Receipt{}
	for rows.Next() {
		r, err := scanPGReceipt(rows.Scan)
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

// scanPGReceipt decodes one row; Postgres returns the timestamptz column as
// time.Time directly.
func scanPGReceipt(scan func(...any) error) (*Receipt, error) {
	var (
		r        Receipt
		metaJSON sql.NullString
	)
	err := scan(&r.ReceiptID, &r.TraceID, &r.EventType, &r.EventHash, &r.Time, &metaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("scan receipt", err)
	}

	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &r.Metadata)
	}
	return &r, nil
}
