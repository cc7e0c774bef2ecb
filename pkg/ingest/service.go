// Package ingest orchestrates the receipt pipeline: validate the CloudEvent,
// hash its payload, persist a receipt. This is the operation external
// transports invoke; retrieval flows pass straight through to the store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ocn-ai/weave/pkg/canonical"
	"github.com/ocn-ai/weave/pkg/event"
	"github.com/ocn-ai/weave/pkg/logging"
	"github.com/ocn-ai/weave/pkg/store"
)

// Summary is what the transport layer returns to the submitter: the receipt's
// identifying fields, no payload.
type Summary struct {
	ReceiptID string    `json:"receipt_id"`
	TraceID   string    `json:"trace_id"`
	EventType string    `json:"event_type"`
	EventHash string    `json:"event_hash"`
	Time      time.Time `json:"time"`
}

// Service wires validator, hasher and store.
type Service struct {
	validator *event.Validator
	receipts  store.ReceiptStore
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewService(validator *event.Validator, receipts store.ReceiptStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		validator: validator,
		receipts:  receipts,
		logger:    logger,
		tracer:    otel.Tracer("ocn.weave/ingest"),
	}
}

// Ingest validates ev, hashes its payload and persists a receipt. origin is
// the client network origin for the receipt metadata ("" when unknown).
// Returns *event.ValidationError for rejected envelopes and an error wrapping
// store.ErrStorageUnavailable when persistence fails; in both cases nothing
// was written.
func (s *Service) Ingest(ctx context.Context, ev *event.Event, origin string) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "weave.ingest",
		trace.WithAttributes(attribute.String("cloudevent.type", ev.Type)))
	defer span.End()

	validated, err := s.validator.Validate(ev)
	if err != nil {
		s.logger.WarnContext(logging.WithTrace(ctx, ev.EffectiveTraceID()),
			"rejected event", "event_id", ev.ID, "reason", err.Error())
		return nil, err
	}
	ctx = logging.WithTrace(ctx, validated.TraceID)

	hash, err := canonical.Hash(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("hash event data: %w", err)
	}

	receipt, err := s.receipts.Create(ctx, validated.TraceID, ev.Type, hash, buildMetadata(ev, origin))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store receipt", "event_id", ev.ID, "error", err.Error())
		return nil, err
	}

	s.logger.InfoContext(ctx, "stored receipt",
		"receipt_id", receipt.ReceiptID,
		"event_id", ev.ID,
		"event_type", receipt.EventType,
	)

	return &Summary{
		ReceiptID: receipt.ReceiptID,
		TraceID:   receipt.TraceID,
		EventType: receipt.EventType,
		EventHash: receipt.EventHash,
		Time:      receipt.Time,
	}, nil
}

// GetReceipt retrieves one receipt; returns store.ErrNotFound for unknown ids.
func (s *Service) GetReceipt(ctx context.Context, receiptID string) (*store.Receipt, error) {
	return s.receipts.Get(ctx, receiptID)
}

// ListReceipts returns one page plus the total match count.
func (s *Service) ListReceipts(ctx context.Context, opts store.ListOptions) ([]*store.Receipt, int, error) {
	return s.receipts.List(ctx, opts)
}

// ListByTrace returns the full audit trail for one transaction, time ascending.
func (s *Service) ListByTrace(ctx context.Context, traceID string) ([]*store.Receipt, error) {
	ctx = logging.WithTrace(ctx, traceID)
	receipts, err := s.receipts.ListByTrace(ctx, traceID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list receipts by trace", "error", err.Error())
		return nil, err
	}
	return receipts, nil
}

// buildMetadata assembles the non-sensitive descriptive fields persisted next
// to the hash. Nothing here may come from ev.Data.
func buildMetadata(ev *event.Event, origin string) map[string]any {
	metadata := map[string]any{
		"event_id":    ev.ID,
		"source":      ev.Source,
		"received_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if ev.DataContentType != "" {
		metadata["datacontenttype"] = ev.DataContentType
	}
	if ev.DataSchema != "" {
		metadata["dataschema"] = ev.DataSchema
	}
	if origin != "" {
		metadata["client_ip"] = origin
	}
	return metadata
}
