package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the volatile backend: a map guarded by a RWMutex. Intended
// for tests and development; contents do not survive the process.
type MemoryStore struct {
	mu       sync.RWMutex
	receipts map[string]*Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{receipts: make(map[string]*Receipt)}
}

func (s *MemoryStore) Create(ctx context.Context, traceID, eventType, eventHash string, metadata map[string]any) (*Receipt, error) {
	r := &Receipt{
		ReceiptID: uuid.New().String(),
		TraceID:   traceID,
		EventType: eventType,
		EventHash: eventHash,
		Time:      time.Now().UTC(),
		Metadata:  cloneMetadata(metadata),
	}

	s.mu.Lock()
	s.receipts[r.ReceiptID] = r
	s.mu.Unlock()

	return cloneReceipt(r), nil
}

func (s *MemoryStore) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	s.mu.RLock()
	r, ok := s.receipts[receiptID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReceipt(r), nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*Receipt, int, error) {
	opts = opts.normalize()

	matching := s.snapshot(opts.TraceID)
	total := len(matching)

	if opts.Offset >= total {
		return []*Receipt{}, total, nil
	}
	end := opts.Offset + opts.Limit
	if end > total {
		end = total
	}
	return matching[opts.Offset:end], total, nil
}

func (s *MemoryStore) ListByTrace(ctx context.Context, traceID string) ([]*Receipt, error) {
	return s.snapshot(traceID), nil
}

func (s *MemoryStore) Close() error { return nil }

// snapshot returns cloned receipts matching the trace filter (all receipts
// when traceID is empty), ordered by time ascending with receipt id tiebreak
// so pagination stays stable when timestamps collide.
func (s *MemoryStore) snapshot(traceID string) []*Receipt {
	s.mu.RLock()
	out := make([]*Receipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		if traceID == "" || r.TraceID == traceID {
			out = append(out, cloneReceipt(r))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].ReceiptID < out[j].ReceiptID
	})
	return out
}

func cloneReceipt(r *Receipt) *Receipt {
	c := *r
	c.Metadata = cloneMetadata(r.Metadata)
	return &c
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
