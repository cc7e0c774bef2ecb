package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The memory and sqlite backends must be observationally identical, so every
// behavior test runs against both.
func forEachBackend(t *testing.T, fn func(t *testing.T, s ReceiptStore)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "receipts.db"))
		require.NoError(t, err)
		s, err := NewSQLiteStore(db)
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

const testHash = "sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestCreateAndGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		ctx := context.Background()

		meta := map[string]any{"event_id": "evt_1", "source": "https://x"}
		created, err := s.Create(ctx, "txn_1", "ocn.orca.decision.v1", testHash, meta)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ReceiptID)
		assert.Equal(t, "txn_1", created.TraceID)
		assert.Equal(t, "ocn.orca.decision.v1", created.EventType)
		assert.Equal(t, testHash, created.EventHash)
		assert.WithinDuration(t, time.Now().UTC(), created.Time, 5*time.Second)

		got, err := s.Get(ctx, created.ReceiptID)
		require.NoError(t, err)
		assert.Equal(t, created.ReceiptID, got.ReceiptID)
		assert.Equal(t, created.TraceID, got.TraceID)
		assert.Equal(t, created.EventHash, got.EventHash)
		assert.Equal(t, "evt_1", got.Metadata["event_id"])
		assert.Equal(t, "https://x", got.Metadata["source"])
	})
}

func TestGet_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		_, err := s.Get(context.Background(), "nonexistent-id")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreate_NilMetadata(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		ctx := context.Background()
		created, err := s.Create(ctx, "txn", "ocn.weave.audit.v1", testHash, nil)
		require.NoError(t, err)

		got, err := s.Get(ctx, created.ReceiptID)
		require.NoError(t, err)
		assert.Empty(t, got.Metadata)
	})
}

func TestList_TraceFilterAndTotal(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := s.Create(ctx, "txn_a", "ocn.orca.decision.v1", testHash, nil)
			require.NoError(t, err)
		}
		for i := 0; i < 2; i++ {
			_, err := s.Create(ctx, "txn_b", "ocn.weave.audit.v1", testHash, nil)
			require.NoError(t, err)
		}

		receipts, total, err := s.List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Len(t, receipts, 5)

		receipts, total, err = s.List(ctx, ListOptions{TraceID: "txn_a"})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, receipts, 3)
		for _, r := range receipts {
			assert.Equal(t, "txn_a", r.TraceID)
		}

		// total reflects all matches even when the page is smaller
		receipts, total, err = s.List(ctx, ListOptions{TraceID: "txn_a", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, receipts, 2)
	})
}

func TestList_OffsetBeyondBounds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		ctx := context.Background()
		_, err := s.Create(ctx, "txn", "ocn.orca.decision.v1", testHash, nil)
		require.NoError(t, err)

		receipts, total, err := s.List(ctx, ListOptions{Offset: 100})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Empty(t, receipts)
	})
}

func TestList_LimitCap(t *testing.T) {
	s := NewMemoryStore()
	opts := ListOptions{Limit: 9999}.normalize()
	assert.Equal(t, MaxLimit, opts.Limit)

	opts = ListOptions{Limit: -2, Offset: -5}.normalize()
	assert.Equal(t, DefaultLimit, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
	_ = s.Close()
}

// Pagination partitions of N matching receipts must reassemble to exactly the
// N receipts with no duplicates and no omissions.
func TestList_PaginationPartition(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		ctx := context.Background()

		const n = 17
		created := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			r, err := s.Create(ctx, "txn_page", "ocn.orca.decision.v1", testHash, nil)
			require.NoError(t, err)
			created[r.ReceiptID] = true
		}

		for _, pageSize := range []int{1, 3, 5, n, n + 1} {
			seen := make(map[string]bool, n)
			var reassembled []*Receipt
			for offset := 0; ; offset += pageSize {
				page, total, err := s.List(ctx, ListOptions{TraceID: "txn_page", Limit: pageSize, Offset: offset})
				require.NoError(t, err)
				assert.Equal(t, n, total)
				if len(page) == 0 {
					break
				}
				for _, r := range page {
					assert.False(t, seen[r.ReceiptID], "duplicate receipt %s at page size %d", r.ReceiptID, pageSize)
					seen[r.ReceiptID] = true
				}
				reassembled = append(reassembled, page...)
			}

			require.Len(t, reassembled, n, "page size %d", pageSize)
			for id := range created {
				assert.True(t, seen[id], "missing receipt %s at page size %d", id, pageSize)
			}
			for i := 1; i < len(reassembled); i++ {
				assert.False(t, reassembled[i].Time.Before(reassembled[i-1].Time),
					"receipts out of order at page size %d", pageSize)
			}
		}
	})
}

func TestListByTrace_OrderedAndEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		ctx := context.Background()

		first, err := s.Create(ctx, "txn_2", "ocn.orca.decision.v1", testHash, nil)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct creation timestamps
		second, err := s.Create(ctx, "txn_2", "ocn.orca.explanation.v1", testHash, nil)
		require.NoError(t, err)
		_, err = s.Create(ctx, "txn_other", "ocn.weave.audit.v1", testHash, nil)
		require.NoError(t, err)

		receipts, err := s.ListByTrace(ctx, "txn_2")
		require.NoError(t, err)
		require.Len(t, receipts, 2)
		assert.Equal(t, first.ReceiptID, receipts[0].ReceiptID)
		assert.Equal(t, second.ReceiptID, receipts[1].ReceiptID)

		// unknown trace is an empty result, not an error
		receipts, err = s.ListByTrace(ctx, "txn_unknown")
		require.NoError(t, err)
		assert.Empty(t, receipts)
	})
}

// 1000 concurrent Create calls must yield 1000 distinct receipt ids and 1000
// persisted rows.
func TestCreate_ConcurrentUniqueness(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s ReceiptStore) {
		ctx := context.Background()
		const n = 1000

		ids := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := s.Create(ctx, fmt.Sprintf("txn_%d", i%10), "ocn.orca.decision.v1", testHash, nil)
				if err != nil {
					t.Errorf("create %d: %v", i, err)
					return
				}
				ids <- r.ReceiptID
			}(i)
		}
		wg.Wait()
		close(ids)

		distinct := make(map[string]bool, n)
		for id := range ids {
			distinct[id] = true
		}
		require.Len(t, distinct, n, "receipt ids must be unique under concurrency")

		_, total, err := s.List(ctx, ListOptions{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, n, total)
	})
}

func TestReceiptImmutability(t *testing.T) {
	// Mutating a returned receipt must not affect what the store holds.
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	created, err := s.Create(ctx, "txn", "ocn.orca.decision.v1", testHash, map[string]any{"source": "https://x"})
	require.NoError(t, err)
	created.Metadata["source"] = "tampered"
	created.TraceID = "tampered"

	got, err := s.Get(ctx, created.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, "txn", got.TraceID)
	assert.Equal(t, "https://x", got.Metadata["source"])
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("etcd", "")
	assert.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	_ = s.Close()
}
