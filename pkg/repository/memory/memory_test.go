package memory_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/repository/memory"
)

func testEntry(key string, ttl time.Duration) *model.MemoryEntry {
	return &model.MemoryEntry{
		Key:        key,
		Type:       types.EntryWorkflowSummary,
		Tags:       []string{"test"},
		Source:     "test",
		Confidence: 0.5,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  time.Now().UTC().Add(ttl),
		Data:       json.RawMessage(`{}`),
	}
}

func perfRecord(strategy string, accuracy float64, latencyMS int) *model.PerformanceRecord {
	return &model.PerformanceRecord{
		Strategy:    strategy,
		ContentType: types.ContentTypeTechnical,
		Complexity:  types.ComplexityMedium,
		DeviceType:  types.DeviceDesktop,
		Fingerprint: "h1-l0-t0",
		Metrics: model.PerformanceMetrics{
			ActualAccuracy:  accuracy,
			ActualLatencyMS: latencyMS,
		},
		Timestamp: time.Now().UTC(),
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	entry := testEntry("k1", time.Hour)
	gt.NoError(t, store.Put(ctx, entry)).Required()

	got, err := store.Get(ctx, "k1")
	gt.NoError(t, err).Required()
	gt.Value(t, got.Key).Equal("k1")
	gt.Value(t, got.Source).Equal("test")

	// mutation of the returned copy must not affect the stored entry
	got.Source = "mutated"
	again, err := store.Get(ctx, "k1")
	gt.NoError(t, err)
	gt.Value(t, again.Source).Equal("test")
}

func TestStore_GetAbsent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	got, err := store.Get(ctx, "missing")
	gt.NoError(t, err)
	gt.Value(t, got).Nil()
}

func TestStore_ExpiredInvisible(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	entry := testEntry("old", time.Hour)
	entry.CreatedAt = time.Now().Add(-2 * time.Hour)
	entry.ExpiresAt = time.Now().Add(-time.Hour)
	gt.NoError(t, store.Put(ctx, entry))

	got, err := store.Get(ctx, "old")
	gt.NoError(t, err)
	gt.Value(t, got).Nil()

	entries, err := store.Query(ctx, &model.MemoryQuery{})
	gt.NoError(t, err)
	gt.Array(t, entries).Length(0)
}

func TestStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	for i := 0; i < 3; i++ {
		e := testEntry(fmt.Sprintf("expired-%d", i), time.Hour)
		e.CreatedAt = time.Now().Add(-2 * time.Hour)
		e.ExpiresAt = time.Now().Add(-time.Minute)
		gt.NoError(t, store.Put(ctx, e))
	}
	gt.NoError(t, store.Put(ctx, testEntry("fresh", time.Hour)))

	removed, err := store.CleanupExpired(ctx)
	gt.NoError(t, err)
	gt.Number(t, removed).Equal(3)

	// idempotent
	removed, err = store.CleanupExpired(ctx)
	gt.NoError(t, err)
	gt.Number(t, removed).Equal(0)

	got, err := store.Get(ctx, "fresh")
	gt.NoError(t, err)
	gt.Value(t, got).NotNil()
}

func TestStore_CapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithCapacity(3))

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		e := testEntry(fmt.Sprintf("k%d", i), 2*time.Hour)
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		gt.NoError(t, store.Put(ctx, e))
	}

	// oldest entry made room for the fourth
	got, err := store.Get(ctx, "k0")
	gt.NoError(t, err)
	gt.Value(t, got).Nil()

	for i := 1; i < 4; i++ {
		got, err := store.Get(ctx, fmt.Sprintf("k%d", i))
		gt.NoError(t, err)
		gt.Value(t, got).NotNil()
	}
}

func TestStore_QueryFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	e1 := testEntry("a", time.Hour)
	e1.Tags = []string{"x", "y"}
	e1.Confidence = 0.9
	e2 := testEntry("b", time.Hour)
	e2.Tags = []string{"x"}
	e2.Confidence = 0.2
	e3 := testEntry("c", time.Hour)
	e3.Source = "other"
	e3.Tags = []string{"x", "y"}
	gt.NoError(t, store.Put(ctx, e1))
	gt.NoError(t, store.Put(ctx, e2))
	gt.NoError(t, store.Put(ctx, e3))

	t.Run("all tags must match", func(t *testing.T) {
		entries, err := store.Query(ctx, &model.MemoryQuery{Tags: []string{"x", "y"}})
		gt.NoError(t, err)
		gt.Array(t, entries).Length(2)
	})

	t.Run("source filter", func(t *testing.T) {
		entries, err := store.Query(ctx, &model.MemoryQuery{Source: "other"})
		gt.NoError(t, err)
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].Key).Equal("c")
	})

	t.Run("min confidence", func(t *testing.T) {
		entries, err := store.Query(ctx, &model.MemoryQuery{MinConfidence: 0.8})
		gt.NoError(t, err)
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].Key).Equal("a")
	})

	t.Run("limit", func(t *testing.T) {
		entries, err := store.Query(ctx, &model.MemoryQuery{Limit: 2})
		gt.NoError(t, err)
		gt.Array(t, entries).Length(2)
	})

	t.Run("sort by confidence ascending", func(t *testing.T) {
		entries, err := store.Query(ctx, &model.MemoryQuery{
			SortBy:    model.SortByConfidence,
			SortOrder: model.SortAscending,
		})
		gt.NoError(t, err)
		gt.Array(t, entries).Length(3).Required()
		gt.Value(t, entries[0].Key).Equal("b")
	})
}

func TestStore_PatternAggregation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	key := model.PatternKey(types.ContentTypeTechnical, types.ComplexityMedium, "h1-l0-t0")

	t.Run("first record creates the pattern", func(t *testing.T) {
		entry, err := model.NewPerformanceEntry(perfRecord("fast-path", 0.8, 900), time.Hour)
		gt.NoError(t, err).Required()
		gt.NoError(t, store.Put(ctx, entry))

		got, err := store.Get(ctx, key)
		gt.NoError(t, err).Required()
		gt.Value(t, got).NotNil().Required()

		pattern, err := got.ContentPattern()
		gt.NoError(t, err).Required()
		gt.Number(t, pattern.Occurrences).Equal(1)
		gt.Value(t, pattern.OptimalStrategy).Equal("fast-path")
	})

	t.Run("occurrences accumulate and modal strategy wins", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			entry, err := model.NewPerformanceEntry(perfRecord("deep-path", 0.9, 3000), time.Hour)
			gt.NoError(t, err).Required()
			gt.NoError(t, store.Put(ctx, entry))
		}

		got, err := store.Get(ctx, key)
		gt.NoError(t, err).Required()
		pattern, err := got.ContentPattern()
		gt.NoError(t, err).Required()

		gt.Number(t, pattern.Occurrences).Equal(4)
		gt.Value(t, pattern.OptimalStrategy).Equal("deep-path")
		gt.Number(t, pattern.Confidence).Equal(4.0 / (4.0 + model.PatternSmoothing))
	})
}

func TestStore_ClearAllAndStats(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	gt.NoError(t, store.Put(ctx, testEntry("a", time.Hour)))
	gt.NoError(t, store.Put(ctx, testEntry("b", time.Hour)))

	stats, err := store.Stats(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, stats.EntryCount).Equal(2)

	gt.NoError(t, store.ClearAll(ctx))

	stats, err = store.Stats(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, stats.EntryCount).Equal(0)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithCapacity(64))

	const workers = 8
	const iterations = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				key := fmt.Sprintf("w%d-e%d", worker, i)
				e := testEntry(key, time.Hour)
				if i%5 == 0 {
					e.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
					e.ExpiresAt = time.Now().UTC().Add(-time.Minute)
				}
				gt.NoError(t, store.Put(ctx, e))

				rec, err := model.NewPerformanceEntry(perfRecord("fast-path", 0.8, 900), time.Hour)
				gt.NoError(t, err)
				gt.NoError(t, store.Put(ctx, rec))
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_, err := store.Get(ctx, fmt.Sprintf("w0-e%d", i))
			gt.NoError(t, err)
			entries, err := store.Query(ctx, &model.MemoryQuery{Type: types.EntryWorkflowSummary})
			gt.NoError(t, err)
			for _, e := range entries {
				e.Source = "mutated"
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_, err := store.CleanupExpired(ctx)
			gt.NoError(t, err)
			_, err = store.Stats(ctx)
			gt.NoError(t, err)
		}
	}()

	wg.Wait()

	stats, err := store.Stats(ctx)
	gt.NoError(t, err).Required()
	gt.Number(t, stats.EntryCount).LessOrEqual(64)

	// mutations of queried copies never reached the stored entries
	entries, err := store.Query(ctx, &model.MemoryQuery{Type: types.EntryWorkflowSummary})
	gt.NoError(t, err).Required()
	for _, e := range entries {
		gt.Value(t, e.Source).Equal("test")
	}
}

func TestStore_PutRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	e := testEntry("bad", time.Hour)
	e.ExpiresAt = e.CreatedAt.Add(-time.Minute)
	gt.Error(t, store.Put(ctx, e))
}
