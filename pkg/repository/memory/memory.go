package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

const (
	// DefaultCapacity is the hard ceiling on retained entries. When
	// exceeded, the oldest entries are evicted regardless of remaining TTL.
	DefaultCapacity = 10000

	// DefaultPatternTTL keeps aggregated patterns much longer than the raw
	// records they summarize.
	DefaultPatternTTL = 7 * 24 * time.Hour
)

// Store is the in-process memory store. The only shared mutable resource in
// the core: all methods are safe under concurrent interleaving, and reads
// hand out deep copies so eviction never invalidates an in-flight scoring
// computation.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*model.MemoryEntry
	capacity   int
	patternTTL time.Duration
}

var _ interfaces.MemoryStore = &Store{}

// Option configures a Store
type Option func(*Store)

// WithCapacity overrides the hard entry ceiling
func WithCapacity(n int) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// WithPatternTTL overrides the TTL applied to aggregated content patterns
func WithPatternTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.patternTTL = ttl
	}
}

// New creates an in-process memory store
func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]*model.MemoryEntry),
		capacity:   DefaultCapacity,
		patternTTL: DefaultPatternTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func copyEntry(e *model.MemoryEntry) *model.MemoryEntry {
	copied := &model.MemoryEntry{
		Key:        e.Key,
		Type:       e.Type,
		Source:     e.Source,
		Confidence: e.Confidence,
		CreatedAt:  e.CreatedAt,
		ExpiresAt:  e.ExpiresAt,
	}
	if e.Tags != nil {
		copied.Tags = make([]string, len(e.Tags))
		copy(copied.Tags, e.Tags)
	}
	if e.Data != nil {
		copied.Data = make([]byte, len(e.Data))
		copy(copied.Data, e.Data)
	}
	return copied
}

// Put upserts an entry by key. Writing a performance record additionally
// recomputes the content pattern for the record's condition tuple.
func (s *Store) Put(ctx context.Context, entry *model.MemoryEntry) error {
	if err := entry.Validate(); err != nil {
		return goerr.Wrap(err, "invalid memory entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Key] = copyEntry(entry)

	if entry.Type == types.EntryPerformanceRecord {
		if err := s.aggregateLocked(entry); err != nil {
			return goerr.Wrap(err, "failed to aggregate content pattern", goerr.V("key", entry.Key))
		}
	}

	s.enforceCapacityLocked()
	return nil
}

// aggregateLocked upserts the content pattern for a freshly written
// performance record. Caller holds the write lock.
func (s *Store) aggregateLocked(entry *model.MemoryEntry) error {
	rec, err := entry.PerformanceRecord()
	if err != nil {
		return err
	}

	patternKey := rec.PatternKey()

	var existing *model.ContentPattern
	if prev, ok := s.entries[patternKey]; ok && !prev.IsExpired(time.Now()) {
		existing, err = prev.ContentPattern()
		if err != nil {
			return err
		}
	}

	retained := s.retainedRecordsLocked(patternKey)
	pattern := model.UpdatePattern(existing, rec, retained)

	patternEntry, err := model.NewPatternEntry(pattern, s.patternTTL)
	if err != nil {
		return err
	}
	s.entries[patternEntry.Key] = patternEntry
	return nil
}

// retainedRecordsLocked collects the still-live performance records for one
// pattern tuple. Caller holds at least the read lock.
func (s *Store) retainedRecordsLocked(patternKey string) []*model.PerformanceRecord {
	now := time.Now()
	var records []*model.PerformanceRecord
	for _, e := range s.entries {
		if e.Type != types.EntryPerformanceRecord || e.IsExpired(now) {
			continue
		}
		if !hasTag(e.Tags, patternKey) {
			continue
		}
		rec, err := e.PerformanceRecord()
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// enforceCapacityLocked evicts oldest-first once the ceiling is exceeded,
// regardless of remaining TTL. Caller holds the write lock.
func (s *Store) enforceCapacityLocked() {
	if len(s.entries) <= s.capacity {
		return
	}

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.entries[keys[i]], s.entries[keys[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		if len(s.entries) <= s.capacity {
			break
		}
		delete(s.entries, k)
	}
}

// Get retrieves an entry by key. Absent or expired keys return (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*model.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || entry.IsExpired(time.Now()) {
		return nil, nil
	}
	return copyEntry(entry), nil
}

// Query returns entries matching the criteria. Expired entries stop
// matching even before cleanup removes them.
func (s *Store) Query(ctx context.Context, q *model.MemoryQuery) ([]*model.MemoryEntry, error) {
	if q == nil {
		q = &model.MemoryQuery{}
	}

	s.mu.RLock()
	matched := make([]*model.MemoryEntry, 0)
	now := time.Now()
	for _, e := range s.entries {
		if !matches(e, q, now) {
			continue
		}
		matched = append(matched, copyEntry(e))
	}
	s.mu.RUnlock()

	sortEntries(matched, q.SortBy, q.SortOrder)

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func matches(e *model.MemoryEntry, q *model.MemoryQuery, now time.Time) bool {
	if e.IsExpired(now) {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if q.MinConfidence > 0 && e.Confidence < q.MinConfidence {
		return false
	}
	if q.MaxAge > 0 && e.Age(now) > q.MaxAge {
		return false
	}
	for _, tag := range q.Tags {
		if !hasTag(e.Tags, tag) {
			return false
		}
	}
	return true
}

func sortEntries(entries []*model.MemoryEntry, by model.SortField, order model.SortOrder) {
	if by == "" {
		by = model.SortByCreatedAt
	}
	if order == "" {
		order = model.SortDescending
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		var less bool
		switch by {
		case model.SortByConfidence:
			if a.Confidence != b.Confidence {
				less = a.Confidence < b.Confidence
			} else {
				less = a.Key < b.Key
			}
		case model.SortByExpiresAt:
			if !a.ExpiresAt.Equal(b.ExpiresAt) {
				less = a.ExpiresAt.Before(b.ExpiresAt)
			} else {
				less = a.Key < b.Key
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				less = a.CreatedAt.Before(b.CreatedAt)
			} else {
				less = a.Key < b.Key
			}
		}
		if order == model.SortDescending {
			return !less
		}
		return less
	})
}

// CleanupExpired removes exactly the entries whose expiry has passed.
// A second call removes zero.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range s.entries {
		if e.IsExpired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// ClearAll removes everything
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*model.MemoryEntry)
	return nil
}

// Stats reports the entry count, a rough size estimate, and the creation
// time bounds of retained entries
func (s *Store) Stats(ctx context.Context) (*model.MemoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.MemoryStats{
		EntryCount: len(s.entries),
	}
	for _, e := range s.entries {
		stats.SizeEstimateByte += int64(len(e.Key) + len(e.Data) + len(e.Source) + len(strings.Join(e.Tags, "")))
		if stats.OldestEntry.IsZero() || e.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = e.CreatedAt
		}
		if e.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = e.CreatedAt
		}
	}
	return stats, nil
}

// Close is a no-op for the in-process store
func (s *Store) Close() error {
	return nil
}
