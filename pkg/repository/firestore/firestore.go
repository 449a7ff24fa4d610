package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection = "memory_entries"

	// DefaultCapacity is the hard ceiling on retained entries, matching the
	// in-process backend. Enforced during cleanup sweeps rather than on every
	// write to keep Put a single round trip.
	DefaultCapacity = 10000
)

// Store is the Firestore-backed memory store. One collection holds all
// entry types; pattern aggregation runs inline on performance-record writes,
// same as the in-process backend.
type Store struct {
	client     *firestore.Client
	collection string
	capacity   int
	patternTTL time.Duration
}

var _ interfaces.MemoryStore = &Store{}

// Option configures a Store
type Option func(*Store)

// WithCollection overrides the collection name, useful for test isolation
func WithCollection(name string) Option {
	return func(s *Store) {
		s.collection = name
	}
}

// WithCapacity overrides the hard entry ceiling
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithPatternTTL overrides the TTL applied to aggregated content patterns
func WithPatternTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.patternTTL = ttl
	}
}

// New creates a Firestore-backed memory store
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Store, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	s := &Store{
		client:     client,
		collection: defaultCollection,
		capacity:   DefaultCapacity,
		patternTTL: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// entryDoc is the Firestore document representation of model.MemoryEntry.
// The payload stays serialized so both backends store the same shape.
type entryDoc struct {
	Key        string    `firestore:"Key"`
	Type       string    `firestore:"Type"`
	Tags       []string  `firestore:"Tags"`
	Source     string    `firestore:"Source"`
	Confidence float64   `firestore:"Confidence"`
	CreatedAt  time.Time `firestore:"CreatedAt"`
	ExpiresAt  time.Time `firestore:"ExpiresAt"`
	Data       []byte    `firestore:"Data"`
}

func toEntryDoc(e *model.MemoryEntry) *entryDoc {
	return &entryDoc{
		Key:        e.Key,
		Type:       e.Type.String(),
		Tags:       e.Tags,
		Source:     e.Source,
		Confidence: e.Confidence,
		CreatedAt:  e.CreatedAt,
		ExpiresAt:  e.ExpiresAt,
		Data:       e.Data,
	}
}

func fromEntryDoc(d *entryDoc) *model.MemoryEntry {
	return &model.MemoryEntry{
		Key:        d.Key,
		Type:       types.EntryType(d.Type),
		Tags:       d.Tags,
		Source:     d.Source,
		Confidence: d.Confidence,
		CreatedAt:  d.CreatedAt,
		ExpiresAt:  d.ExpiresAt,
		Data:       d.Data,
	}
}

func docToEntry(doc *firestore.DocumentSnapshot) (*model.MemoryEntry, error) {
	var d entryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode memory entry document")
	}
	return fromEntryDoc(&d), nil
}

// docID hashes the entry key: Firestore document IDs must not contain
// slashes and entry keys are caller-controlled
func docID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *Store) entries() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// Put upserts an entry by key. Writing a performance record additionally
// recomputes the content pattern for the record's condition tuple.
func (s *Store) Put(ctx context.Context, entry *model.MemoryEntry) error {
	if err := entry.Validate(); err != nil {
		return goerr.Wrap(err, "invalid memory entry")
	}

	if _, err := s.entries().Doc(docID(entry.Key)).Set(ctx, toEntryDoc(entry)); err != nil {
		return goerr.Wrap(types.ErrStore, "failed to put memory entry",
			goerr.V("key", entry.Key), goerr.V("cause", err.Error()))
	}

	if entry.Type == types.EntryPerformanceRecord {
		if err := s.aggregate(ctx, entry); err != nil {
			return goerr.Wrap(err, "failed to aggregate content pattern", goerr.V("key", entry.Key))
		}
	}
	return nil
}

func (s *Store) aggregate(ctx context.Context, entry *model.MemoryEntry) error {
	rec, err := entry.PerformanceRecord()
	if err != nil {
		return err
	}

	patternKey := rec.PatternKey()

	var existing *model.ContentPattern
	if prev, err := s.Get(ctx, patternKey); err != nil {
		return err
	} else if prev != nil {
		existing, err = prev.ContentPattern()
		if err != nil {
			return err
		}
	}

	retainedEntries, err := s.Query(ctx, &model.MemoryQuery{
		Type: types.EntryPerformanceRecord,
		Tags: []string{patternKey},
	})
	if err != nil {
		return err
	}
	retained := make([]*model.PerformanceRecord, 0, len(retainedEntries))
	for _, e := range retainedEntries {
		r, err := e.PerformanceRecord()
		if err != nil {
			continue
		}
		retained = append(retained, r)
	}

	pattern := model.UpdatePattern(existing, rec, retained)
	patternEntry, err := model.NewPatternEntry(pattern, s.patternTTL)
	if err != nil {
		return err
	}

	if _, err := s.entries().Doc(docID(patternEntry.Key)).Set(ctx, toEntryDoc(patternEntry)); err != nil {
		return goerr.Wrap(types.ErrStore, "failed to put content pattern",
			goerr.V("key", patternEntry.Key), goerr.V("cause", err.Error()))
	}
	return nil
}

// Get retrieves an entry by key. Absent or expired keys return (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*model.MemoryEntry, error) {
	doc, err := s.entries().Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(types.ErrStore, "failed to get memory entry",
			goerr.V("key", key), goerr.V("cause", err.Error()))
	}

	entry, err := docToEntry(doc)
	if err != nil {
		return nil, err
	}
	if entry.IsExpired(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

// Query returns entries matching the criteria. Type and source are pushed
// down to Firestore; tags, confidence, and age filter client-side to keep
// the index surface small (see the migrate command).
func (s *Store) Query(ctx context.Context, q *model.MemoryQuery) ([]*model.MemoryEntry, error) {
	if q == nil {
		q = &model.MemoryQuery{}
	}

	query := s.entries().Query
	if q.Type != "" {
		query = query.Where("Type", "==", q.Type.String())
	}
	if q.Source != "" {
		query = query.Where("Source", "==", q.Source)
	}
	query = query.OrderBy("CreatedAt", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	now := time.Now()
	var matched []*model.MemoryEntry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(types.ErrStore, "failed to iterate memory entries",
				goerr.V("cause", err.Error()))
		}
		entry, err := docToEntry(doc)
		if err != nil {
			return nil, err
		}
		if !matchesClientSide(entry, q, now) {
			continue
		}
		matched = append(matched, entry)
	}

	sortEntries(matched, q.SortBy, q.SortOrder)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func matchesClientSide(e *model.MemoryEntry, q *model.MemoryQuery, now time.Time) bool {
	if e.IsExpired(now) {
		return false
	}
	if q.MinConfidence > 0 && e.Confidence < q.MinConfidence {
		return false
	}
	if q.MaxAge > 0 && e.Age(now) > q.MaxAge {
		return false
	}
	for _, tag := range q.Tags {
		if !contains(e.Tags, tag) {
			return false
		}
	}
	return true
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
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

// CleanupExpired removes the entries whose expiry has passed, then evicts
// the oldest survivors past the capacity ceiling. Returns the total removed.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	iter := s.entries().Where("ExpiresAt", "<=", time.Now()).Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(types.ErrStore, "failed to iterate expired entries",
				goerr.V("cause", err.Error()))
		}
		refs = append(refs, doc.Ref)
	}

	if len(refs) > 0 {
		if err := s.deleteRefs(ctx, refs); err != nil {
			return 0, err
		}
	}

	evicted, err := s.enforceCapacity(ctx)
	if err != nil {
		return len(refs), err
	}
	return len(refs) + evicted, nil
}

// enforceCapacity evicts oldest-first once the entry count exceeds the
// ceiling, regardless of remaining TTL
func (s *Store) enforceCapacity(ctx context.Context) (int, error) {
	iter := s.entries().OrderBy("CreatedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(types.ErrStore, "failed to iterate entries for capacity check",
				goerr.V("cause", err.Error()))
		}
		refs = append(refs, doc.Ref)
	}

	overflow := len(refs) - s.capacity
	if overflow <= 0 {
		return 0, nil
	}
	if err := s.deleteRefs(ctx, refs[:overflow]); err != nil {
		return 0, err
	}
	return overflow, nil
}

func (s *Store) deleteRefs(ctx context.Context, refs []*firestore.DocumentRef) error {
	bulkWriter := s.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, ref := range refs {
		if _, err := bulkWriter.Delete(ref); err != nil {
			return goerr.Wrap(types.ErrStore, "failed to add delete to bulk writer",
				goerr.V("cause", err.Error()))
		}
	}
	bulkWriter.Flush()
	return nil
}

// ClearAll removes everything. Administrative.
func (s *Store) ClearAll(ctx context.Context) error {
	iter := s.entries().Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(types.ErrStore, "failed to iterate entries for deletion",
				goerr.V("cause", err.Error()))
		}
		refs = append(refs, doc.Ref)
	}
	if len(refs) == 0 {
		return nil
	}
	return s.deleteRefs(ctx, refs)
}

// Stats reports the entry count and creation time bounds
func (s *Store) Stats(ctx context.Context) (*model.MemoryStats, error) {
	iter := s.entries().Documents(ctx)
	defer iter.Stop()

	stats := &model.MemoryStats{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(types.ErrStore, "failed to iterate entries for stats",
				goerr.V("cause", err.Error()))
		}
		entry, err := docToEntry(doc)
		if err != nil {
			return nil, err
		}
		stats.EntryCount++
		stats.SizeEstimateByte += int64(len(entry.Key) + len(entry.Data))
		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.CreatedAt
		}
	}
	return stats, nil
}

// Close releases the Firestore client
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}
