package interfaces

import (
	"context"

	"github.com/secmon-lab/strategos/pkg/domain/model"
)

// MemoryStore defines the shared store of performance records, content
// patterns, and workflow summaries. It is the only shared mutable resource
// in the core; implementations must be safe under concurrent Put, Query,
// and CleanupExpired calls. Reads tolerate entries disappearing mid-scan.
type MemoryStore interface {
	// Put upserts an entry by key. Writing a performance record triggers
	// aggregation of the corresponding content pattern.
	Put(ctx context.Context, entry *model.MemoryEntry) error

	// Get retrieves an entry by key. Absent keys return (nil, nil).
	Get(ctx context.Context, key string) (*model.MemoryEntry, error)

	// Query returns entries matching the criteria, recency-descending by
	// default. Unmatched criteria are ignored.
	Query(ctx context.Context, q *model.MemoryQuery) ([]*model.MemoryEntry, error)

	// CleanupExpired removes all entries whose expiry has passed and
	// returns the removed count. Idempotent.
	CleanupExpired(ctx context.Context) (int, error)

	// ClearAll removes everything. Administrative.
	ClearAll(ctx context.Context) error

	// Stats reports entry count, a usage estimate, and the age bounds.
	Stats(ctx context.Context) (*model.MemoryStats, error)

	// Close releases backend resources.
	Close() error
}
