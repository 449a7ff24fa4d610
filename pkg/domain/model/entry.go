package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// MemoryEntry is the memory store's sole physical storage unit. All
// persisted record types are views over collections of entries; the payload
// is serialized JSON so both backends store the same shape.
type MemoryEntry struct {
	Key        string          `json:"key"`
	Type       types.EntryType `json:"type"`
	Tags       []string        `json:"tags,omitempty"`
	Source     string          `json:"source"`
	Confidence float64         `json:"confidence"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	Data       json.RawMessage `json:"data"`
}

// Validate checks if the memory entry is valid
func (e *MemoryEntry) Validate() error {
	if e.Key == "" {
		return goerr.New("entry key is required")
	}
	if !e.Type.IsValid() {
		return goerr.New("invalid entry type", goerr.V("key", e.Key), goerr.V("type", e.Type))
	}
	if e.CreatedAt.IsZero() {
		return goerr.New("entry creation time is required", goerr.V("key", e.Key))
	}
	if e.ExpiresAt.Before(e.CreatedAt) {
		return goerr.New("entry expiry precedes creation",
			goerr.V("key", e.Key),
			goerr.V("createdAt", e.CreatedAt),
			goerr.V("expiresAt", e.ExpiresAt),
		)
	}
	return nil
}

// IsExpired reports whether the entry's TTL has passed at the given time
func (e *MemoryEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Age returns how long ago the entry was created
func (e *MemoryEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// NewPerformanceEntry wraps a performance record into a fresh entry with a
// unique key. Performance records are append-only facts.
func NewPerformanceEntry(rec *PerformanceRecord, ttl time.Duration) (*MemoryEntry, error) {
	if err := rec.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid performance record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode performance record")
	}
	now := time.Now().UTC()
	return &MemoryEntry{
		Key:        "perf:" + uuid.Must(uuid.NewV7()).String(),
		Type:       types.EntryPerformanceRecord,
		Tags:       []string{rec.Strategy, rec.ConditionKey(), rec.PatternKey()},
		Source:     types.AgentDispatcher.String(),
		Confidence: rec.Metrics.ActualAccuracy,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Data:       data,
	}, nil
}

// NewPatternEntry wraps a content pattern into its keyed entry. Patterns are
// upserted in place and carry a longer TTL than raw records.
func NewPatternEntry(p *ContentPattern, ttl time.Duration) (*MemoryEntry, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode content pattern")
	}
	now := time.Now().UTC()
	return &MemoryEntry{
		Key:        p.Key(),
		Type:       types.EntryContentPattern,
		Tags:       []string{p.OptimalStrategy},
		Source:     "aggregation",
		Confidence: p.Confidence,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Data:       data,
	}, nil
}

// NewWorkflowSummaryEntry wraps a finished workflow's summary for
// persistence alongside the learning records
func NewWorkflowSummaryEntry(s *WorkflowSummary, ttl time.Duration) (*MemoryEntry, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode workflow summary")
	}
	now := time.Now().UTC()
	return &MemoryEntry{
		Key:        "workflow:" + s.WorkflowID.String(),
		Type:       types.EntryWorkflowSummary,
		Tags:       []string{s.State.String(), s.Strategy},
		Source:     types.AgentCoordinator.String(),
		Confidence: s.Confidence,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Data:       data,
	}, nil
}

// PerformanceRecord decodes the entry payload as a performance record
func (e *MemoryEntry) PerformanceRecord() (*PerformanceRecord, error) {
	if e.Type != types.EntryPerformanceRecord {
		return nil, goerr.New("entry is not a performance record",
			goerr.V("key", e.Key), goerr.V("type", e.Type))
	}
	var rec PerformanceRecord
	if err := json.Unmarshal(e.Data, &rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode performance record", goerr.V("key", e.Key))
	}
	return &rec, nil
}

// ContentPattern decodes the entry payload as a content pattern
func (e *MemoryEntry) ContentPattern() (*ContentPattern, error) {
	if e.Type != types.EntryContentPattern {
		return nil, goerr.New("entry is not a content pattern",
			goerr.V("key", e.Key), goerr.V("type", e.Type))
	}
	var p ContentPattern
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, goerr.Wrap(err, "failed to decode content pattern", goerr.V("key", e.Key))
	}
	return &p, nil
}

// WorkflowSummary decodes the entry payload as a workflow summary
func (e *MemoryEntry) WorkflowSummary() (*WorkflowSummary, error) {
	if e.Type != types.EntryWorkflowSummary {
		return nil, goerr.New("entry is not a workflow summary",
			goerr.V("key", e.Key), goerr.V("type", e.Type))
	}
	var s WorkflowSummary
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return nil, goerr.Wrap(err, "failed to decode workflow summary", goerr.V("key", e.Key))
	}
	return &s, nil
}

// MemoryStats is the aggregate view returned by the store
type MemoryStats struct {
	EntryCount       int       `json:"entryCount"`
	SizeEstimateByte int64     `json:"memoryUsageEstimate"`
	OldestEntry      time.Time `json:"oldestEntry,omitempty"`
	NewestEntry      time.Time `json:"newestEntry,omitempty"`
}

// SortField names a sortable entry attribute for queries
type SortField string

const (
	SortByCreatedAt  SortField = "createdAt"
	SortByConfidence SortField = "confidence"
	SortByExpiresAt  SortField = "expiresAt"
)

// SortOrder is the direction of a query sort
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// MemoryQuery filters and orders entries. Zero-valued criteria are ignored,
// never an error. Default sort is recency-descending.
type MemoryQuery struct {
	Type          types.EntryType
	Tags          []string
	Source        string
	MinConfidence float64
	MaxAge        time.Duration
	Limit         int
	SortBy        SortField
	SortOrder     SortOrder
}
