package types

import "fmt"

// EntryType classifies a memory entry payload
type EntryType string

const (
	EntryPerformanceRecord EntryType = "performance_record"
	EntryContentPattern    EntryType = "content_pattern"
	EntryWorkflowSummary   EntryType = "workflow_summary"
)

// AllEntryTypes returns all valid entry types
func AllEntryTypes() []EntryType {
	return []EntryType{
		EntryPerformanceRecord,
		EntryContentPattern,
		EntryWorkflowSummary,
	}
}

// IsValid checks if the entry type is valid
func (t EntryType) IsValid() bool {
	switch t {
	case EntryPerformanceRecord, EntryContentPattern, EntryWorkflowSummary:
		return true
	default:
		return false
	}
}

// String returns the string representation of the entry type
func (t EntryType) String() string {
	return string(t)
}

// ParseEntryType parses a string into an EntryType
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid entry type: %s", s)
	}
	return t, nil
}
