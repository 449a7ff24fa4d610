package types

import "fmt"

// PerformanceProfile represents the declared speed/quality trade-off of a strategy
type PerformanceProfile string

const (
	ProfileFast          PerformanceProfile = "fast"
	ProfileBalanced      PerformanceProfile = "balanced"
	ProfileComprehensive PerformanceProfile = "comprehensive"
)

// AllPerformanceProfiles returns all valid performance profiles
func AllPerformanceProfiles() []PerformanceProfile {
	return []PerformanceProfile{
		ProfileFast,
		ProfileBalanced,
		ProfileComprehensive,
	}
}

// IsValid checks if the performance profile is valid
func (p PerformanceProfile) IsValid() bool {
	switch p {
	case ProfileFast, ProfileBalanced, ProfileComprehensive:
		return true
	default:
		return false
	}
}

// String returns the string representation of the performance profile
func (p PerformanceProfile) String() string {
	return string(p)
}

// ParsePerformanceProfile parses a string into a PerformanceProfile
func ParsePerformanceProfile(s string) (PerformanceProfile, error) {
	p := PerformanceProfile(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid performance profile: %s", s)
	}
	return p, nil
}
