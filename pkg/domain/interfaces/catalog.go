package interfaces

import (
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// StrategyCatalog is the read-only registry of available strategies.
// Populated at startup; no method mutates it afterwards.
type StrategyCatalog interface {
	// List returns all descriptors in a stable order.
	List() []model.StrategyDescriptor

	// ByProfile returns the descriptors of one performance tier.
	ByProfile(profile types.PerformanceProfile) []model.StrategyDescriptor

	// ByName looks up a descriptor; unknown names fail with
	// types.ErrStrategyNotFound.
	ByName(name string) (*model.StrategyDescriptor, error)
}
