package catalog

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// Catalog is the process-wide registry of strategy descriptors.
// Populated once at startup and read-only afterwards.
type Catalog struct {
	strategies []model.StrategyDescriptor
	byName     map[string]*model.StrategyDescriptor
}

var _ interfaces.StrategyCatalog = &Catalog{}

// New builds a catalog from explicit descriptors. Duplicate names and
// invalid descriptors are rejected.
func New(descriptors []model.StrategyDescriptor) (*Catalog, error) {
	c := &Catalog{
		strategies: make([]model.StrategyDescriptor, 0, len(descriptors)),
		byName:     make(map[string]*model.StrategyDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid strategy descriptor")
		}
		if _, exists := c.byName[d.Name]; exists {
			return nil, goerr.New("duplicate strategy name", goerr.V("name", d.Name))
		}
		c.strategies = append(c.strategies, d)
		c.byName[d.Name] = &c.strategies[len(c.strategies)-1]
	}
	return c, nil
}

// NewDefault builds the catalog from the built-in strategy set
func NewDefault() *Catalog {
	c, err := New(DefaultStrategies())
	if err != nil {
		// Built-ins are validated by tests; a failure here is a programming error
		panic(err)
	}
	return c
}

// List returns all descriptors in registration order
func (c *Catalog) List() []model.StrategyDescriptor {
	out := make([]model.StrategyDescriptor, len(c.strategies))
	copy(out, c.strategies)
	return out
}

// ByProfile returns the descriptors of one performance tier
func (c *Catalog) ByProfile(profile types.PerformanceProfile) []model.StrategyDescriptor {
	var out []model.StrategyDescriptor
	for _, d := range c.strategies {
		if d.Profile == profile {
			out = append(out, d)
		}
	}
	return out
}

// ByName looks up a descriptor by its unique name
func (c *Catalog) ByName(name string) (*model.StrategyDescriptor, error) {
	d, ok := c.byName[name]
	if !ok {
		return nil, goerr.Wrap(types.ErrStrategyNotFound, "unknown strategy", goerr.V("name", name))
	}
	copied := *d
	return &copied, nil
}
