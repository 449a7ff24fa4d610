package usecase

import (
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/service/analyzer"
	"github.com/secmon-lab/strategos/pkg/service/dispatcher"
	"github.com/secmon-lab/strategos/pkg/service/selector"
)

// UseCases wires the three agents and the coordinator into the operations
// exposed to the HTTP controller and CLI
type UseCases struct {
	analyzer    *analyzer.Analyzer
	selector    *selector.Selector
	dispatcher  *dispatcher.Dispatcher
	catalog     interfaces.StrategyCatalog
	store       interfaces.MemoryStore
	Coordinator *Coordinator
}

// Option configures UseCases
type Option func(*UseCases)

// WithCoordinator overrides the default coordinator
func WithCoordinator(c *Coordinator) Option {
	return func(uc *UseCases) {
		uc.Coordinator = c
	}
}

// New creates the use case layer
func New(az *analyzer.Analyzer, sel *selector.Selector, disp *dispatcher.Dispatcher, cat interfaces.StrategyCatalog, store interfaces.MemoryStore, opts ...Option) *UseCases {
	uc := &UseCases{
		analyzer:   az,
		selector:   sel,
		dispatcher: disp,
		catalog:    cat,
		store:      store,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.Coordinator == nil {
		uc.Coordinator = NewCoordinator(store)
	}

	return uc
}
