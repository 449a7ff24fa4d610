package catalog

import (
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
)

// DefaultStrategies is the built-in strategy set used when no catalog file
// is configured. Three performance tiers with a device-optimized subset.
func DefaultStrategies() []model.StrategyDescriptor {
	return []model.StrategyDescriptor{
		{
			Name:             "direct-answer",
			Profile:          types.ProfileFast,
			ContentTypes:     []types.ContentType{types.ContentTypeConversational, types.ContentTypeArticle},
			ComplexityLevels: []types.Complexity{types.ComplexitySimple, types.ComplexityMedium},
			DeviceOptimized:  true,
			EstimatedLatency: 800,
			Cost:             0.1,
			Description:      "Single LLM call answering directly from the question and a short excerpt",
		},
		{
			Name:             "focused-retrieval",
			Profile:          types.ProfileFast,
			ContentTypes:     []types.ContentType{types.ContentTypeArticle, types.ContentTypeTechnical, types.ContentTypeConversational},
			ComplexityLevels: []types.Complexity{types.ComplexitySimple, types.ComplexityMedium},
			DeviceOptimized:  true,
			EstimatedLatency: 1400,
			Cost:             0.2,
			Description:      "Retrieves the most relevant passage before a single answering call",
		},
		{
			Name:             "react-retrieval",
			Profile:          types.ProfileBalanced,
			ContentTypes:     []types.ContentType{types.ContentTypeMixed},
			ComplexityLevels: []types.Complexity{types.ComplexitySimple, types.ComplexityMedium, types.ComplexityComplex},
			DeviceOptimized:  false,
			EstimatedLatency: 2800,
			Cost:             0.45,
			Description:      "Iterative reason-then-retrieve loop, good general default",
		},
		{
			Name:             "structured-extraction",
			Profile:          types.ProfileBalanced,
			ContentTypes:     []types.ContentType{types.ContentTypeStructuredData, types.ContentTypeTechnical},
			ComplexityLevels: []types.Complexity{types.ComplexityMedium, types.ComplexityComplex},
			DeviceOptimized:  false,
			EstimatedLatency: 3200,
			Cost:             0.5,
			Description:      "Extracts tables and fields first, then answers over the extraction",
		},
		{
			Name:             "deep-research",
			Profile:          types.ProfileComprehensive,
			ContentTypes:     []types.ContentType{types.ContentTypeMixed},
			ComplexityLevels: []types.Complexity{types.ComplexityMedium, types.ComplexityComplex},
			DeviceOptimized:  false,
			EstimatedLatency: 6500,
			Cost:             0.9,
			Description:      "Multi-pass planning, retrieval, and synthesis with source citations",
		},
	}
}
