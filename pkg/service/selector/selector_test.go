package selector_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/strategos/pkg/domain/interfaces"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/repository/memory"
	"github.com/secmon-lab/strategos/pkg/service/catalog"
	"github.com/secmon-lab/strategos/pkg/service/selector"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]model.StrategyDescriptor{
		{
			Name:             "quick",
			Profile:          types.ProfileFast,
			ContentTypes:     []types.ContentType{types.ContentTypeTechnical, types.ContentTypeConversational},
			ComplexityLevels: []types.Complexity{types.ComplexitySimple, types.ComplexityMedium},
			DeviceOptimized:  true,
			EstimatedLatency: 800,
			Cost:             0.1,
		},
		{
			Name:             "thorough",
			Profile:          types.ProfileComprehensive,
			ContentTypes:     []types.ContentType{types.ContentTypeTechnical, types.ContentTypeArticle},
			ComplexityLevels: []types.Complexity{types.ComplexityMedium, types.ComplexityComplex},
			EstimatedLatency: 5000,
			Cost:             0.8,
		},
		{
			Name:             "general",
			Profile:          types.ProfileBalanced,
			ContentTypes:     []types.ContentType{types.ContentTypeMixed},
			ComplexityLevels: []types.Complexity{types.ComplexitySimple, types.ComplexityMedium, types.ComplexityComplex},
			EstimatedLatency: 2500,
			Cost:             0.4,
		},
	})
	gt.NoError(t, err).Required()
	return cat
}

func technicalProfile() *model.ContentProfile {
	return &model.ContentProfile{
		Type:       types.ContentTypeTechnical,
		Complexity: types.ComplexityMedium,
		Confidence: 0.8,
	}
}

func writeRecords(t *testing.T, store interfaces.MemoryStore, strategy string, n int, accuracy float64, latencyMS int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		rec := &model.PerformanceRecord{
			Strategy:    strategy,
			ContentType: types.ContentTypeTechnical,
			Complexity:  types.ComplexityMedium,
			DeviceType:  types.DeviceDesktop,
			Fingerprint: "h0-l0-t0",
			Metrics: model.PerformanceMetrics{
				ActualAccuracy:  accuracy,
				ActualLatencyMS: latencyMS,
			},
			Timestamp: time.Now().UTC(),
		}
		entry, err := model.NewPerformanceEntry(rec, time.Hour)
		gt.NoError(t, err).Required()
		gt.NoError(t, store.Put(ctx, entry)).Required()
	}
}

func TestSelector_EmptyCatalog(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.New(nil)
	gt.NoError(t, err).Required()

	sel := selector.New(cat, memory.New())
	_, err = sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.Error(t, err).Is(types.ErrNoStrategiesAvailable)
}

func TestSelector_Deterministic(t *testing.T) {
	ctx := context.Background()
	sel := selector.New(testCatalog(t), memory.New())

	first, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.NoError(t, err).Required()
	second, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.NoError(t, err).Required()

	gt.Value(t, second.Selected.Name).Equal(first.Selected.Name)
	gt.Number(t, second.Confidence).Equal(first.Confidence)
}

func TestSelector_NoExactMatchFallsBack(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.New([]model.StrategyDescriptor{
		{
			Name:             "articles-only",
			Profile:          types.ProfileBalanced,
			ContentTypes:     []types.ContentType{types.ContentTypeArticle},
			ComplexityLevels: []types.Complexity{types.ComplexitySimple},
			EstimatedLatency: 1000,
			Cost:             0.3,
		},
	})
	gt.NoError(t, err).Required()

	sel := selector.New(cat, memory.New())
	result, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.NoError(t, err).Required()

	gt.Value(t, result.Selected.Name).Equal("articles-only")
	gt.Array(t, result.Reasoning).Has("no exact match; using full catalog")
}

func TestSelector_ConstrainedDevicePrefersFast(t *testing.T) {
	ctx := context.Background()
	sel := selector.New(testCatalog(t), memory.New())

	device := &model.DeviceConstraints{
		Type:            types.DeviceMobile,
		ProcessingPower: types.PowerLow,
		MemoryMB:        1024,
		Connectivity:    types.ConnectivityCellular,
	}

	result, err := sel.Select(ctx, technicalProfile(), device, nil)
	gt.NoError(t, err).Required()
	gt.Value(t, result.Selected.Name).Equal("quick")
}

func TestSelector_HistoryOvercomesStaticFit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// the fast strategy is statically attractive but performs poorly;
	// the slow one has plenty of strong evidence
	writeRecords(t, store, "quick", 5, 0.4, 700)
	writeRecords(t, store, "thorough", 100, 0.9, 4800)

	sel := selector.New(testCatalog(t), store)
	result, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.NoError(t, err).Required()

	gt.Value(t, result.Selected.Name).Equal("thorough")
}

func TestSelector_NoHistoryPrefersStaticFit(t *testing.T) {
	ctx := context.Background()
	sel := selector.New(testCatalog(t), memory.New())

	result, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.NoError(t, err).Required()

	// without evidence the cheap fast candidate wins on static fit
	gt.Value(t, result.Selected.Name).Equal("quick")
	gt.Number(t, result.Confidence).GreaterOrEqual(0.1)
	gt.Number(t, result.Confidence).LessOrEqual(0.95)
}

func TestSelector_PreferenceNarrowsTier(t *testing.T) {
	ctx := context.Background()
	sel := selector.New(testCatalog(t), memory.New())

	result, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(),
		map[string]string{"profile": "comprehensive"})
	gt.NoError(t, err).Required()
	gt.Value(t, result.Selected.Name).Equal("thorough")
}

// failingStore returns a store error from every read
type failingStore struct {
	interfaces.MemoryStore
}

func (f *failingStore) Query(ctx context.Context, q *model.MemoryQuery) ([]*model.MemoryEntry, error) {
	return nil, goerr.Wrap(types.ErrStore, "backend down")
}

func (f *failingStore) Get(ctx context.Context, key string) (*model.MemoryEntry, error) {
	return nil, goerr.Wrap(types.ErrStore, "backend down")
}

func TestSelector_StoreFailureDegradesToStatic(t *testing.T) {
	ctx := context.Background()
	sel := selector.New(testCatalog(t), &failingStore{MemoryStore: memory.New()})

	result, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.NoError(t, err).Required()

	gt.Value(t, result.Selected.Name).Equal("quick")
	gt.Array(t, result.Reasoning).Has("memory store unavailable; static scoring only")
}

func TestSelector_AlternativesCapped(t *testing.T) {
	ctx := context.Background()

	descriptors := make([]model.StrategyDescriptor, 0, 6)
	for _, name := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		descriptors = append(descriptors, model.StrategyDescriptor{
			Name:             name,
			Profile:          types.ProfileBalanced,
			ContentTypes:     []types.ContentType{types.ContentTypeMixed},
			ComplexityLevels: []types.Complexity{types.ComplexityMedium},
			EstimatedLatency: 1000,
			Cost:             0.3,
		})
	}
	cat, err := catalog.New(descriptors)
	gt.NoError(t, err).Required()

	sel := selector.New(cat, memory.New())
	result, err := sel.Select(ctx, technicalProfile(), model.DefaultDeviceConstraints(), nil)
	gt.NoError(t, err).Required()
	gt.Array(t, result.Alternatives).Length(3)
}

func TestScoreHistory(t *testing.T) {
	now := time.Now()
	w := selector.DefaultWeights()

	t.Run("no records means zero weight", func(t *testing.T) {
		h := selector.ScoreHistory(nil, now, w)
		gt.Number(t, h.Weight).Equal(0.0)
		gt.Number(t, h.Count).Equal(0)
	})

	t.Run("more evidence raises weight", func(t *testing.T) {
		few := make([]*model.PerformanceRecord, 0, 2)
		many := make([]*model.PerformanceRecord, 0, 50)
		for i := 0; i < 50; i++ {
			rec := &model.PerformanceRecord{
				Strategy:  "s",
				Metrics:   model.PerformanceMetrics{ActualAccuracy: 0.8, ActualLatencyMS: 1000},
				Timestamp: now,
			}
			if i < 2 {
				few = append(few, rec)
			}
			many = append(many, rec)
		}

		hFew := selector.ScoreHistory(few, now, w)
		hMany := selector.ScoreHistory(many, now, w)
		gt.Number(t, hMany.Weight).Greater(hFew.Weight)
	})

	t.Run("stale records count less than fresh ones", func(t *testing.T) {
		fresh := []*model.PerformanceRecord{{
			Strategy:  "s",
			Metrics:   model.PerformanceMetrics{ActualAccuracy: 0.8},
			Timestamp: now,
		}}
		stale := []*model.PerformanceRecord{{
			Strategy:  "s",
			Metrics:   model.PerformanceMetrics{ActualAccuracy: 0.8},
			Timestamp: now.Add(-23 * time.Hour),
		}}

		hFresh := selector.ScoreHistory(fresh, now, w)
		hStale := selector.ScoreHistory(stale, now, w)
		gt.Number(t, hFresh.Weight).Greater(hStale.Weight)
	})
}
