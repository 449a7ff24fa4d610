package dispatcher_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/strategos/pkg/domain/model"
	"github.com/secmon-lab/strategos/pkg/domain/types"
	"github.com/secmon-lab/strategos/pkg/repository/memory"
	"github.com/secmon-lab/strategos/pkg/service/dispatcher"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"An answer."}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) History() (*gollem.History, error) { return nil, nil }

func (s *mockLLMSession) AppendHistory(*gollem.History) error { return nil }

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func testStrategy() *model.StrategyDescriptor {
	return &model.StrategyDescriptor{
		Name:             "quick",
		Profile:          types.ProfileFast,
		ContentTypes:     []types.ContentType{types.ContentTypeTechnical},
		ComplexityLevels: []types.Complexity{types.ComplexityMedium},
		EstimatedLatency: 800,
		Cost:             0.1,
	}
}

func testProfile() *model.ContentProfile {
	return &model.ContentProfile{
		Type:       types.ContentTypeTechnical,
		Complexity: types.ComplexityMedium,
		Confidence: 0.8,
	}
}

func queryRecords(t *testing.T, store *memory.Store) []*model.PerformanceRecord {
	t.Helper()
	entries, err := store.Query(context.Background(), &model.MemoryQuery{
		Type: types.EntryPerformanceRecord,
	})
	gt.NoError(t, err).Required()

	records := make([]*model.PerformanceRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := e.PerformanceRecord()
		gt.NoError(t, err).Required()
		records = append(records, rec)
	}
	return records
}

func TestDispatcher_Execute(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	client := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{Texts: []string{
						"The config lives in /etc/app.\nSource: deployment guide section 2",
					}}, nil
				},
			}, nil
		},
	}
	d := dispatcher.New(client, store)

	predicted := model.PredictedPerformance{LatencyMS: 800, Accuracy: 0.7}
	result, err := d.Execute(ctx, testStrategy(), "some document", "where is the config?",
		testProfile(), model.DefaultDeviceConstraints(), predicted)
	gt.NoError(t, err).Required()

	gt.String(t, result.Answer).Contains("/etc/app")
	gt.Value(t, result.Strategy).Equal("quick")
	gt.Array(t, result.Sources).Length(1)
	gt.Value(t, result.Sources[0]).Equal("deployment guide section 2")
	gt.Number(t, result.Confidence).Greater(0.0)

	records := queryRecords(t, store)
	gt.Array(t, records).Length(1).Required()
	gt.Value(t, records[0].Strategy).Equal("quick")
	gt.Number(t, records[0].Metrics.PredictedLatencyMS).Equal(800)
	gt.Number(t, records[0].Metrics.ActualAccuracy).Greater(0.0)
}

func TestDispatcher_FailureStillRecordsOutcome(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	client := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return nil, errors.New("model overloaded")
				},
			}, nil
		},
	}
	d := dispatcher.New(client, store)

	_, err := d.Execute(ctx, testStrategy(), "doc", "question?",
		testProfile(), model.DefaultDeviceConstraints(), model.PredictedPerformance{})
	gt.Error(t, err).Is(types.ErrExecution)

	records := queryRecords(t, store)
	gt.Array(t, records).Length(1).Required()
	gt.Number(t, records[0].Metrics.ActualAccuracy).Equal(0.0)
}

func TestDispatcher_EmptyResponseIsFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	client := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					return &gollem.Response{}, nil
				},
			}, nil
		},
	}
	d := dispatcher.New(client, store)

	_, err := d.Execute(ctx, testStrategy(), "doc", "question?",
		testProfile(), model.DefaultDeviceConstraints(), model.PredictedPerformance{})
	gt.Error(t, err).Is(types.ErrExecution)
}

func TestDispatcher_PromptKeepsRuneBoundaries(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var prompt string
	client := &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					gt.Array(t, input).Length(1).Required()
					prompt = string(input[0].(gollem.Text))
					return &gollem.Response{Texts: []string{"An answer."}}, nil
				},
			}, nil
		},
	}
	d := dispatcher.New(client, store)

	// 3000 bytes of 3-byte runes: the fast-tier excerpt cut lands mid-rune
	content := strings.Repeat("日", 1000)
	_, err := d.Execute(ctx, testStrategy(), content, "question?",
		testProfile(), model.DefaultDeviceConstraints(), model.PredictedPerformance{})
	gt.NoError(t, err).Required()

	gt.Bool(t, utf8.ValidString(prompt)).True()
	gt.String(t, prompt).Contains("日")
}

func TestDispatcher_NoClientConfigured(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := dispatcher.New(nil, store, dispatcher.WithTimeout(time.Second))

	_, err := d.Execute(ctx, testStrategy(), "doc", "question?",
		testProfile(), model.DefaultDeviceConstraints(), model.PredictedPerformance{})
	gt.Error(t, err).Is(types.ErrExecution)
}
