// Package cluster provides unit tests for the two-stage clustering decisions.
package cluster

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/newstide/ai/llm"
	"github.com/hrygo/newstide/store"
)

// fakeDriver is an in-memory store.Driver covering only what clustering uses.
type fakeDriver struct {
	events        []*store.Event
	createdEvents []*store.CreateEvent
	vectorUpdates []*store.UpdateEventVector
	nextEventID   int32
}

func (d *fakeDriver) GetDB() *sql.DB                         { return nil }
func (d *fakeDriver) Close() error                           { return nil }
func (d *fakeDriver) IsInitialized(context.Context) (bool, error) { return true, nil }
func (d *fakeDriver) Migrate(context.Context) error          { return nil }

func (d *fakeDriver) ListTopics(context.Context, *store.FindTopic) ([]*store.Topic, error) {
	return nil, nil
}

func (d *fakeDriver) CreateEvent(_ context.Context, create *store.CreateEvent) (*store.Event, error) {
	d.createdEvents = append(d.createdEvents, create)
	d.nextEventID++
	event := &store.Event{
		ID:                  d.nextEventID,
		UserID:              create.UserID,
		TopicID:             create.TopicID,
		Title:               create.Title,
		Description:         create.Description,
		DetailedDescription: create.DetailedDescription,
		Vector:              create.Vector,
	}
	d.events = append(d.events, event)
	return event, nil
}

func (d *fakeDriver) ListEvents(context.Context, *store.FindEvent) ([]*store.Event, error) {
	return d.events, nil
}

func (d *fakeDriver) UpdateEventVector(_ context.Context, update *store.UpdateEventVector) error {
	d.vectorUpdates = append(d.vectorUpdates, update)
	return nil
}

func (d *fakeDriver) ListArticles(context.Context, *store.FindArticle) ([]*store.Article, error) {
	return nil, nil
}
func (d *fakeDriver) UpdateArticleProcessing(context.Context, *store.UpdateArticleProcessing) error {
	return nil
}
func (d *fakeDriver) UpsertArticleTopic(context.Context, *store.ArticleTopic) error { return nil }
func (d *fakeDriver) UpsertArticleEvent(context.Context, *store.ArticleEvent) error { return nil }
func (d *fakeDriver) ListArticleTopics(context.Context, *store.FindArticleTopic) ([]*store.ArticleTopic, error) {
	return nil, nil
}
func (d *fakeDriver) ListArticleEvents(context.Context, *store.FindArticleEvent) ([]*store.ArticleEvent, error) {
	return nil, nil
}
func (d *fakeDriver) UpsertSetting(_ context.Context, upsert *store.Setting) (*store.Setting, error) {
	return upsert, nil
}
func (d *fakeDriver) ListSettings(context.Context, *store.FindSetting) ([]*store.Setting, error) {
	return nil, nil
}

// fakeLLM records completion calls and returns canned content.
type fakeLLM struct {
	content string
	err     error
	calls   int
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message, _ *llm.CompleteOptions) (string, *llm.CallStats, error) {
	f.calls++
	for _, m := range messages {
		f.prompts = append(f.prompts, m.Content)
	}
	if f.err != nil {
		return "", nil, f.err
	}
	return f.content, &llm.CallStats{}, nil
}

// fakeEmbedder returns a fixed vector.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(context.Background(), texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

func newTestService(driver *fakeDriver, mockLLM *fakeLLM, embedder *fakeEmbedder) *Service {
	s := store.New(driver, nil)
	if embedder == nil {
		return NewService(s, mockLLM, nil)
	}
	return NewService(s, mockLLM, embedder)
}

const testTemplate = "Topic: {topic_name}\nEvents:\n{existing_events}\nArticle: {article_title}\n{article_summary}"

func TestDetectOrCreate_DirectMatchSkipsLLM(t *testing.T) {
	driver := &fakeDriver{
		events: []*store.Event{
			{ID: 7, Title: "existing", Vector: []float32{1, 0, 0}},
		},
		nextEventID: 7,
	}
	mockLLM := &fakeLLM{}
	svc := newTestService(driver, mockLLM, nil)

	result, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:         1,
		TopicID:        2,
		TopicName:      "ai",
		ArticleTitle:   "article",
		TitleVector:    []float32{1, 0, 0},
		Threshold:      0.7,
		PromptTemplate: testTemplate,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeAssigned, result.Outcome)
	assert.Equal(t, int32(7), result.Event.ID)
	assert.InDelta(t, 1.0, result.Relevance, 1e-6)
	assert.Zero(t, mockLLM.calls, "numeric match must not consult the LLM")
	assert.Empty(t, driver.createdEvents)
}

func TestDetectOrCreate_ReasoningCreatesEvent(t *testing.T) {
	driver := &fakeDriver{}
	mockLLM := &fakeLLM{
		content: `{"title":"Market crash","description":"Stocks fell sharply","event_description":"Global markets dropped after rate decision"}`,
	}
	svc := newTestService(driver, mockLLM, nil)

	result, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:         1,
		TopicID:        2,
		TopicName:      "finance",
		ArticleTitle:   "Stocks tumble",
		ArticleSummary: "Markets fell",
		TitleVector:    []float32{0, 1, 0},
		Threshold:      0.7,
		PromptTemplate: testTemplate,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Equal(t, 1.0, result.Relevance)
	assert.Equal(t, 1, mockLLM.calls)

	require.Len(t, driver.createdEvents, 1)
	created := driver.createdEvents[0]
	assert.Equal(t, "Market crash", created.Title)
	assert.Equal(t, "Stocks fell sharply", created.Description)
	assert.Equal(t, "Global markets dropped after rate decision", created.DetailedDescription)
}

func TestDetectOrCreate_BelowThresholdFallsThroughToLLM(t *testing.T) {
	driver := &fakeDriver{
		events: []*store.Event{
			{ID: 1, Title: "unrelated", Vector: []float32{0, 1, 0}},
		},
		nextEventID: 1,
	}
	mockLLM := &fakeLLM{
		content: `{"title":"New event","description":"d","event_description":"dd"}`,
	}
	svc := newTestService(driver, mockLLM, nil)

	result, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:         1,
		TopicID:        2,
		TitleVector:    []float32{1, 0, 0},
		Threshold:      0.7,
		PromptTemplate: testTemplate,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Equal(t, 1, mockLLM.calls)
	require.NotEmpty(t, mockLLM.prompts)
	assert.Contains(t, mockLLM.prompts[0], "Event ID 1: unrelated")
}

func TestDetectOrCreate_NoVectorsSkipsNumericStage(t *testing.T) {
	driver := &fakeDriver{
		events: []*store.Event{
			{ID: 3, Title: "existing", Vector: []float32{1, 0, 0}},
		},
		nextEventID: 3,
	}
	mockLLM := &fakeLLM{
		content: `{"title":"New event","description":"d","event_description":"dd"}`,
	}
	svc := newTestService(driver, mockLLM, nil)

	// Article without any vectors still reaches the reasoning stage.
	result, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:         1,
		TopicID:        2,
		ArticleTitle:   "article",
		Threshold:      0.7,
		PromptTemplate: testTemplate,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Equal(t, 1, mockLLM.calls)
}

func TestDetectOrCreate_PromptMissing(t *testing.T) {
	svc := newTestService(&fakeDriver{}, &fakeLLM{}, nil)

	_, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:      1,
		TopicID:     2,
		TitleVector: []float32{1, 0, 0},
		Threshold:   0.7,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPromptMissing)
}

func TestDetectOrCreate_MalformedResponse(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "the article describes a new event"},
		{"missing title", `{"description":"d","event_description":"dd"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			driver := &fakeDriver{}
			svc := newTestService(driver, &fakeLLM{content: tc.content}, nil)

			_, err := svc.DetectOrCreate(context.Background(), &Request{
				UserID:         1,
				TopicID:        2,
				TitleVector:    []float32{1, 0, 0},
				Threshold:      0.7,
				PromptTemplate: testTemplate,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.Empty(t, driver.createdEvents)
		})
	}
}

func TestDetectOrCreate_LLMErrorPropagates(t *testing.T) {
	svc := newTestService(&fakeDriver{}, &fakeLLM{err: errors.New("provider unavailable")}, nil)

	_, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:         1,
		TopicID:        2,
		TitleVector:    []float32{1, 0, 0},
		Threshold:      0.7,
		PromptTemplate: testTemplate,
	})
	assert.Error(t, err)
}

func TestDetectOrCreate_NewEventVectorBackfill(t *testing.T) {
	driver := &fakeDriver{}
	mockLLM := &fakeLLM{
		content: `{"title":"New event","description":"d","event_description":"dd"}`,
	}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	svc := newTestService(driver, mockLLM, embedder)

	result, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:         1,
		TopicID:        2,
		TitleVector:    []float32{1, 0, 0},
		Threshold:      0.7,
		PromptTemplate: testTemplate,
	})
	require.NoError(t, err)
	require.Len(t, driver.vectorUpdates, 1)
	assert.Equal(t, result.Event.ID, driver.vectorUpdates[0].ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, result.Event.Vector)
}

func TestDetectOrCreate_VectorBackfillIsBestEffort(t *testing.T) {
	driver := &fakeDriver{}
	mockLLM := &fakeLLM{
		content: `{"title":"New event","description":"d","event_description":"dd"}`,
	}
	embedder := &fakeEmbedder{err: errors.New("embedding unavailable")}
	svc := newTestService(driver, mockLLM, embedder)

	result, err := svc.DetectOrCreate(context.Background(), &Request{
		UserID:         1,
		TopicID:        2,
		TitleVector:    []float32{1, 0, 0},
		Threshold:      0.7,
		PromptTemplate: testTemplate,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Empty(t, driver.vectorUpdates)
	assert.Empty(t, result.Event.Vector)
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Hello {name}, topic {topic_name} {unknown}", map[string]string{
		"name":       "world",
		"topic_name": "ai",
	})
	assert.Equal(t, "Hello world, topic ai {unknown}", out)
}

func TestFormatEventsContext_Empty(t *testing.T) {
	assert.Equal(t, "No existing event clusters for this topic.", formatEventsContext(nil))
}

func TestFormatEventsContext_WithDescriptions(t *testing.T) {
	out := formatEventsContext([]*store.Event{
		{ID: 1, Title: "first", Description: "about first"},
		{ID: 2, Title: "second"},
	})
	assert.Equal(t, "Event ID 1: first\n  Description: about first\nEvent ID 2: second", out)
}
