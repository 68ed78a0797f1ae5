// Package store provides tests for the domain layer validation on top of
// the database drivers.
package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDriver captures calls so validation can be asserted without a
// database.
type recordingDriver struct {
	settings map[string]string

	createdEvents []*CreateEvent
	articleTopics []*ArticleTopic
	articleEvents []*ArticleEvent
	vectorUpdates []*UpdateEventVector
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{settings: map[string]string{}}
}

func (d *recordingDriver) GetDB() *sql.DB                              { return nil }
func (d *recordingDriver) Close() error                                { return nil }
func (d *recordingDriver) IsInitialized(context.Context) (bool, error) { return true, nil }
func (d *recordingDriver) Migrate(context.Context) error               { return nil }

func (d *recordingDriver) ListTopics(context.Context, *FindTopic) ([]*Topic, error) {
	return nil, nil
}

func (d *recordingDriver) CreateEvent(_ context.Context, create *CreateEvent) (*Event, error) {
	d.createdEvents = append(d.createdEvents, create)
	return &Event{ID: int32(len(d.createdEvents)), Title: create.Title}, nil
}

func (d *recordingDriver) ListEvents(context.Context, *FindEvent) ([]*Event, error) {
	return nil, nil
}

func (d *recordingDriver) UpdateEventVector(_ context.Context, update *UpdateEventVector) error {
	d.vectorUpdates = append(d.vectorUpdates, update)
	return nil
}

func (d *recordingDriver) ListArticles(context.Context, *FindArticle) ([]*Article, error) {
	return nil, nil
}

func (d *recordingDriver) UpdateArticleProcessing(context.Context, *UpdateArticleProcessing) error {
	return nil
}

func (d *recordingDriver) UpsertArticleTopic(_ context.Context, upsert *ArticleTopic) error {
	d.articleTopics = append(d.articleTopics, upsert)
	return nil
}

func (d *recordingDriver) UpsertArticleEvent(_ context.Context, upsert *ArticleEvent) error {
	d.articleEvents = append(d.articleEvents, upsert)
	return nil
}

func (d *recordingDriver) ListArticleTopics(context.Context, *FindArticleTopic) ([]*ArticleTopic, error) {
	return nil, nil
}

func (d *recordingDriver) ListArticleEvents(context.Context, *FindArticleEvent) ([]*ArticleEvent, error) {
	return nil, nil
}

func (d *recordingDriver) UpsertSetting(_ context.Context, upsert *Setting) (*Setting, error) {
	d.settings[upsert.Name] = upsert.Value
	return upsert, nil
}

func (d *recordingDriver) ListSettings(_ context.Context, find *FindSetting) ([]*Setting, error) {
	list := []*Setting{}
	for name, value := range d.settings {
		if find.Name != nil && name != *find.Name {
			continue
		}
		list = append(list, &Setting{Name: name, Value: value})
	}
	return list, nil
}

func TestGetDriver_ExposesInitializationCheck(t *testing.T) {
	driver := newRecordingDriver()
	s := New(driver, nil)

	initialized, err := s.GetDriver().IsInitialized(context.Background())
	require.NoError(t, err)
	assert.True(t, initialized)
}

func TestCreateEvent_RejectsEmptyTitle(t *testing.T) {
	driver := newRecordingDriver()
	s := New(driver, nil)

	_, err := s.CreateEvent(context.Background(), &CreateEvent{TopicID: 1})
	assert.Error(t, err)
	assert.Empty(t, driver.createdEvents)

	_, err = s.CreateEvent(context.Background(), &CreateEvent{TopicID: 1, Title: "valid"})
	require.NoError(t, err)
	assert.Len(t, driver.createdEvents, 1)
}

func TestUpdateEventVector_RejectsEmptyVector(t *testing.T) {
	driver := newRecordingDriver()
	s := New(driver, nil)

	err := s.UpdateEventVector(context.Background(), &UpdateEventVector{ID: 1})
	assert.Error(t, err)
	assert.Empty(t, driver.vectorUpdates)
}

func TestUpsertAssociations_ScoreRange(t *testing.T) {
	driver := newRecordingDriver()
	s := New(driver, nil)
	ctx := context.Background()

	assert.Error(t, s.UpsertArticleTopic(ctx, &ArticleTopic{ArticleID: 1, TopicID: 1, RelevanceScore: -0.1}))
	assert.Error(t, s.UpsertArticleTopic(ctx, &ArticleTopic{ArticleID: 1, TopicID: 1, RelevanceScore: 1.1}))
	assert.NoError(t, s.UpsertArticleTopic(ctx, &ArticleTopic{ArticleID: 1, TopicID: 1, RelevanceScore: 0.0}))
	assert.NoError(t, s.UpsertArticleTopic(ctx, &ArticleTopic{ArticleID: 1, TopicID: 2, RelevanceScore: 1.0}))

	assert.Error(t, s.UpsertArticleEvent(ctx, &ArticleEvent{ArticleID: 1, EventID: 1, RelevanceScore: 2.0}))
	assert.NoError(t, s.UpsertArticleEvent(ctx, &ArticleEvent{ArticleID: 1, EventID: 1, RelevanceScore: 0.75}))

	assert.Len(t, driver.articleTopics, 2)
	assert.Len(t, driver.articleEvents, 1)
}

func TestGetSettingValue_FallsBackToDefault(t *testing.T) {
	driver := newRecordingDriver()
	s := New(driver, nil)
	ctx := context.Background()

	assert.Equal(t, "0.3", s.GetSettingValue(ctx, SettingSimilarityThreshold, "0.3"))

	_, err := s.UpsertSetting(ctx, &Setting{Name: SettingSimilarityThreshold, Value: "0.5"})
	require.NoError(t, err)
	assert.Equal(t, "0.5", s.GetSettingValue(ctx, SettingSimilarityThreshold, "0.3"))
}

func TestArticle_HasVector(t *testing.T) {
	assert.False(t, (&Article{}).HasVector())
	assert.True(t, (&Article{TitleVector: []float32{1}}).HasVector())
	assert.True(t, (&Article{SummaryVector: []float32{1}}).HasVector())
}
