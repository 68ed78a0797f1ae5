// Package server provides tests for the internal API handlers.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/newstide/internal/profile"
	"github.com/hrygo/newstide/process"
	"github.com/hrygo/newstide/store"
)

// stubDriver serves the article lookup endpoint without a database.
type stubDriver struct {
	articles []*store.Article
}

func (d *stubDriver) GetDB() *sql.DB                              { return nil }
func (d *stubDriver) Close() error                                { return nil }
func (d *stubDriver) IsInitialized(context.Context) (bool, error) { return true, nil }
func (d *stubDriver) Migrate(context.Context) error               { return nil }

func (d *stubDriver) ListTopics(context.Context, *store.FindTopic) ([]*store.Topic, error) {
	return nil, nil
}

func (d *stubDriver) CreateEvent(context.Context, *store.CreateEvent) (*store.Event, error) {
	return nil, nil
}

func (d *stubDriver) ListEvents(context.Context, *store.FindEvent) ([]*store.Event, error) {
	return nil, nil
}

func (d *stubDriver) UpdateEventVector(context.Context, *store.UpdateEventVector) error {
	return nil
}

func (d *stubDriver) ListArticles(_ context.Context, find *store.FindArticle) ([]*store.Article, error) {
	var list []*store.Article
	for _, a := range d.articles {
		if find.ID != nil && a.ID != *find.ID {
			continue
		}
		list = append(list, a)
	}
	return list, nil
}

func (d *stubDriver) UpdateArticleProcessing(context.Context, *store.UpdateArticleProcessing) error {
	return nil
}

func (d *stubDriver) UpsertArticleTopic(context.Context, *store.ArticleTopic) error { return nil }
func (d *stubDriver) UpsertArticleEvent(context.Context, *store.ArticleEvent) error { return nil }

func (d *stubDriver) ListArticleTopics(context.Context, *store.FindArticleTopic) ([]*store.ArticleTopic, error) {
	return nil, nil
}

func (d *stubDriver) ListArticleEvents(context.Context, *store.FindArticleEvent) ([]*store.ArticleEvent, error) {
	return nil, nil
}

func (d *stubDriver) UpsertSetting(_ context.Context, upsert *store.Setting) (*store.Setting, error) {
	return upsert, nil
}

func (d *stubDriver) ListSettings(context.Context, *store.FindSetting) ([]*store.Setting, error) {
	return nil, nil
}

func newTestServer() *Server {
	return newTestServerWithDriver(&stubDriver{})
}

func newTestServerWithDriver(driver *stubDriver) *Server {
	p := &profile.Profile{Version: "0.1.0", Addr: "127.0.0.1", Port: 8081}
	storeInstance := store.New(driver, p)
	// No worker is started: jobs stay queued, which is all the handler
	// tests need.
	runner := process.NewBackfillRunner(process.NewProcessor(p, storeInstance, nil, nil))
	return NewServer(p, storeInstance, runner)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"0.1.0"`)
	assert.Contains(t, rec.Body.String(), `"commit"`)
	assert.Contains(t, rec.Body.String(), `"build_time"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProcessTopic_QueuesJob(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/internal/topics/process",
		strings.NewReader(`{"topic_id": 42}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"topic_id":42`)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)
	assert.Len(t, s.jobs, 1)
}

func TestProcessTopic_MissingTopicID(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/internal/topics/process",
		strings.NewReader(`{}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackfillStatus_NotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/internal/backfill/unknown", nil)
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackfillStatus_QueuedJob(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/internal/topics/process",
		strings.NewReader(`{"topic_id": 7}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var jobID string
	for id := range s.jobs {
		jobID = id
	}
	require.NotEmpty(t, jobID)

	statusReq := httptest.NewRequest(http.MethodGet, "/api/internal/backfill/"+jobID, nil)
	statusRec := httptest.NewRecorder()
	s.e.ServeHTTP(statusRec, statusReq)

	assert.Equal(t, http.StatusOK, statusRec.Code)
	assert.Contains(t, statusRec.Body.String(), `"status":"queued"`)
}

func TestArticleStatus(t *testing.T) {
	summary := "a summary"
	processedTs := int64(1700000000)
	driver := &stubDriver{articles: []*store.Article{{
		ID:          11,
		Title:       "article",
		Summary:     &summary,
		TitleVector: []float32{1, 0},
		Status:      store.ArticleStatusProcessed,
		ProcessedTs: &processedTs,
	}}}
	s := newTestServerWithDriver(driver)

	req := httptest.NewRequest(http.MethodGet, "/api/internal/articles/11", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PROCESSED"`)
	assert.Contains(t, rec.Body.String(), `"has_title_vector":true`)
	assert.Contains(t, rec.Body.String(), `"has_summary_vector":false`)
	assert.Contains(t, rec.Body.String(), `"has_summary":true`)
	assert.Contains(t, rec.Body.String(), `"processed_ts":1700000000`)
}

func TestArticleStatus_NotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/internal/articles/999", nil)
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArticleStatus_InvalidID(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/internal/articles/not-a-number", nil)
	rec := httptest.NewRecorder()

	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterJob_EvictsOldest(t *testing.T) {
	s := newTestServer()

	for i := 0; i < maxTrackedJobs+1; i++ {
		s.registerJob(&process.BackfillJob{
			ID:      fmt.Sprintf("job-%d", i),
			TopicID: int32(i),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.jobs, maxTrackedJobs)
	assert.NotContains(t, s.jobs, "job-0")
	assert.Contains(t, s.jobs, fmt.Sprintf("job-%d", maxTrackedJobs))
}

const (
	echoContentType = "Content-Type"
	echoJSON        = "application/json"
)
