// Package server exposes the internal HTTP API: health, metrics, and the
// topic backfill trigger.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/newstide/internal/profile"
	"github.com/hrygo/newstide/internal/version"
	"github.com/hrygo/newstide/process"
	"github.com/hrygo/newstide/store"
)

// maxTrackedJobs bounds the status registry. Once full, the oldest job is
// dropped and its status is no longer queryable.
const maxTrackedJobs = 64

// Server is the internal API server. It is not exposed publicly; the main
// application backend calls it on topic creation.
type Server struct {
	e        *echo.Echo
	profile  *profile.Profile
	store    *store.Store
	backfill *process.BackfillRunner

	mu       sync.Mutex
	jobs     map[string]*process.BackfillJob
	jobOrder []string
}

// NewServer creates the internal API server.
func NewServer(profile *profile.Profile, storeInstance *store.Store, backfill *process.BackfillRunner) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		e:        e,
		profile:  profile,
		store:    storeInstance,
		backfill: backfill,
		jobs:     map[string]*process.BackfillJob{},
	}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	internal := e.Group("/api/internal")
	internal.POST("/topics/process", s.processTopic)
	internal.GET("/backfill/:id", s.backfillStatus)
	internal.GET("/articles/:id", s.articleStatus)

	return s
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":     "ok",
		"version":    s.profile.Version,
		"commit":     version.GitCommit,
		"build_time": version.BuildTime,
	})
}

type processTopicRequest struct {
	TopicID int32 `json:"topic_id"`
}

type processTopicResponse struct {
	JobID   string `json:"job_id"`
	TopicID int32  `json:"topic_id"`
	Status  string `json:"status"`
}

// processTopic queues a backfill for a newly created topic.
func (s *Server) processTopic(c echo.Context) error {
	var req processTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request").SetInternal(err)
	}
	if req.TopicID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "topic_id is required")
	}

	job, err := s.backfill.Enqueue(req.TopicID)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "backfill queue is full").SetInternal(err)
	}

	s.registerJob(job)

	return c.JSON(http.StatusAccepted, processTopicResponse{
		JobID:   job.ID,
		TopicID: job.TopicID,
		Status:  string(job.Status()),
	})
}

// registerJob records a job for status lookups, evicting the oldest entry
// once the registry is full so a long-lived daemon does not accumulate
// finished jobs without bound.
func (s *Server) registerJob(job *process.BackfillJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job
	s.jobOrder = append(s.jobOrder, job.ID)
	for len(s.jobOrder) > maxTrackedJobs {
		delete(s.jobs, s.jobOrder[0])
		s.jobOrder = s.jobOrder[1:]
	}
}

type backfillStatusResponse struct {
	JobID   string                `json:"job_id"`
	TopicID int32                 `json:"topic_id"`
	Status  string                `json:"status"`
	Stats   process.BackfillStats `json:"stats"`
	Error   string                `json:"error,omitempty"`
}

// backfillStatus reports the observable state of a queued or finished job.
func (s *Server) backfillStatus(c echo.Context) error {
	s.mu.Lock()
	job, ok := s.jobs[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}

	resp := backfillStatusResponse{
		JobID:   job.ID,
		TopicID: job.TopicID,
		Status:  string(job.Status()),
		Stats:   job.Stats(),
	}
	if err := job.Err(); err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

type articleStatusResponse struct {
	ID               int32  `json:"id"`
	Status           string `json:"status"`
	HasTitleVector   bool   `json:"has_title_vector"`
	HasSummaryVector bool   `json:"has_summary_vector"`
	HasSummary       bool   `json:"has_summary"`
	ProcessedTs      int64  `json:"processed_ts,omitempty"`
}

// articleStatus reports how far the pipeline got with one article, for
// debugging stuck or failed items.
func (s *Server) articleStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid article id")
	}

	article, err := s.store.GetArticle(c.Request().Context(), int32(id))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load article").SetInternal(err)
	}
	if article == nil {
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	}

	resp := articleStatusResponse{
		ID:               article.ID,
		Status:           string(article.Status),
		HasTitleVector:   len(article.TitleVector) > 0,
		HasSummaryVector: len(article.SummaryVector) > 0,
		HasSummary:       article.Summary != nil && *article.Summary != "",
	}
	if article.ProcessedTs != nil {
		resp.ProcessedTs = *article.ProcessedTs
	}
	return c.JSON(http.StatusOK, resp)
}
