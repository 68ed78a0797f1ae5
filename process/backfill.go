package process

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/newstide/cluster"
	"github.com/hrygo/newstide/similarity"
	"github.com/hrygo/newstide/store"
)

// JobStatus is the lifecycle state of a backfill job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// BackfillStats counts what a backfill job did.
type BackfillStats struct {
	ArticlesScanned     int `json:"articles_scanned"`
	AssociationsCreated int `json:"associations_created"`
	SummariesGenerated  int `json:"summaries_generated"`
	EventsLinked        int `json:"events_linked"`
	Errors              int `json:"errors"`
}

// BackfillJob is one queued topic backfill with observable status. Callers
// keep the handle returned by Enqueue and may poll or Wait on it.
type BackfillJob struct {
	ID        string
	TopicID   int32
	CreatedTs int64

	mu     sync.Mutex
	status JobStatus
	stats  BackfillStats
	err    error
	done   chan struct{}
}

func newBackfillJob(topicID int32) *BackfillJob {
	return &BackfillJob{
		ID:        shortuuid.New(),
		TopicID:   topicID,
		CreatedTs: time.Now().Unix(),
		status:    JobStatusQueued,
		done:      make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (j *BackfillJob) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Stats returns a copy of the current counters.
func (j *BackfillJob) Stats() BackfillStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// Err returns the terminal error of a failed job.
func (j *BackfillJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Wait blocks until the job reaches a terminal state or the context ends.
func (j *BackfillJob) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.done:
		return j.Err()
	}
}

func (j *BackfillJob) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobStatusRunning
}

func (j *BackfillJob) complete(stats BackfillStats) {
	j.mu.Lock()
	j.status = JobStatusCompleted
	j.stats = stats
	j.mu.Unlock()
	close(j.done)
	metricBackfillJobs.WithLabelValues("completed").Inc()
}

func (j *BackfillJob) fail(stats BackfillStats, err error) {
	j.mu.Lock()
	j.status = JobStatusFailed
	j.stats = stats
	j.err = err
	j.mu.Unlock()
	close(j.done)
	metricBackfillJobs.WithLabelValues("failed").Inc()
}

// BackfillRunner applies the live matching and clustering contract to
// already-processed articles when a topic is created. Jobs go through an
// explicit queue drained by a single worker, so backfills never race each
// other or flood the providers.
type BackfillRunner struct {
	processor *Processor
	queue     chan *BackfillJob
}

const backfillQueueCapacity = 16

// NewBackfillRunner creates a runner sharing the processor's collaborators.
// Reusing the processor guarantees the retroactive path behaves exactly like
// live ingestion.
func NewBackfillRunner(processor *Processor) *BackfillRunner {
	return &BackfillRunner{
		processor: processor,
		queue:     make(chan *BackfillJob, backfillQueueCapacity),
	}
}

// Enqueue queues a backfill for a newly created topic and returns the job
// handle. Fails when the queue is full rather than blocking the caller.
func (r *BackfillRunner) Enqueue(topicID int32) (*BackfillJob, error) {
	job := newBackfillJob(topicID)
	select {
	case r.queue <- job:
		slog.Info("backfill job queued",
			slog.String("job", job.ID),
			slog.Int("topic", int(topicID)))
		return job, nil
	default:
		return nil, errors.New("backfill queue is full")
	}
}

// Run drains the queue until the context is canceled.
func (r *BackfillRunner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.queue:
			r.runJob(ctx, job)
		}
	}
}

func (r *BackfillRunner) runJob(ctx context.Context, job *BackfillJob) {
	job.setRunning()
	slog.Info("backfill job started",
		slog.String("job", job.ID),
		slog.Int("topic", int(job.TopicID)))

	stats, err := r.backfillTopic(ctx, job.TopicID)
	if err != nil {
		slog.Error("backfill job failed",
			slog.String("job", job.ID),
			slog.String("error", err.Error()))
		job.fail(stats, err)
		return
	}

	slog.Info("backfill job completed",
		slog.String("job", job.ID),
		slog.Int("scanned", stats.ArticlesScanned),
		slog.Int("associations", stats.AssociationsCreated),
		slog.Int("summaries", stats.SummariesGenerated),
		slog.Int("events", stats.EventsLinked))
	job.complete(stats)
}

// backfillTopic scans a bounded batch of processed articles and applies the
// live contract against the single new topic.
func (r *BackfillRunner) backfillTopic(ctx context.Context, topicID int32) (BackfillStats, error) {
	p := r.processor
	stats := BackfillStats{}

	topic, err := p.store.GetTopic(ctx, topicID)
	if err != nil {
		return stats, errors.Wrap(err, "failed to load topic")
	}
	if topic == nil {
		return stats, errors.Errorf("topic not found: %d", topicID)
	}
	if len(topic.Vector) == 0 {
		return stats, errors.Errorf("topic %d has no vector", topicID)
	}

	settings := loadSettings(ctx, p.store)

	articles, err := p.store.ListProcessedArticles(ctx, p.profile.BackfillBatchSize)
	if err != nil {
		return stats, errors.Wrap(err, "failed to list processed articles")
	}
	if len(articles) == 0 {
		slog.Info("no processed articles to backfill")
		return stats, nil
	}

	clusteringEnabled := true
	for _, article := range articles {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		stats.ArticlesScanned++

		if err := r.backfillArticle(ctx, article, topic, settings, &stats, &clusteringEnabled); err != nil {
			slog.Error("error backfilling article",
				slog.Int("article", int(article.ID)),
				slog.String("error", err.Error()))
			stats.Errors++
		}
	}

	return stats, nil
}

func (r *BackfillRunner) backfillArticle(ctx context.Context, article *store.Article, topic *store.Topic, settings *Settings, stats *BackfillStats, clusteringEnabled *bool) error {
	p := r.processor

	// Reuse stored vectors; embed the title lazily when it was never done.
	titleVector := article.TitleVector
	if len(titleVector) == 0 && article.Title != "" {
		vector, err := p.embedder.Embed(ctx, article.Title)
		if err != nil {
			return errors.Wrap(err, "failed to embed article title")
		}
		titleVector = vector
		if err := p.store.UpdateArticleProcessing(ctx, &store.UpdateArticleProcessing{
			ID:             article.ID,
			TitleVector:    vector,
			EmbeddingModel: &p.profile.EmbeddingModel,
		}); err != nil {
			return errors.Wrap(err, "failed to persist backfilled title vector")
		}
	}
	summaryVector := article.SummaryVector

	if len(titleVector) == 0 && len(summaryVector) == 0 {
		return nil
	}

	matches, err := similarity.FindSimilarTopics(titleVector, summaryVector, []*store.Topic{topic}, settings.SimilarityThreshold)
	if err != nil {
		return errors.Wrap(err, "failed to score article against topic")
	}
	if len(matches) == 0 {
		return nil
	}
	match := matches[0]

	if err := p.store.UpsertArticleTopic(ctx, &store.ArticleTopic{
		ArticleID:      article.ID,
		TopicID:        topic.ID,
		RelevanceScore: match.Score,
	}); err != nil {
		return errors.Wrap(err, "failed to create article-topic association")
	}
	stats.AssociationsCreated++
	metricTopicMatches.Inc()

	// Backfill a missing summary so the article can participate in
	// clustering, exactly as a live article would.
	summary := ""
	if article.Summary != nil {
		summary = *article.Summary
	}
	if summary == "" {
		summary = p.createSummary(ctx, article, settings)
		if summary != "" {
			if err := p.store.UpdateArticleProcessing(ctx, &store.UpdateArticleProcessing{
				ID:           article.ID,
				Summary:      &summary,
				SummaryModel: &p.profile.LLMModel,
			}); err != nil {
				return errors.Wrap(err, "failed to persist backfilled summary")
			}
			stats.SummariesGenerated++
		}
	}
	if summary == "" || !*clusteringEnabled {
		return nil
	}

	result, err := p.cluster.DetectOrCreate(ctx, &cluster.Request{
		UserID:         topic.UserID,
		TopicID:        topic.ID,
		TopicName:      topic.Name,
		ArticleTitle:   article.Title,
		ArticleSummary: summary,
		TitleVector:    titleVector,
		SummaryVector:  summaryVector,
		Threshold:      settings.ClusterThreshold,
		PromptTemplate: settings.ClusterPrompt,
	})
	if err != nil {
		if errors.Is(err, cluster.ErrPromptMissing) {
			slog.Error("cluster detection prompt not configured, clustering disabled for this backfill")
			*clusteringEnabled = false
			return nil
		}
		metricClusterOutcomes.WithLabelValues("failed").Inc()
		return errors.Wrap(err, "clustering failed")
	}

	if err := p.store.UpsertArticleEvent(ctx, &store.ArticleEvent{
		ArticleID:      article.ID,
		EventID:        result.Event.ID,
		RelevanceScore: result.Relevance,
	}); err != nil {
		return errors.Wrap(err, "failed to create article-event association")
	}
	stats.EventsLinked++
	metricClusterOutcomes.WithLabelValues(string(result.Outcome)).Inc()

	return nil
}
