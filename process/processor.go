// Package process orchestrates the article processing pipeline: embedding
// generation, topic matching against a cycle snapshot, event clustering, and
// the retroactive backfill path for newly created topics.
package process

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/newstide/ai/embedding"
	"github.com/hrygo/newstide/ai/llm"
	"github.com/hrygo/newstide/cluster"
	"github.com/hrygo/newstide/internal/profile"
	"github.com/hrygo/newstide/similarity"
	"github.com/hrygo/newstide/store"
)

// Articles shorter than this are not worth summarizing.
const minContentForSummary = 100

// interArticleInterval is a courtesy rate limit towards the embedding and
// LLM providers.
const interArticleInterval = 500 * time.Millisecond

// Processor runs the periodic processing loop. Articles within a cycle are
// handled sequentially; the topic snapshot and thresholds are fixed for the
// whole cycle.
type Processor struct {
	profile  *profile.Profile
	store    *store.Store
	llm      llm.Service
	embedder embedding.Service
	cluster  *cluster.Service
	snapshot *SnapshotHolder
	limiter  *rate.Limiter
}

// cycleState is the per-cycle context shared by all articles of one cycle.
type cycleState struct {
	settings *Settings
	snapshot *Snapshot

	// clusteringEnabled drops to false when the cluster detection prompt
	// turns out to be missing. Topic associations continue; only event
	// formation is deferred to a later cycle.
	clusteringEnabled bool
}

// NewProcessor creates the processing loop.
func NewProcessor(profile *profile.Profile, s *store.Store, llmService llm.Service, embedder embedding.Service) *Processor {
	return &Processor{
		profile:  profile,
		store:    s,
		llm:      llmService,
		embedder: embedder,
		cluster:  cluster.NewService(s, llmService, embedder),
		snapshot: NewSnapshotHolder(s),
		limiter:  rate.NewLimiter(rate.Every(interArticleInterval), 1),
	}
}

// Snapshot exposes the holder, mainly for the internal API and tests.
func (p *Processor) Snapshot() *SnapshotHolder {
	return p.snapshot
}

// Run executes processing cycles until the context is canceled. Shutdown is
// graceful: the in-flight article finishes, then the loop stops.
func (p *Processor) Run(ctx context.Context) {
	interval := time.Duration(p.profile.CycleInterval) * time.Second
	slog.Info("processor started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("processor stopped")
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle executes a single processing cycle: reload settings, refresh the
// topic snapshot, then process every pending article.
func (p *Processor) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		metricCycleDuration.Observe(time.Since(start).Seconds())
	}()

	settings := loadSettings(ctx, p.store)

	snapshot, err := p.snapshot.Refresh(ctx)
	if err != nil {
		slog.Error("cannot start cycle without a topic snapshot", slog.String("error", err.Error()))
		return
	}

	articles, err := p.store.ListPendingArticles(ctx, 0)
	if err != nil {
		slog.Error("failed to list pending articles", slog.String("error", err.Error()))
		return
	}
	if len(articles) == 0 {
		slog.Debug("no articles need processing")
		return
	}
	slog.Info("starting processing cycle",
		slog.Int("pending", len(articles)),
		slog.Int64("snapshot_version", snapshot.Version))

	state := &cycleState{
		settings:          settings,
		snapshot:          snapshot,
		clusteringEnabled: true,
	}

	succeeded, failed := 0, 0
	for _, article := range articles {
		if ctx.Err() != nil {
			slog.Info("processor stopped during cycle")
			break
		}
		if err := p.limiter.Wait(ctx); err != nil {
			break
		}

		if err := p.processArticle(ctx, article, state); err != nil {
			slog.Error("failed to process article",
				slog.Int("article", int(article.ID)),
				slog.String("error", err.Error()))
			failed++
			metricArticlesProcessed.WithLabelValues("failed").Inc()
			continue
		}
		succeeded++
		metricArticlesProcessed.WithLabelValues("processed").Inc()
	}

	slog.Info("processing cycle completed",
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))
}

// processArticle takes one article through embedding, summary creation, topic
// matching, and clustering. A transient failure of one component degrades the
// article rather than failing it, as long as at least one usable output
// remains.
func (p *Processor) processArticle(ctx context.Context, article *store.Article, state *cycleState) error {
	slog.Info("processing article",
		slog.Int("article", int(article.ID)),
		slog.String("title", truncateForLog(article.Title)))

	update := &store.UpdateArticleProcessing{ID: article.ID}

	titleVector := article.TitleVector
	if len(titleVector) == 0 && strings.TrimSpace(article.Title) != "" {
		vector, err := p.embedder.Embed(ctx, article.Title)
		if err != nil {
			slog.Warn("failed to embed article title",
				slog.Int("article", int(article.ID)),
				slog.String("error", err.Error()))
		} else {
			titleVector = vector
			update.TitleVector = vector
			update.EmbeddingModel = &p.profile.EmbeddingModel
		}
	}

	summary := ""
	if article.Summary != nil {
		summary = *article.Summary
	}
	if summary == "" {
		summary = p.createSummary(ctx, article, state.settings)
		if summary != "" {
			update.Summary = &summary
			update.SummaryModel = &p.profile.LLMModel
		}
	}

	summaryVector := article.SummaryVector
	if len(summaryVector) == 0 && summary != "" {
		vector, err := p.embedder.Embed(ctx, summary)
		if err != nil {
			slog.Warn("failed to embed article summary",
				slog.Int("article", int(article.ID)),
				slog.String("error", err.Error()))
		} else {
			summaryVector = vector
			update.SummaryVector = vector
			update.EmbeddingModel = &p.profile.EmbeddingModel
		}
	}

	// Every component failing means there is nothing to match with.
	if len(titleVector) == 0 && summary == "" && len(summaryVector) == 0 {
		message := "failed to generate title embedding, summary, and summary embedding"
		status := store.ArticleStatusFailed
		if err := p.store.UpdateArticleProcessing(ctx, &store.UpdateArticleProcessing{
			ID:           article.ID,
			ErrorMessage: &message,
			Status:       &status,
		}); err != nil {
			return errors.Wrap(err, "failed to record article failure")
		}
		return errors.New(message)
	}

	status := store.ArticleStatusProcessed
	processedTs := time.Now().Unix()
	update.Status = &status
	update.ProcessedTs = &processedTs
	if err := p.store.UpdateArticleProcessing(ctx, update); err != nil {
		return errors.Wrap(err, "failed to persist article processing results")
	}

	if len(titleVector) == 0 && len(summaryVector) == 0 {
		slog.Info("no embeddings available, skipping topic matching",
			slog.Int("article", int(article.ID)))
		return nil
	}

	matches, err := similarity.FindSimilarTopics(titleVector, summaryVector, state.snapshot.Topics, state.settings.SimilarityThreshold)
	if err != nil {
		return errors.Wrap(err, "failed to match topics")
	}
	if len(matches) == 0 {
		slog.Info("no similar topics above threshold",
			slog.Int("article", int(article.ID)),
			slog.Float64("threshold", state.settings.SimilarityThreshold))
		return nil
	}
	slog.Info("found similar topics",
		slog.Int("article", int(article.ID)),
		slog.Int("count", len(matches)))

	for _, match := range matches {
		if err := p.store.UpsertArticleTopic(ctx, &store.ArticleTopic{
			ArticleID:      article.ID,
			TopicID:        match.Topic.ID,
			RelevanceScore: match.Score,
		}); err != nil {
			slog.Error("failed to create article-topic association",
				slog.Int("article", int(article.ID)),
				slog.Int("topic", int(match.Topic.ID)),
				slog.String("error", err.Error()))
			continue
		}
		metricTopicMatches.Inc()
	}

	// Clustering needs a summary for the reasoning stage.
	if summary == "" {
		return nil
	}
	for _, match := range matches {
		p.clusterArticleTopic(ctx, article, match, summary, titleVector, summaryVector, state)
	}

	return nil
}

// clusterArticleTopic runs the clustering decision for one matched topic.
// Failures are isolated: one topic failing never blocks the others, and a
// missing prompt disables clustering for the remainder of the cycle only.
func (p *Processor) clusterArticleTopic(ctx context.Context, article *store.Article, match *similarity.TopicMatch, summary string, titleVector, summaryVector []float32, state *cycleState) {
	if !state.clusteringEnabled {
		return
	}

	result, err := p.cluster.DetectOrCreate(ctx, &cluster.Request{
		UserID:         match.Topic.UserID,
		TopicID:        match.Topic.ID,
		TopicName:      match.Topic.Name,
		ArticleTitle:   article.Title,
		ArticleSummary: summary,
		TitleVector:    titleVector,
		SummaryVector:  summaryVector,
		Threshold:      state.settings.ClusterThreshold,
		PromptTemplate: state.settings.ClusterPrompt,
	})
	if err != nil {
		if errors.Is(err, cluster.ErrPromptMissing) {
			slog.Error("cluster detection prompt not configured, clustering disabled for this cycle")
			state.clusteringEnabled = false
			return
		}
		slog.Warn("clustering failed for topic",
			slog.Int("article", int(article.ID)),
			slog.Int("topic", int(match.Topic.ID)),
			slog.String("error", err.Error()))
		metricClusterOutcomes.WithLabelValues("failed").Inc()
		return
	}

	if err := p.store.UpsertArticleEvent(ctx, &store.ArticleEvent{
		ArticleID:      article.ID,
		EventID:        result.Event.ID,
		RelevanceScore: result.Relevance,
	}); err != nil {
		slog.Error("failed to create article-event association",
			slog.Int("article", int(article.ID)),
			slog.Int("event", int(result.Event.ID)),
			slog.String("error", err.Error()))
		return
	}
	metricClusterOutcomes.WithLabelValues(string(result.Outcome)).Inc()

	slog.Info("clustered article into event",
		slog.Int("article", int(article.ID)),
		slog.Int("event", int(result.Event.ID)),
		slog.String("outcome", string(result.Outcome)),
		slog.Float64("relevance", result.Relevance))
}

// createSummary generates an article summary through the configured prompt.
// Missing template or short content skips summarization; provider failures
// are soft and leave the summary for a later cycle.
func (p *Processor) createSummary(ctx context.Context, article *store.Article, settings *Settings) string {
	if settings.SummaryPrompt == "" {
		return ""
	}
	if len(article.Content) < minContentForSummary {
		return ""
	}

	prompt := renderPrompt(settings.SummaryPrompt, map[string]string{
		"title":   article.Title,
		"content": article.Content,
	})
	content, _, err := p.llm.Complete(ctx, []llm.Message{llm.UserMessage(prompt)}, nil)
	if err != nil {
		slog.Warn("failed to create article summary",
			slog.Int("article", int(article.ID)),
			slog.String("error", err.Error()))
		return ""
	}

	summary := strings.TrimSpace(content)
	if summary != "" {
		slog.Info("created article summary",
			slog.Int("article", int(article.ID)),
			slog.Int("length", len(summary)))
	}
	return summary
}

// renderPrompt substitutes {name} placeholders in a template.
func renderPrompt(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func truncateForLog(s string) string {
	runes := []rune(s)
	if len(runes) <= 50 {
		return s
	}
	return string(runes[:50]) + "..."
}
