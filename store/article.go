package store

import (
	"context"
)

// ArticleStatus is the processing status of an article.
type ArticleStatus string

const (
	// ArticleStatusPending means the article has not been processed yet.
	ArticleStatusPending ArticleStatus = "PENDING"
	// ArticleStatusProcessed means embeddings and summary generation completed.
	ArticleStatusProcessed ArticleStatus = "PROCESSED"
	// ArticleStatusFailed means processing failed; eligible for retry.
	ArticleStatusFailed ArticleStatus = "FAILED"
)

// Article represents an ingested news article as seen by the processing core.
// At least one of TitleVector/SummaryVector must be present for the article to
// participate in topic matching.
type Article struct {
	ID            int32
	UID           string
	Title         string
	Content       string
	Summary       *string
	TitleVector   []float32
	SummaryVector []float32
	Status        ArticleStatus
	ErrorMessage  *string
	CreatedTs     int64
	ProcessedTs   *int64
}

// FindArticle is the find condition for articles.
type FindArticle struct {
	ID     *int32
	Status *ArticleStatus
	Limit  int
}

// UpdateArticleProcessing carries processing results back to the article row.
// Nil fields are left untouched.
type UpdateArticleProcessing struct {
	ID             int32
	TitleVector    []float32
	Summary        *string
	SummaryVector  []float32
	EmbeddingModel *string
	SummaryModel   *string
	ErrorMessage   *string
	Status         *ArticleStatus
	ProcessedTs    *int64
}

// HasVector reports whether the article carries at least one embedding.
func (a *Article) HasVector() bool {
	return len(a.TitleVector) > 0 || len(a.SummaryVector) > 0
}

// ListArticles lists articles matching the find condition.
func (s *Store) ListArticles(ctx context.Context, find *FindArticle) ([]*Article, error) {
	return s.driver.ListArticles(ctx, find)
}

// GetArticle gets a single article by ID. Returns nil if not found.
func (s *Store) GetArticle(ctx context.Context, id int32) (*Article, error) {
	list, err := s.driver.ListArticles(ctx, &FindArticle{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListPendingArticles lists articles waiting for processing, oldest first.
func (s *Store) ListPendingArticles(ctx context.Context, limit int) ([]*Article, error) {
	status := ArticleStatusPending
	return s.driver.ListArticles(ctx, &FindArticle{Status: &status, Limit: limit})
}

// ListProcessedArticles lists fully-processed articles, newest first, used by
// the backfill path.
func (s *Store) ListProcessedArticles(ctx context.Context, limit int) ([]*Article, error) {
	status := ArticleStatusProcessed
	return s.driver.ListArticles(ctx, &FindArticle{Status: &status, Limit: limit})
}

// UpdateArticleProcessing persists processing results for an article.
func (s *Store) UpdateArticleProcessing(ctx context.Context, update *UpdateArticleProcessing) error {
	return s.driver.UpdateArticleProcessing(ctx, update)
}
