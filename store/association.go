package store

import (
	"context"

	"github.com/pkg/errors"
)

// ArticleTopic links an article to a topic with a relevance score.
// The (article_id, topic_id) pair is unique; re-processing the same article
// must not duplicate it.
type ArticleTopic struct {
	ArticleID      int32
	TopicID        int32
	RelevanceScore float64
	CreatedTs      int64
}

// ArticleEvent links an article to an event cluster with a relevance score.
// The (article_id, event_id) pair is unique.
type ArticleEvent struct {
	ArticleID      int32
	EventID        int32
	RelevanceScore float64
	CreatedTs      int64
}

// FindArticleTopic is the find condition for article-topic associations.
type FindArticleTopic struct {
	ArticleID *int32
	TopicID   *int32
}

// FindArticleEvent is the find condition for article-event associations.
type FindArticleEvent struct {
	ArticleID *int32
	EventID   *int32
}

func validateScore(score float64) error {
	if score < 0.0 || score > 1.0 {
		return errors.Errorf("relevance score out of range [0,1]: %f", score)
	}
	return nil
}

// UpsertArticleTopic creates the article-topic association if it does not
// exist yet. Existing associations are left untouched.
func (s *Store) UpsertArticleTopic(ctx context.Context, upsert *ArticleTopic) error {
	if err := validateScore(upsert.RelevanceScore); err != nil {
		return err
	}
	return s.driver.UpsertArticleTopic(ctx, upsert)
}

// UpsertArticleEvent creates the article-event association if it does not
// exist yet. Existing associations are left untouched.
func (s *Store) UpsertArticleEvent(ctx context.Context, upsert *ArticleEvent) error {
	if err := validateScore(upsert.RelevanceScore); err != nil {
		return err
	}
	return s.driver.UpsertArticleEvent(ctx, upsert)
}

// ListArticleTopics lists article-topic associations.
func (s *Store) ListArticleTopics(ctx context.Context, find *FindArticleTopic) ([]*ArticleTopic, error) {
	return s.driver.ListArticleTopics(ctx, find)
}

// ListArticleEvents lists article-event associations.
func (s *Store) ListArticleEvents(ctx context.Context, find *FindArticleEvent) ([]*ArticleEvent, error) {
	return s.driver.ListArticleEvents(ctx, find)
}
