package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

// UpsertArticleTopic creates the association if missing. ON CONFLICT DO
// NOTHING keeps re-processing idempotent: an existing pair is never rescored.
func (d *DB) UpsertArticleTopic(ctx context.Context, upsert *store.ArticleTopic) error {
	stmt := `
		INSERT INTO article_topic (article_id, topic_id, relevance_score, created_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (article_id, topic_id) DO NOTHING
	`
	_, err := d.db.ExecContext(ctx, stmt,
		upsert.ArticleID,
		upsert.TopicID,
		upsert.RelevanceScore,
		time.Now().Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert article-topic association")
	}
	return nil
}

// UpsertArticleEvent creates the association if missing.
func (d *DB) UpsertArticleEvent(ctx context.Context, upsert *store.ArticleEvent) error {
	stmt := `
		INSERT INTO article_event (article_id, event_id, relevance_score, created_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (article_id, event_id) DO NOTHING
	`
	_, err := d.db.ExecContext(ctx, stmt,
		upsert.ArticleID,
		upsert.EventID,
		upsert.RelevanceScore,
		time.Now().Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert article-event association")
	}
	return nil
}

// ListArticleTopics lists article-topic associations.
func (d *DB) ListArticleTopics(ctx context.Context, find *store.FindArticleTopic) ([]*store.ArticleTopic, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ArticleID != nil {
		where, args = append(where, "article_id = "+placeholder(len(args)+1)), append(args, *find.ArticleID)
	}
	if find.TopicID != nil {
		where, args = append(where, "topic_id = "+placeholder(len(args)+1)), append(args, *find.TopicID)
	}

	query := `
		SELECT article_id, topic_id, relevance_score, created_ts
		FROM article_topic
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY relevance_score DESC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list article-topic associations")
	}
	defer rows.Close()

	list := []*store.ArticleTopic{}
	for rows.Next() {
		var assoc store.ArticleTopic
		if err := rows.Scan(&assoc.ArticleID, &assoc.TopicID, &assoc.RelevanceScore, &assoc.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan article-topic association")
		}
		list = append(list, &assoc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate article-topic associations")
	}

	return list, nil
}

// ListArticleEvents lists article-event associations.
func (d *DB) ListArticleEvents(ctx context.Context, find *store.FindArticleEvent) ([]*store.ArticleEvent, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ArticleID != nil {
		where, args = append(where, "article_id = "+placeholder(len(args)+1)), append(args, *find.ArticleID)
	}
	if find.EventID != nil {
		where, args = append(where, "event_id = "+placeholder(len(args)+1)), append(args, *find.EventID)
	}

	query := `
		SELECT article_id, event_id, relevance_score, created_ts
		FROM article_event
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY relevance_score DESC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list article-event associations")
	}
	defer rows.Close()

	list := []*store.ArticleEvent{}
	for rows.Next() {
		var assoc store.ArticleEvent
		if err := rows.Scan(&assoc.ArticleID, &assoc.EventID, &assoc.RelevanceScore, &assoc.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan article-event association")
		}
		list = append(list, &assoc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate article-event associations")
	}

	return list, nil
}
