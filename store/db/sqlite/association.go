package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

func (d *DB) UpsertArticleTopic(ctx context.Context, upsert *store.ArticleTopic) error {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}
	stmt := `
		INSERT INTO article_topic (article_id, topic_id, relevance_score, created_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (article_id, topic_id) DO NOTHING
	`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ArticleID, upsert.TopicID, upsert.RelevanceScore, upsert.CreatedTs); err != nil {
		return errors.Wrap(err, "failed to upsert article topic")
	}
	return nil
}

func (d *DB) UpsertArticleEvent(ctx context.Context, upsert *store.ArticleEvent) error {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}
	stmt := `
		INSERT INTO article_event (article_id, event_id, relevance_score, created_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (article_id, event_id) DO NOTHING
	`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.ArticleID, upsert.EventID, upsert.RelevanceScore, upsert.CreatedTs); err != nil {
		return errors.Wrap(err, "failed to upsert article event")
	}
	return nil
}

func (d *DB) ListArticleTopics(ctx context.Context, find *store.FindArticleTopic) ([]*store.ArticleTopic, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ArticleID != nil {
		where, args = append(where, "article_id = ?"), append(args, *find.ArticleID)
	}
	if find.TopicID != nil {
		where, args = append(where, "topic_id = ?"), append(args, *find.TopicID)
	}

	query := `
		SELECT article_id, topic_id, relevance_score, created_ts
		FROM article_topic
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY relevance_score DESC, article_id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list article topics")
	}
	defer rows.Close()

	list := []*store.ArticleTopic{}
	for rows.Next() {
		var articleTopic store.ArticleTopic
		if err := rows.Scan(&articleTopic.ArticleID, &articleTopic.TopicID, &articleTopic.RelevanceScore, &articleTopic.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan article topic")
		}
		list = append(list, &articleTopic)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate article topics")
	}

	return list, nil
}

func (d *DB) ListArticleEvents(ctx context.Context, find *store.FindArticleEvent) ([]*store.ArticleEvent, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ArticleID != nil {
		where, args = append(where, "article_id = ?"), append(args, *find.ArticleID)
	}
	if find.EventID != nil {
		where, args = append(where, "event_id = ?"), append(args, *find.EventID)
	}

	query := `
		SELECT article_id, event_id, relevance_score, created_ts
		FROM article_event
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY relevance_score DESC, article_id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list article events")
	}
	defer rows.Close()

	list := []*store.ArticleEvent{}
	for rows.Next() {
		var articleEvent store.ArticleEvent
		if err := rows.Scan(&articleEvent.ArticleID, &articleEvent.EventID, &articleEvent.RelevanceScore, &articleEvent.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan article event")
		}
		list = append(list, &articleEvent)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate article events")
	}

	return list, nil
}
