package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

// ListArticles lists articles. Pending articles are returned oldest first so
// ingestion order is preserved; other listings are newest first.
func (d *DB) ListArticles(ctx context.Context, find *store.FindArticle) ([]*store.Article, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	order := "ORDER BY created_ts DESC, id DESC"
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*find.Status))
		if *find.Status == store.ArticleStatusPending {
			order = "ORDER BY created_ts ASC, id ASC"
		}
	}

	query := `
		SELECT id, uid, title, content, summary, title_vector, summary_vector, status, error_message, created_ts, processed_ts
		FROM article
		WHERE ` + strings.Join(where, " AND ") + `
		` + order
	if find.Limit > 0 {
		args = append(args, find.Limit)
		query += " LIMIT " + placeholder(len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list articles")
	}
	defer rows.Close()

	list := []*store.Article{}
	for rows.Next() {
		var article store.Article
		var summary, errorMessage sql.NullString
		var titleVector, summaryVector sql.Null[pgvector.Vector]
		var processedTs sql.NullInt64
		var status string
		err := rows.Scan(
			&article.ID,
			&article.UID,
			&article.Title,
			&article.Content,
			&summary,
			&titleVector,
			&summaryVector,
			&status,
			&errorMessage,
			&article.CreatedTs,
			&processedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan article")
		}
		article.Status = store.ArticleStatus(status)
		if summary.Valid {
			article.Summary = &summary.String
		}
		if errorMessage.Valid {
			article.ErrorMessage = &errorMessage.String
		}
		if titleVector.Valid {
			article.TitleVector = titleVector.V.Slice()
		}
		if summaryVector.Valid {
			article.SummaryVector = summaryVector.V.Slice()
		}
		if processedTs.Valid {
			article.ProcessedTs = &processedTs.Int64
		}
		list = append(list, &article)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate articles")
	}

	return list, nil
}

// UpdateArticleProcessing persists processing results. Nil fields keep their
// current value.
func (d *DB) UpdateArticleProcessing(ctx context.Context, update *store.UpdateArticleProcessing) error {
	set, args := []string{}, []any{}

	if len(update.TitleVector) > 0 {
		set, args = append(set, "title_vector = "+placeholder(len(args)+1)), append(args, pgvector.NewVector(update.TitleVector))
	}
	if update.Summary != nil {
		set, args = append(set, "summary = "+placeholder(len(args)+1)), append(args, *update.Summary)
	}
	if len(update.SummaryVector) > 0 {
		set, args = append(set, "summary_vector = "+placeholder(len(args)+1)), append(args, pgvector.NewVector(update.SummaryVector))
	}
	if update.EmbeddingModel != nil {
		set, args = append(set, "embedding_model = "+placeholder(len(args)+1)), append(args, *update.EmbeddingModel)
	}
	if update.SummaryModel != nil {
		set, args = append(set, "summary_model = "+placeholder(len(args)+1)), append(args, *update.SummaryModel)
	}
	if update.ErrorMessage != nil {
		set, args = append(set, "error_message = "+placeholder(len(args)+1)), append(args, *update.ErrorMessage)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*update.Status))
	}
	if update.ProcessedTs != nil {
		set, args = append(set, "processed_ts = "+placeholder(len(args)+1)), append(args, *update.ProcessedTs)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, update.ID)
	stmt := `UPDATE article SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update article processing")
	}
	return nil
}
