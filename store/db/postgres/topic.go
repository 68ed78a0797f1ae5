package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

// ListTopics lists topics, including their vectors.
func (d *DB) ListTopics(ctx context.Context, find *store.FindTopic) ([]*store.Topic, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.Name != nil {
		where, args = append(where, "name = "+placeholder(len(args)+1)), append(args, *find.Name)
	}
	if find.Active != nil {
		where, args = append(where, "active = "+placeholder(len(args)+1)), append(args, *find.Active)
	}

	query := `
		SELECT id, uid, user_id, name, vector, active, created_ts, updated_ts
		FROM topic
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list topics")
	}
	defer rows.Close()

	list := []*store.Topic{}
	for rows.Next() {
		var topic store.Topic
		var vector sql.Null[pgvector.Vector]
		err := rows.Scan(
			&topic.ID,
			&topic.UID,
			&topic.UserID,
			&topic.Name,
			&vector,
			&topic.Active,
			&topic.CreatedTs,
			&topic.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan topic")
		}
		if vector.Valid {
			topic.Vector = vector.V.Slice()
		}
		list = append(list, &topic)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate topics")
	}

	return list, nil
}
