package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

func (d *DB) ListTopics(ctx context.Context, find *store.FindTopic) ([]*store.Topic, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.Name != nil {
		where, args = append(where, "name = ?"), append(args, *find.Name)
	}
	if find.Active != nil {
		where, args = append(where, "active = ?"), append(args, boolToInt(*find.Active))
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
		var vector sql.NullString
		var active int
		err := rows.Scan(
			&topic.ID,
			&topic.UID,
			&topic.UserID,
			&topic.Name,
			&vector,
			&active,
			&topic.CreatedTs,
			&topic.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan topic")
		}
		topic.Active = active != 0
		if topic.Vector, err = vectorFromJSON(vector); err != nil {
			return nil, err
		}
		list = append(list, &topic)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate topics")
	}

	return list, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
