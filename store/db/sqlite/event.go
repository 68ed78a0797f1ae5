package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

func (d *DB) CreateEvent(ctx context.Context, create *store.CreateEvent) (*store.Event, error) {
	now := time.Now().Unix()
	event := &store.Event{
		UID:                 shortuuid.New(),
		UserID:              create.UserID,
		TopicID:             create.TopicID,
		Title:               create.Title,
		Description:         create.Description,
		DetailedDescription: create.DetailedDescription,
		Vector:              create.Vector,
		CreatedTs:           now,
		UpdatedTs:           now,
	}

	vector, err := vectorToJSON(event.Vector)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO event (uid, user_id, topic_id, title, description, detailed_description, vector, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err = d.db.QueryRowContext(ctx, stmt,
		event.UID,
		event.UserID,
		event.TopicID,
		event.Title,
		event.Description,
		event.DetailedDescription,
		vector,
		event.CreatedTs,
		event.UpdatedTs,
	).Scan(&event.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	return event, nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.TopicID != nil {
		where, args = append(where, "topic_id = ?"), append(args, *find.TopicID)
	}

	query := `
		SELECT id, uid, user_id, topic_id, title, description, detailed_description, vector, created_ts, updated_ts
		FROM event
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	list := []*store.Event{}
	for rows.Next() {
		var event store.Event
		var vector sql.NullString
		err := rows.Scan(
			&event.ID,
			&event.UID,
			&event.UserID,
			&event.TopicID,
			&event.Title,
			&event.Description,
			&event.DetailedDescription,
			&vector,
			&event.CreatedTs,
			&event.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		if event.Vector, err = vectorFromJSON(vector); err != nil {
			return nil, err
		}
		list = append(list, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate events")
	}

	return list, nil
}

func (d *DB) UpdateEventVector(ctx context.Context, update *store.UpdateEventVector) error {
	vector, err := vectorToJSON(update.Vector)
	if err != nil {
		return err
	}

	stmt := `UPDATE event SET vector = ?, updated_ts = ? WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, vector, time.Now().Unix(), update.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update event vector")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.Errorf("event not found: %d", update.ID)
	}
	return nil
}
