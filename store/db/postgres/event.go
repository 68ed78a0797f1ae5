package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/newstide/store"
)

// CreateEvent creates a new event cluster.
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

	stmt := `
		INSERT INTO event (uid, user_id, topic_id, title, description, detailed_description, vector, created_ts, updated_ts)
		VALUES (` + placeholders(9) + `)
		RETURNING id
	`
	err := d.db.QueryRowContext(ctx, stmt,
		event.UID,
		event.UserID,
		event.TopicID,
		event.Title,
		event.Description,
		event.DetailedDescription,
		nullableVector(event.Vector),
		event.CreatedTs,
		event.UpdatedTs,
	).Scan(&event.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	return event, nil
}

// ListEvents lists event clusters.
func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.TopicID != nil {
		where, args = append(where, "topic_id = "+placeholder(len(args)+1)), append(args, *find.TopicID)
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
		var vector sql.Null[pgvector.Vector]
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
		if vector.Valid {
			event.Vector = vector.V.Slice()
		}
		list = append(list, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate events")
	}

	return list, nil
}

// UpdateEventVector sets the vector of an existing event.
func (d *DB) UpdateEventVector(ctx context.Context, update *store.UpdateEventVector) error {
	stmt := `UPDATE event SET vector = $1, updated_ts = $2 WHERE id = $3`
	result, err := d.db.ExecContext(ctx, stmt,
		pgvector.NewVector(update.Vector),
		time.Now().Unix(),
		update.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update event vector")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return errors.Errorf("event not found: %d", update.ID)
	}
	return nil
}

// nullableVector converts a vector to a driver value, mapping empty to NULL.
func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
