package store

import (
	"context"

	"github.com/pkg/errors"
)

// Event represents an event cluster: a group of articles describing the same
// real-world happening within a topic.
type Event struct {
	ID                  int32
	UID                 string
	UserID              int32
	TopicID             int32
	Title               string
	Description         string
	DetailedDescription string
	// Vector is optional. Events created via the reasoning path may not have
	// one until the next embedding pass fills it in.
	Vector    []float32
	CreatedTs int64
	UpdatedTs int64
}

// CreateEvent is the create request for an event cluster.
type CreateEvent struct {
	UserID              int32
	TopicID             int32
	Title               string
	Description         string
	DetailedDescription string
	Vector              []float32
}

// FindEvent is the find condition for events.
type FindEvent struct {
	ID      *int32
	UserID  *int32
	TopicID *int32
}

// UpdateEventVector sets the vector of an existing event.
type UpdateEventVector struct {
	ID     int32
	Vector []float32
}

// CreateEvent creates a new event cluster.
func (s *Store) CreateEvent(ctx context.Context, create *CreateEvent) (*Event, error) {
	if create.Title == "" {
		return nil, errors.New("event title cannot be empty")
	}
	return s.driver.CreateEvent(ctx, create)
}

// ListEvents lists event clusters matching the find condition.
func (s *Store) ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error) {
	return s.driver.ListEvents(ctx, find)
}

// UpdateEventVector updates the vector of an event cluster.
func (s *Store) UpdateEventVector(ctx context.Context, update *UpdateEventVector) error {
	if len(update.Vector) == 0 {
		return errors.New("event vector cannot be empty")
	}
	return s.driver.UpdateEventVector(ctx, update)
}
