package store

import (
	"context"
)

// Topic represents a user-defined subject of interest with a semantic vector.
type Topic struct {
	ID        int32
	UID       string
	UserID    int32
	Name      string
	Vector    []float32
	Active    bool
	CreatedTs int64
	UpdatedTs int64
}

// FindTopic is the find condition for topics.
type FindTopic struct {
	ID     *int32
	UserID *int32
	Name   *string
	Active *bool
}

// ListTopics lists topics matching the find condition, including their vectors.
func (s *Store) ListTopics(ctx context.Context, find *FindTopic) ([]*Topic, error) {
	return s.driver.ListTopics(ctx, find)
}

// GetTopic gets a single topic by ID. Returns nil if not found.
func (s *Store) GetTopic(ctx context.Context, id int32) (*Topic, error) {
	list, err := s.driver.ListTopics(ctx, &FindTopic{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
