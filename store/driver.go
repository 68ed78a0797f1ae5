package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Topic model related methods.
	ListTopics(ctx context.Context, find *FindTopic) ([]*Topic, error)

	// Event model related methods.
	CreateEvent(ctx context.Context, create *CreateEvent) (*Event, error)
	ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error)
	UpdateEventVector(ctx context.Context, update *UpdateEventVector) error

	// Article model related methods.
	ListArticles(ctx context.Context, find *FindArticle) ([]*Article, error)
	UpdateArticleProcessing(ctx context.Context, update *UpdateArticleProcessing) error

	// Association model related methods.
	UpsertArticleTopic(ctx context.Context, upsert *ArticleTopic) error
	UpsertArticleEvent(ctx context.Context, upsert *ArticleEvent) error
	ListArticleTopics(ctx context.Context, find *FindArticleTopic) ([]*ArticleTopic, error)
	ListArticleEvents(ctx context.Context, find *FindArticleEvent) ([]*ArticleEvent, error)

	// Setting model related methods.
	UpsertSetting(ctx context.Context, upsert *Setting) (*Setting, error)
	ListSettings(ctx context.Context, find *FindSetting) ([]*Setting, error)
}
