package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/hrygo/newstide/internal/profile"
	"github.com/hrygo/newstide/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database using the DSN from the profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: pgDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = 'topic')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// Migrate applies the schema. Statements are idempotent so re-running on an
// initialized database is safe.
func (d *DB) Migrate(ctx context.Context) error {
	dim := d.profile.EmbeddingDimensions
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS topic (
			id SERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			vector vector(%d),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (user_id, name)
		)`, dim),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS event (
			id SERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			topic_id INTEGER NOT NULL REFERENCES topic(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			detailed_description TEXT NOT NULL DEFAULT '',
			vector vector(%d),
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`, dim),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS article (
			id SERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			summary TEXT,
			title_vector vector(%d),
			summary_vector vector(%d),
			status TEXT NOT NULL DEFAULT 'PENDING',
			embedding_model TEXT,
			summary_model TEXT,
			error_message TEXT,
			created_ts BIGINT NOT NULL,
			processed_ts BIGINT
		)`, dim, dim),
		`CREATE TABLE IF NOT EXISTS article_topic (
			article_id INTEGER NOT NULL REFERENCES article(id) ON DELETE CASCADE,
			topic_id INTEGER NOT NULL REFERENCES topic(id) ON DELETE CASCADE,
			relevance_score DOUBLE PRECISION NOT NULL,
			created_ts BIGINT NOT NULL,
			PRIMARY KEY (article_id, topic_id)
		)`,
		`CREATE TABLE IF NOT EXISTS article_event (
			article_id INTEGER NOT NULL REFERENCES article(id) ON DELETE CASCADE,
			event_id INTEGER NOT NULL REFERENCES event(id) ON DELETE CASCADE,
			relevance_score DOUBLE PRECISION NOT NULL,
			created_ts BIGINT NOT NULL,
			PRIMARY KEY (article_id, event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS system_setting (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_article_status ON article (status)`,
		`CREATE INDEX IF NOT EXISTS idx_event_user_topic ON event (user_id, topic_id)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute migration statement: %s", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

// placeholder returns the positional parameter for the given 1-based index.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns a comma-joined list of positional parameters $1..$n.
func placeholders(n int) string {
	list := make([]string, n)
	for i := 0; i < n; i++ {
		list[i] = placeholder(i + 1)
	}
	return strings.Join(list, ", ")
}
