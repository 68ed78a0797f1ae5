package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/newstide/internal/profile"
	"github.com/hrygo/newstide/store"
)

// SQLite is supported on a best-effort basis for development and testing.
// Vectors are stored as JSON text and similarity is computed in the
// application layer; there is no pgvector equivalent here.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a SQLite database at the DSN from the profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL journal mode prevents most locking issues; busy_timeout covers the
	// rest. Each pragma must be prefixed with `_pragma=` for modernc.org/sqlite.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// Single connection is optimal for SQLite with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

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
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type='table' AND name='topic')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// Migrate applies the schema. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS topic (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			vector TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (user_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS event (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			topic_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			detailed_description TEXT NOT NULL DEFAULT '',
			vector TEXT,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS article (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			summary TEXT,
			title_vector TEXT,
			summary_vector TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			embedding_model TEXT,
			summary_model TEXT,
			error_message TEXT,
			created_ts BIGINT NOT NULL,
			processed_ts BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS article_topic (
			article_id INTEGER NOT NULL,
			topic_id INTEGER NOT NULL,
			relevance_score REAL NOT NULL,
			created_ts BIGINT NOT NULL,
			PRIMARY KEY (article_id, topic_id)
		)`,
		`CREATE TABLE IF NOT EXISTS article_event (
			article_id INTEGER NOT NULL,
			event_id INTEGER NOT NULL,
			relevance_score REAL NOT NULL,
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
			return errors.Wrap(err, "failed to execute migration statement")
		}
	}
	return nil
}

// vectorToJSON encodes a vector as JSON text, mapping empty to NULL.
func vectorToJSON(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode vector")
	}
	return string(data), nil
}

// vectorFromJSON decodes a JSON-encoded vector column.
func vectorFromJSON(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, errors.Wrap(err, "failed to decode vector")
	}
	return v, nil
}
