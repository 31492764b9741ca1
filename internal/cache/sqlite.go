package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite implements Cache on a local modernc.org/sqlite database. This
// is the default backend: a single file that survives process restarts.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the cache database at the given path and
// configures WAL mode for concurrent reader/writer access.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	s := &SQLite{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "cache: migrate")
}

func (s *SQLite) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var payload string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM enrichment_cache WHERE key = ?`, key,
	).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: get")
	}

	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		// A corrupt payload is indistinguishable from a miss for callers.
		return nil, false, eris.Wrap(err, "cache: unmarshal entry")
	}
	entry.Key = key
	entry.CreatedAt = createdAt
	return &entry, true, nil
}

func (s *SQLite) Put(ctx context.Context, key string, entry *Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "cache: marshal entry")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_cache (key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`,
		key, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "cache: put")
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var oldest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM enrichment_cache`,
	).Scan(&st.Entries, &oldest)
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: stats")
	}
	if oldest.Valid {
		st.Oldest = oldest.Time
	}
	return st, nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM enrichment_cache`)
	return eris.Wrap(err, "cache: clear")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
