package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the cache uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Postgres implements Cache on a shared PostgreSQL database, for teams
// that want normalization results shared across operators and hosts.
type Postgres struct {
	pool Pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// NewPostgres connects a pooled Postgres cache backend and runs the
// migration.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse postgres config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "cache: create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: ping postgres")
	}
	p := &Postgres{pool: pool}
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: migrate postgres")
	}
	return p, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var payload []byte
	var createdAt time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT payload, created_at FROM enrichment_cache WHERE key = $1`, key,
	).Scan(&payload, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: get")
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, false, eris.Wrap(err, "cache: unmarshal entry")
	}
	entry.Key = key
	entry.CreatedAt = createdAt
	return &entry, true, nil
}

func (p *Postgres) Put(ctx context.Context, key string, entry *Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "cache: marshal entry")
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO enrichment_cache (key, payload, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload`,
		key, payload, time.Now().UTC(),
	)
	return eris.Wrap(err, "cache: put")
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var oldest *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM enrichment_cache`,
	).Scan(&st.Entries, &oldest)
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: stats")
	}
	if oldest != nil {
		st.Oldest = *oldest
	}
	return st, nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM enrichment_cache`)
	return eris.Wrap(err, "cache: clear")
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
