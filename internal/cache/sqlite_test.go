package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	_, ok, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k1", testEntry("k1")))

	got, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k1", got.Key)
	assert.Equal(t, "26.51.52.130", got.Classification.Code)
	assert.Equal(t, "PRESSURE_SENSOR", got.Record.Category.Name)
}

func TestSQLitePutIsUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	require.NoError(t, s.Put(ctx, "k1", testEntry("k1")))

	updated := testEntry("k1")
	updated.Classification.Code = "26.51.52.110"
	require.NoError(t, s.Put(ctx, "k1", updated))

	got, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "26.51.52.110", got.Classification.Code)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k1", testEntry("k1")))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok, err := reopened.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteClearAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	require.NoError(t, s.Put(ctx, "k1", testEntry("k1")))
	require.NoError(t, s.Put(ctx, "k2", testEntry("k2")))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entries)
	assert.False(t, stats.Oldest.IsZero())

	require.NoError(t, s.Clear(ctx))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)
}
