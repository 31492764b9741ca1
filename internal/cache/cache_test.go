package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promdata/mtr-cli/internal/model"
)

func testEntry(key string) *Entry {
	cat := &model.Category{Name: "PRESSURE_SENSOR", Unit: "штука", OKPD2Prefix: "26.51.52"}
	rec := model.NewEnrichedRecord(model.RawRecord{
		Values: map[string]string{model.ColOriginalName: "Датчик давления ДМ-02"},
	}, cat, 0.9)
	rec.SetField("type", model.FieldValue{Value: "избыточное давление", Confidence: 0.9})
	return &Entry{
		Key:    key,
		Record: rec,
		Classification: &model.ClassificationResult{
			Code: "26.51.52.130", Level: 4, Confidence: 0.9,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "k1", testEntry("k1")))
	got, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "26.51.52.130", got.Classification.Code)
	assert.Equal(t, "Датчик давления ДМ-02", got.Record.Raw.Description())
}

func TestMemoryIdempotentPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Put(ctx, "k1", testEntry("k1")))
	require.NoError(t, m.Put(ctx, "k1", testEntry("k1")))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("k%d", i%10)
				_ = m.Put(ctx, key, testEntry(key))
				entry, ok, err := m.Get(ctx, key)
				assert.NoError(t, err)
				if ok {
					// Last write wins, but entries are never torn.
					assert.Equal(t, "26.51.52.130", entry.Classification.Code)
				}
			}
		}(w)
	}
	wg.Wait()

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Entries)
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "k1", testEntry("k1")))
	require.NoError(t, m.Clear(ctx))

	_, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNopNeverHits(t *testing.T) {
	ctx := context.Background()
	n := Nop{}
	require.NoError(t, n.Put(ctx, "k1", testEntry("k1")))
	_, ok, err := n.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}
