package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func stage(t *testing.T, st *Store, rows [][2]float64) {
	t.Helper()
	ctx := context.Background()
	batch, err := st.Begin(ctx)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, batch.Add(ctx, int64(r[0]), r[1]))
	}
	assert.Equal(t, len(rows), batch.Len())
	require.NoError(t, batch.Commit())
}

func TestHourlyMeansOrdersByHour(t *testing.T) {
	st := openTestStore(t, MemoryPath)
	stage(t, st, [][2]float64{
		{14031502, 1},
		{14031500, 0},
		{14031501, 1},
		{14031500, 1},
	})

	buckets, err := st.HourlyMeans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Bucket{
		{Hour: 14031500, Click: 0.5, Count: 2},
		{Hour: 14031501, Click: 1, Count: 1},
		{Hour: 14031502, Click: 1, Count: 1},
	}, buckets)

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestHourlyMeansEmpty(t *testing.T) {
	st := openTestStore(t, filepath.Join(t.TempDir(), "staging.db"))
	buckets, err := st.HourlyMeans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestRollbackDiscardsBatch(t *testing.T) {
	st := openTestStore(t, MemoryPath)
	ctx := context.Background()
	batch, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.Add(ctx, 14031500, 1))
	require.NoError(t, batch.Rollback())

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHourlyMeansOverflowIsNotFinite(t *testing.T) {
	st := openTestStore(t, MemoryPath)
	stage(t, st, [][2]float64{
		{14031500, math.MaxFloat64},
		{14031500, math.MaxFloat64},
	})

	buckets, err := st.HourlyMeans(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(2), buckets[0].Count)
	c := buckets[0].Click
	assert.True(t, math.IsNaN(c) || math.IsInf(c, 0), "expected non-finite mean, got %v", c)
}
