package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gnosis/core"
)

func TestMemory_RoundTrip(t *testing.T) {
	idx, err := NewMemory(3)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, KindSegment, 1, []float32{1, 0, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, KindSegment, 2, []float32{0, 1, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, KindSegment, 3, []float32{0.9, 0.1, 0}, nil))

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Upserting V then querying with V returns that id first at the maximum score.
	assert.Equal(t, core.ID(1), hits[0].Id)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, core.ID(3), hits[1].Id)
}

func TestMemory_DimensionMismatch(t *testing.T) {
	idx, err := NewMemory(3)
	require.NoError(t, err)
	ctx := context.Background()

	err = idx.Upsert(ctx, KindSegment, 1, []float32{1, 0}, nil)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = idx.Query(ctx, []float32{1, 0, 0, 0}, 1, nil)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestMemory_UpsertReplaces(t *testing.T) {
	idx, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, KindEntity, 1, []float32{1, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, KindEntity, 1, []float32{0, 1}, nil))

	hits, err := idx.Query(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].Id)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestMemory_Delete(t *testing.T) {
	idx, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, KindEntity, 1, []float32{1, 0}, nil))
	require.NoError(t, idx.Delete(ctx, KindEntity, 1))
	// Deleting again is a no-op.
	require.NoError(t, idx.Delete(ctx, KindEntity, 1))

	hits, err := idx.Query(ctx, []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemory_KindFilter(t *testing.T) {
	idx, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, KindSegment, 1, []float32{1, 0}, nil))
	require.NoError(t, idx.Upsert(ctx, KindEntity, 2, []float32{1, 0}, nil))

	hits, err := idx.Query(ctx, []float32{1, 0}, 10, &Filter{Kinds: []Kind{KindEntity}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, KindEntity, hits[0].Kind)
}

func TestMemory_MetadataFilter(t *testing.T) {
	idx, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, KindSegment, 1, []float32{1, 0}, map[string]string{"document": "42"}))
	require.NoError(t, idx.Upsert(ctx, KindSegment, 2, []float32{1, 0}, map[string]string{"document": "7"}))
	require.NoError(t, idx.Upsert(ctx, KindSegment, 3, []float32{1, 0}, nil))

	hits, err := idx.Query(ctx, []float32{1, 0}, 10, &Filter{Metadata: map[string]string{"document": "42"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.ID(1), hits[0].Id)
}

func TestMemory_TiesBreakById(t *testing.T) {
	idx, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	// Identical vectors: scores tie exactly.
	for _, id := range []core.ID{9, 3, 7, 1} {
		require.NoError(t, idx.Upsert(ctx, KindSegment, id, []float32{1, 0}, nil))
	}

	hits, err := idx.Query(ctx, []float32{1, 0}, 4, nil)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	ids := []core.ID{hits[0].Id, hits[1].Id, hits[2].Id, hits[3].Id}
	assert.Equal(t, []core.ID{1, 3, 7, 9}, ids)
}

func TestMemory_QueryLimitsToK(t *testing.T) {
	idx, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	for id := core.ID(1); id <= 10; id++ {
		require.NoError(t, idx.Upsert(ctx, KindSegment, id, []float32{1, 0}, nil))
	}

	hits, err := idx.Query(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = idx.Query(ctx, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemory_ConcurrentUpsertsAndQueries(t *testing.T) {
	idx, err := NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := core.ID(i*50 + j + 1)
				assert.NoError(t, idx.Upsert(ctx, KindSegment, id, []float32{1, 0}, nil))
				_, err := idx.Query(ctx, []float32{1, 0}, 5, nil)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
}
