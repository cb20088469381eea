package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/storage"
)

// memRelationStore is an in-memory RelationStore for resolver tests.
type memRelationStore struct {
	mu        sync.Mutex
	relations map[core.ID]*core.Relation
}

func newMemRelationStore() *memRelationStore {
	return &memRelationStore{relations: make(map[core.ID]*core.Relation)}
}

func (s *memRelationStore) Get(ctx context.Context, id core.ID) (*core.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	relation, ok := s.relations[id]
	if !ok {
		return nil, fmt.Errorf("%w: relation %d", storage.ErrNotFound, id)
	}
	return relation, nil
}

func (s *memRelationStore) Put(ctx context.Context, relation *core.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[relation.Id] = relation
	return nil
}

func relationCandidate(source, target, segment core.ID, confidence float64) core.RelationCandidate {
	return core.RelationCandidate{
		SourceId:   source,
		TargetId:   target,
		Type:       core.RelationTypeRelatesTo,
		SegmentId:  segment,
		Confidence: confidence,
	}
}

func TestRelationResolver_CreatesRelation(t *testing.T) {
	store := newMemRelationStore()
	r, err := NewRelationResolver(store)
	require.NoError(t, err)

	ids, err := r.Resolve(context.Background(), []core.RelationCandidate{
		relationCandidate(1, 2, 100, 0.8),
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	relation := store.relations[ids[0]]
	require.NotNil(t, relation)
	assert.Equal(t, core.ID(1), relation.SourceId)
	assert.Equal(t, core.ID(2), relation.TargetId)
	assert.Equal(t, []core.ID{100}, relation.Provenance)
}

func TestRelationResolver_DedupsOnTriple(t *testing.T) {
	store := newMemRelationStore()
	r, err := NewRelationResolver(store)
	require.NoError(t, err)

	ids, err := r.Resolve(context.Background(), []core.RelationCandidate{
		relationCandidate(1, 2, 100, 0.8),
		relationCandidate(1, 2, 200, 0.6),
	})
	require.NoError(t, err)
	assert.Equal(t, ids[0], ids[1])
	require.Len(t, store.relations, 1)

	relation := store.relations[ids[0]]
	assert.ElementsMatch(t, []core.ID{100, 200}, relation.Provenance)
	assert.InDelta(t, 0.7, relation.Confidence, 1e-9)
}

func TestRelationResolver_DescriptionFromHighestConfidence(t *testing.T) {
	store := newMemRelationStore()
	r, err := NewRelationResolver(store)
	require.NoError(t, err)

	first := relationCandidate(1, 2, 100, 0.8)
	first.Description = "trains on labeled examples"
	second := relationCandidate(1, 2, 200, 0.6)
	second.Description = "uses data"
	third := relationCandidate(1, 2, 300, 0.75)
	third.Description = "consumes a corpus"

	ids, err := r.Resolve(context.Background(), []core.RelationCandidate{first, second, third})
	require.NoError(t, err)
	require.Len(t, store.relations, 1)

	// The description follows the most confident contributor, not the latest.
	relation := store.relations[ids[0]]
	assert.Equal(t, "trains on labeled examples", relation.Description)
	assert.Equal(t, 0.8, relation.DescriptionConfidence)
	assert.InDelta(t, (0.8+0.6+0.75)/3, relation.Confidence, 1e-9)
}

func TestRelationResolver_DirectionMatters(t *testing.T) {
	store := newMemRelationStore()
	r, err := NewRelationResolver(store)
	require.NoError(t, err)

	ids, err := r.Resolve(context.Background(), []core.RelationCandidate{
		relationCandidate(1, 2, 100, 0.8),
		relationCandidate(2, 1, 100, 0.8),
	})
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Len(t, store.relations, 2)
}

func TestRelationResolver_Idempotent(t *testing.T) {
	store := newMemRelationStore()
	r, err := NewRelationResolver(store)
	require.NoError(t, err)

	batch := []core.RelationCandidate{relationCandidate(1, 2, 100, 0.8)}

	_, err = r.Resolve(context.Background(), batch)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, store.relations, 1)
	for _, relation := range store.relations {
		assert.Equal(t, []core.ID{100}, relation.Provenance)
		assert.Equal(t, 0.8, relation.Confidence)
	}
}

func TestRelationResolver_RejectsSelfRelation(t *testing.T) {
	store := newMemRelationStore()
	r, err := NewRelationResolver(store)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), []core.RelationCandidate{
		relationCandidate(1, 1, 100, 0.8),
	})
	assert.True(t, errors.Is(err, core.ErrSelfRelation))
}

func TestRelationResolver_DistinctTypesStaySeparate(t *testing.T) {
	store := newMemRelationStore()
	r, err := NewRelationResolver(store)
	require.NoError(t, err)

	uses := relationCandidate(1, 2, 100, 0.8)
	uses.Type = core.RelationTypeUses

	ids, err := r.Resolve(context.Background(), []core.RelationCandidate{
		relationCandidate(1, 2, 100, 0.8),
		uses,
	})
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Len(t, store.relations, 2)
}
