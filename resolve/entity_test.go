package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/storage"
)

// memEntityStore is an in-memory EntityStore for resolver tests.
type memEntityStore struct {
	mu       sync.Mutex
	entities map[core.ID]*core.Entity
}

func newMemEntityStore() *memEntityStore {
	return &memEntityStore{entities: make(map[core.ID]*core.Entity)}
}

func (s *memEntityStore) GetByName(ctx context.Context, normalized string, typ core.EntityType) (*core.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entity := range s.entities {
		if entity.Type != typ {
			continue
		}
		if NormalizeName(entity.Name) == normalized {
			return entity, nil
		}
		for _, alias := range entity.Aliases {
			if NormalizeName(alias) == normalized {
				return entity, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: entity %q", storage.ErrNotFound, normalized)
}

func (s *memEntityStore) ListByType(ctx context.Context, typ core.EntityType) ([]*core.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Entity
	for _, entity := range s.entities {
		if entity.Type == typ {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (s *memEntityStore) Put(ctx context.Context, entity *core.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entity.Id] = entity
	return nil
}

func candidate(name string, segment core.ID, confidence float64) core.EntityCandidate {
	return core.EntityCandidate{
		Name:       name,
		Type:       core.EntityTypeConcept,
		SegmentId:  segment,
		Confidence: confidence,
	}
}

func conceptKey(name string) Key {
	return Key{Name: name, Type: core.EntityTypeConcept}
}

func described(name string, segment core.ID, confidence float64, description string) core.EntityCandidate {
	c := candidate(name, segment, confidence)
	c.Description = description
	return c
}

// surfaceForms collects an entity's canonical name and aliases as a sorted set.
func surfaceForms(e *core.Entity) []string {
	forms := append([]string{e.Name}, e.Aliases...)
	sort.Strings(forms)
	return forms
}

func TestEntityResolver_CreatesNewEntity(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	result, err := r.Resolve(context.Background(), []core.EntityCandidate{
		candidate("Neural Networks", 100, 0.8),
	})
	require.NoError(t, err)
	require.Len(t, result.IDs, 1)
	assert.Empty(t, result.Warnings)

	id := result.IDs[conceptKey("Neural Networks")]
	entity := store.entities[id]
	require.NotNil(t, entity)
	assert.Equal(t, "Neural Networks", entity.Name)
	assert.Equal(t, []core.ID{100}, entity.Provenance)
	assert.Equal(t, 0.8, entity.Confidence)
	assert.False(t, entity.NeedsReview)
}

func TestEntityResolver_CaseVariantsMerge(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	// Two documents mention the same concept with different casing.
	result, err := r.Resolve(context.Background(), []core.EntityCandidate{
		candidate("Neural Networks", 100, 0.8),
		candidate("neural networks", 200, 0.6),
	})
	require.NoError(t, err)

	first := result.IDs[conceptKey("Neural Networks")]
	second := result.IDs[conceptKey("neural networks")]
	assert.Equal(t, first, second, "case variants must resolve to one canonical entity")
	require.Len(t, store.entities, 1)

	entity := store.entities[first]
	assert.ElementsMatch(t, []core.ID{100, 200}, entity.Provenance)
	assert.InDelta(t, 0.7, entity.Confidence, 1e-9)
	assert.Contains(t, surfaceForms(entity), "neural networks")
}

func TestEntityResolver_Idempotent(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	batch := []core.EntityCandidate{candidate("Gradient Descent", 100, 0.9)}

	first, err := r.Resolve(context.Background(), batch)
	require.NoError(t, err)

	// A retried job resolves the identical candidate again.
	second, err := r.Resolve(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, first.IDs, second.IDs)
	require.Len(t, store.entities, 1)

	entity := store.entities[first.IDs[conceptKey("Gradient Descent")]]
	assert.Equal(t, []core.ID{100}, entity.Provenance, "provenance must not duplicate")
	assert.Equal(t, 0.9, entity.Confidence, "confidence must not double-count")
}

func TestEntityResolver_OrderIndependent(t *testing.T) {
	candidates := []core.EntityCandidate{
		candidate("Neural Networks", 100, 0.9),
		candidate("neural networks", 200, 0.5),
		candidate("NEURAL NETWORKS", 300, 0.7),
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	var (
		wantProvenance []core.ID
		wantForms      []string
		wantConfidence float64
	)

	for i, perm := range permutations {
		store := newMemEntityStore()
		r, err := NewEntityResolver(store)
		require.NoError(t, err)

		ordered := make([]core.EntityCandidate, len(perm))
		for j, k := range perm {
			ordered[j] = candidates[k]
		}

		_, err = r.Resolve(context.Background(), ordered)
		require.NoError(t, err)
		require.Len(t, store.entities, 1)

		var entity *core.Entity
		for _, e := range store.entities {
			entity = e
		}

		provenance := append([]core.ID(nil), entity.Provenance...)
		sort.Slice(provenance, func(a, b int) bool { return provenance[a] < provenance[b] })

		if i == 0 {
			wantProvenance = provenance
			wantForms = surfaceForms(entity)
			wantConfidence = entity.Confidence
			continue
		}
		assert.Equal(t, wantProvenance, provenance)
		assert.Equal(t, wantForms, surfaceForms(entity))
		assert.InDelta(t, wantConfidence, entity.Confidence, 1e-9)
	}
}

func TestEntityResolver_FuzzyMerge(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store, WithSimilarityThreshold(0.9))
	require.NoError(t, err)

	result, err := r.Resolve(context.Background(), []core.EntityCandidate{
		candidate("neural network", 100, 0.8),
		candidate("neural networks", 200, 0.6),
	})
	require.NoError(t, err)

	assert.Equal(t, result.IDs[conceptKey("neural network")], result.IDs[conceptKey("neural networks")],
		"near-identical names of the same type must merge")
	require.Len(t, store.entities, 1)

	var entity *core.Entity
	for _, e := range store.entities {
		entity = e
	}
	assert.ElementsMatch(t, []core.ID{100, 200}, entity.Provenance)
	// The fuzzy contribution is weighted by similarity, so the average sits
	// strictly below the unweighted mean.
	assert.Less(t, entity.Confidence, 0.7)
	assert.Greater(t, entity.Confidence, 0.5)
}

func TestEntityResolver_ReviewBand(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store,
		WithSimilarityThreshold(0.92),
		WithReviewBand(0.05),
		WithSimilarity(func(a, b string) float64 { return 0.9 }),
	)
	require.NoError(t, err)

	result, err := r.Resolve(context.Background(), []core.EntityCandidate{
		candidate("Support Vector Machine", 100, 0.8),
		candidate("Support Vector Regression", 200, 0.8),
	})
	require.NoError(t, err)

	// The second candidate scored inside the review band: kept separate,
	// flagged, and reported rather than silently dropped.
	require.Len(t, store.entities, 2)
	require.Len(t, result.Warnings, 1)
	assert.True(t, errors.Is(result.Warnings[0], ErrAmbiguousMerge))

	flagged := store.entities[result.IDs[conceptKey("Support Vector Regression")]]
	assert.True(t, flagged.NeedsReview)
}

func TestEntityResolver_DistinctTypesStaySeparate(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	result, err := r.Resolve(context.Background(), []core.EntityCandidate{
		{Name: "Mercury", Type: core.EntityTypeConcept, SegmentId: 100, Confidence: 0.8},
		{Name: "Mercury", Type: core.EntityTypeOrganization, SegmentId: 200, Confidence: 0.8},
	})
	require.NoError(t, err)
	assert.Len(t, store.entities, 2)

	// Both resolutions stay addressable: the batch keys on name and type.
	require.Len(t, result.IDs, 2)
	concept := result.IDs[conceptKey("Mercury")]
	org := result.IDs[Key{Name: "Mercury", Type: core.EntityTypeOrganization}]
	assert.NotEqual(t, concept, org)

	// A name carried by more than one type is ambiguous for name-only lookups.
	_, ok := result.ByName("Mercury")
	assert.False(t, ok)
}

func TestEntityResolver_ByName(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	result, err := r.Resolve(context.Background(), []core.EntityCandidate{
		candidate("Gradient Descent", 100, 0.8),
	})
	require.NoError(t, err)

	id, ok := result.ByName("Gradient Descent")
	assert.True(t, ok)
	assert.Equal(t, result.IDs[conceptKey("Gradient Descent")], id)

	_, ok = result.ByName("Momentum")
	assert.False(t, ok)
}

func TestEntityResolver_DescriptionFromHighestConfidence(t *testing.T) {
	candidates := []core.EntityCandidate{
		described("Transformer", 100, 0.8, "Attention-based sequence model"),
		described("Transformer", 200, 0.6, "A neural architecture"),
		described("Transformer", 300, 0.75, "Model family used in language tasks"),
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	// The description tracks the most confident contributor regardless of
	// arrival order, while the entity confidence stays the running average.
	for _, perm := range permutations {
		store := newMemEntityStore()
		r, err := NewEntityResolver(store)
		require.NoError(t, err)

		ordered := make([]core.EntityCandidate, len(perm))
		for j, k := range perm {
			ordered[j] = candidates[k]
		}

		result, err := r.Resolve(context.Background(), ordered)
		require.NoError(t, err)
		require.Len(t, store.entities, 1)

		entity := store.entities[result.IDs[conceptKey("Transformer")]]
		require.NotNil(t, entity)
		assert.Equal(t, "Attention-based sequence model", entity.Description)
		assert.Equal(t, 0.8, entity.DescriptionConfidence)
		assert.InDelta(t, (0.8+0.6+0.75)/3, entity.Confidence, 1e-9)
	}
}

func TestEntityResolver_DescriptionTieKeepsEarlier(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	result, err := r.Resolve(context.Background(), []core.EntityCandidate{
		described("Backpropagation", 100, 0.7, "Gradient computation by the chain rule"),
		described("Backpropagation", 200, 0.7, "Training algorithm"),
	})
	require.NoError(t, err)

	entity := store.entities[result.IDs[conceptKey("Backpropagation")]]
	require.NotNil(t, entity)
	assert.Equal(t, "Gradient computation by the chain rule", entity.Description)
}

func TestEntityResolver_ConcurrentSameKey(t *testing.T) {
	store := newMemEntityStore()
	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), []core.EntityCandidate{
				candidate("Neural Networks", core.ID(worker+1), 0.5),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, store.entities, 1)
	var entity *core.Entity
	for _, e := range store.entities {
		entity = e
	}
	assert.Len(t, entity.Provenance, workers)
	assert.InDelta(t, 0.5, entity.Confidence, 1e-9)
}

func TestEntityResolver_ConcurrentAliasMerge(t *testing.T) {
	store := newMemEntityStore()
	now := time.Now()
	seed := &core.Entity{
		Id:         core.EntityID(NormalizeName("Neural Networks"), core.EntityTypeConcept),
		Name:       "Neural Networks",
		Type:       core.EntityTypeConcept,
		Aliases:    []string{"NNs"},
		Provenance: []core.ID{1},
		Confidence: 0.5,
		InsertedAt: now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.Put(context.Background(), seed))

	r, err := NewEntityResolver(store)
	require.NoError(t, err)

	// Half the workers arrive through the canonical name and half through the
	// alias, whose normalized forms live in different lock shards. Every merge
	// must serialize on the canonical entity's shard.
	const workers = 8
	forms := []string{"Neural Networks", "NNs"}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), []core.EntityCandidate{
				candidate(forms[worker%2], core.ID(worker+2), 0.5),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, store.entities, 1)
	entity := store.entities[seed.Id]
	require.NotNil(t, entity)
	assert.Len(t, entity.Provenance, workers+1, "no merge may be lost to a racing shard")
}
