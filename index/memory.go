package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/poiesic/gnosis/core"
)

type key struct {
	kind Kind
	id   core.ID
}

type record struct {
	vector   []float32
	metadata map[string]string
}

// Memory is an in-memory Index. Writes take the write lock one object at a
// time, so an upsert is atomic per (kind, id); queries rank under the read
// lock and therefore observe a consistent snapshot.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	records   map[key]record
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty in-memory index with the given fixed dimension.
func NewMemory(dimension int) (*Memory, error) {
	if dimension < 1 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	return &Memory{
		dimension: dimension,
		records:   make(map[key]record),
	}, nil
}

// Dimension returns the fixed vector dimension.
func (m *Memory) Dimension() int {
	return m.dimension
}

// Upsert stores or replaces the vector and metadata for (kind, id).
func (m *Memory) Upsert(ctx context.Context, kind Kind, id core.ID, vector []float32, metadata map[string]string) error {
	if len(vector) != m.dimension {
		return fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(vector), m.dimension)
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)

	var meta map[string]string
	if len(metadata) > 0 {
		meta = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key{kind, id}] = record{vector: stored, metadata: meta}
	return nil
}

// Delete removes the entry for (kind, id). Deleting an absent entry is a no-op.
func (m *Memory) Delete(ctx context.Context, kind Kind, id core.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key{kind, id})
	return nil
}

// Query returns the k nearest entries by cosine similarity, descending, with
// ties broken by kind then id ascending.
func (m *Memory) Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error) {
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: got %d, index holds %d", ErrDimensionMismatch, len(vector), m.dimension)
	}
	if k < 1 {
		return []Hit{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.records))
	for key, record := range m.records {
		if !matches(filter, key.kind, record.metadata) {
			continue
		}
		hits = append(hits, Hit{
			Kind:  key.kind,
			Id:    key.id,
			Score: cosineSimilarity(vector, record.vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Kind != hits[j].Kind {
			return hits[i].Kind < hits[j].Kind
		}
		return hits[i].Id < hits[j].Id
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func matches(filter *Filter, kind Kind, metadata map[string]string) bool {
	if filter == nil {
		return true
	}
	if len(filter.Kinds) > 0 {
		found := false
		for _, want := range filter.Kinds {
			if want == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for wantKey, wantValue := range filter.Metadata {
		if metadata[wantKey] != wantValue {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
