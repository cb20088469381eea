package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/storage"
)

// RelationStore is the slice of the relation repository the resolver needs.
// Get must return storage.ErrNotFound for unknown ids.
type RelationStore interface {
	Get(ctx context.Context, id core.ID) (*core.Relation, error)
	Put(ctx context.Context, relation *core.Relation) error
}

// RelationResolver deduplicates relation candidates on the ordered triple
// (source id, target id, type). Candidate endpoints must already be canonical
// entity ids: the pipeline resolves a segment's entities before its relations,
// so re-keying to final canonical ids happens before candidates reach here.
type RelationResolver struct {
	store  RelationStore
	shards [shardCount]sync.Mutex
	logger *slog.Logger
}

// NewRelationResolver creates a relation resolver backed by the given store.
func NewRelationResolver(store RelationStore) (*RelationResolver, error) {
	if store == nil {
		return nil, errors.New("relation store must not be nil")
	}
	return &RelationResolver{
		store:  store,
		logger: slog.Default().With("component", "relation-resolver"),
	}, nil
}

// Resolve merges the candidates into the canonical relation set and returns
// the canonical ids in candidate order. Provenance union and confidence
// averaging follow the entity merge semantics; a candidate whose provenance
// segment is already recorded is a no-op.
func (r *RelationResolver) Resolve(ctx context.Context, candidates []core.RelationCandidate) ([]core.ID, error) {
	ids := make([]core.ID, 0, len(candidates))

	for _, candidate := range candidates {
		id, err := r.resolveOne(ctx, candidate)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *RelationResolver) resolveOne(ctx context.Context, candidate core.RelationCandidate) (core.ID, error) {
	if candidate.SourceId == candidate.TargetId {
		return 0, fmt.Errorf("%w: relation from entity %d to itself", core.ErrSelfRelation, candidate.SourceId)
	}

	id := core.RelationID(candidate.SourceId, candidate.TargetId, candidate.Type)

	shard := &r.shards[int(uint64(id)%shardCount)]
	shard.Lock()
	defer shard.Unlock()

	relation, err := r.store.Get(ctx, id)
	switch {
	case err == nil:
		return id, r.merge(ctx, relation, candidate)
	case errors.Is(err, storage.ErrNotFound):
		return id, r.create(ctx, id, candidate)
	default:
		return 0, err
	}
}

func (r *RelationResolver) merge(ctx context.Context, relation *core.Relation, candidate core.RelationCandidate) error {
	if slices.Contains(relation.Provenance, candidate.SegmentId) {
		return nil
	}

	// Highest-confidence contributor keeps the description; ties keep the
	// earlier contribution.
	if candidate.Description != "" && (relation.Description == "" || candidate.Confidence > relation.DescriptionConfidence) {
		relation.Description = candidate.Description
		relation.DescriptionConfidence = candidate.Confidence
	}

	n := float64(len(relation.Provenance))
	relation.Confidence = (relation.Confidence*n + candidate.Confidence) / (n + 1)
	relation.Provenance = append(relation.Provenance, candidate.SegmentId)
	if relation.Subtype == "" && candidate.Subtype != "" {
		relation.Subtype = candidate.Subtype
	}
	relation.UpdatedAt = time.Now()

	return r.store.Put(ctx, relation)
}

func (r *RelationResolver) create(ctx context.Context, id core.ID, candidate core.RelationCandidate) error {
	now := time.Now()
	relation := &core.Relation{
		Id:          id,
		SourceId:    candidate.SourceId,
		TargetId:    candidate.TargetId,
		Type:        candidate.Type,
		Subtype:     candidate.Subtype,
		Description: candidate.Description,
		Provenance:  []core.ID{candidate.SegmentId},
		Confidence:  candidate.Confidence,
		InsertedAt:  now,
		UpdatedAt:   now,
	}
	if relation.Description != "" {
		relation.DescriptionConfidence = candidate.Confidence
	}
	if err := core.ValidateRelation(relation); err != nil {
		return err
	}
	return r.store.Put(ctx, relation)
}
