// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package resolve

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/xrash/smetrics"

	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/storage"
)

const shardCount = 32

// EntityStore is the slice of the entity repository the resolver needs.
// Implementations must return storage.ErrNotFound from GetByName when no
// entity of the given type carries the normalized name as its canonical name
// or as an alias.
type EntityStore interface {
	GetByName(ctx context.Context, normalized string, typ core.EntityType) (*core.Entity, error)
	ListByType(ctx context.Context, typ core.EntityType) ([]*core.Entity, error)
	Put(ctx context.Context, entity *core.Entity) error
}

// SimilarityFunc scores the similarity of two normalized names in [0,1].
type SimilarityFunc func(a, b string) float64

// Key identifies one candidate within a resolution batch. Surface names are
// not unique on their own: the same name may denote entities of different
// types in one segment.
type Key struct {
	Name string
	Type core.EntityType
}

// EntityResolution is the outcome of resolving a batch of candidates.
type EntityResolution struct {
	// IDs maps each candidate's surface name and type to its canonical
	// entity id.
	IDs map[Key]core.ID

	// Warnings carries ErrAmbiguousMerge entries for candidates that landed
	// in the review band and were kept separate.
	Warnings []error
}

// ByName returns the canonical id bound to a surface name when exactly one
// candidate in the batch carried it. Reports false for unknown names and for
// names resolved under more than one type, where the binding is ambiguous.
func (r *EntityResolution) ByName(name string) (core.ID, bool) {
	var (
		found core.ID
		count int
	)
	for key, id := range r.IDs {
		if key.Name == name {
			found = id
			count++
		}
	}
	if count != 1 {
		return 0, false
	}
	return found, true
}

// EntityResolver deduplicates entity candidates against the canonical entity
// set. Matching runs exact-first on the normalized name and aliases, then
// fuzzy within the same type; candidates matching nothing become new canonical
// entities. Merges targeting the same canonical entity serialize through
// sharded mutexes keyed by normalized name and type, so the final state is
// independent of processing order.
type EntityResolver struct {
	store      EntityStore
	similarity SimilarityFunc
	threshold  float64
	reviewBand float64
	shards     [shardCount]sync.Mutex
	logger     *slog.Logger
}

// EntityOption is a functional option for configuring an EntityResolver.
type EntityOption func(*EntityResolver) error

// WithSimilarityThreshold sets the minimum similarity score for a fuzzy merge.
func WithSimilarityThreshold(threshold float64) EntityOption {
	return func(r *EntityResolver) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("similarity threshold must be in (0,1], got %g", threshold)
		}
		r.threshold = threshold
		return nil
	}
}

// WithReviewBand sets the width of the band below the merge threshold in which
// a candidate is kept separate and flagged for manual review.
func WithReviewBand(band float64) EntityOption {
	return func(r *EntityResolver) error {
		if band < 0 || band >= 1 {
			return fmt.Errorf("review band must be in [0,1), got %g", band)
		}
		r.reviewBand = band
		return nil
	}
}

// WithSimilarity replaces the string-distance function used for fuzzy matching.
func WithSimilarity(fn SimilarityFunc) EntityOption {
	return func(r *EntityResolver) error {
		if fn == nil {
			return errors.New("similarity function must not be nil")
		}
		r.similarity = fn
		return nil
	}
}

// NewEntityResolver creates an entity resolver backed by the given store.
func NewEntityResolver(store EntityStore, opts ...EntityOption) (*EntityResolver, error) {
	if store == nil {
		return nil, errors.New("entity store must not be nil")
	}
	r := &EntityResolver{
		store: store,
		similarity: func(a, b string) float64 {
			return smetrics.JaroWinkler(a, b, 0.7, 4)
		},
		threshold:  0.92,
		reviewBand: 0.05,
		logger:     slog.Default().With("component", "entity-resolver"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve merges the candidates into the canonical entity set and returns the
// mapping from candidate surface names to canonical ids. Candidates whose
// provenance segment is already recorded on the target entity are no-ops, so
// re-running a batch cannot create duplicates or double-count confidence.
func (r *EntityResolver) Resolve(ctx context.Context, candidates []core.EntityCandidate) (*EntityResolution, error) {
	result := &EntityResolution{IDs: make(map[Key]core.ID, len(candidates))}

	for _, candidate := range candidates {
		id, warning, err := r.resolveOne(ctx, candidate)
		if err != nil {
			return nil, err
		}
		result.IDs[Key{Name: candidate.Name, Type: candidate.Type}] = id
		if warning != nil {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	return result, nil
}

// resolveOne matches one candidate and applies the outcome under the shard
// locks of every normalized key involved. A merge target reached through an
// alias or a fuzzy match may live under a different shard than the candidate;
// in that case the locks are re-acquired to cover both keys and the match is
// re-checked, since another resolve may have landed in between.
func (r *EntityResolver) resolveOne(ctx context.Context, candidate core.EntityCandidate) (core.ID, error, error) {
	normalized := NormalizeName(candidate.Name)
	if normalized == "" {
		return 0, nil, fmt.Errorf("%w: unresolvable name %q", core.ErrEmptyName, candidate.Name)
	}

	held := []int{shardIndex(normalized, candidate.Type)}
	r.lockShards(held)
	defer func() { r.unlockShards(held) }()

	for {
		// Exact match on normalized name or alias.
		entity, err := r.store.GetByName(ctx, normalized, candidate.Type)
		switch {
		case err == nil:
			entityShard := shardIndex(NormalizeName(entity.Name), entity.Type)
			if !slices.Contains(held, entityShard) {
				held = r.relock(held, entityShard)
				continue
			}
			id, mergeErr := r.merge(ctx, entity, candidate, 1.0)
			return id, nil, mergeErr
		case !errors.Is(err, storage.ErrNotFound):
			return 0, nil, err
		}

		// Fuzzy match within the same type.
		match, score, err := r.closestMatch(ctx, normalized, candidate.Type)
		if err != nil {
			return 0, nil, err
		}

		switch {
		case match != nil && score >= r.threshold:
			matchShard := shardIndex(NormalizeName(match.Name), match.Type)
			if !slices.Contains(held, matchShard) {
				held = r.relock(held, matchShard)
				continue
			}
			r.logger.Debug("fuzzy merge",
				"candidate", candidate.Name,
				"canonical", match.Name,
				"score", score)
			id, mergeErr := r.merge(ctx, match, candidate, score)
			return id, nil, mergeErr

		case match != nil && score >= r.threshold-r.reviewBand:
			// Review band: keep the candidate separate and flag it.
			id, createErr := r.create(ctx, candidate, normalized, true)
			if createErr != nil {
				return 0, nil, createErr
			}
			warning := fmt.Errorf("%w: %q scored %.3f against %q", ErrAmbiguousMerge, candidate.Name, score, match.Name)
			r.logger.Warn("candidate flagged for review",
				"candidate", candidate.Name,
				"near", match.Name,
				"score", score)
			return id, warning, nil

		default:
			id, createErr := r.create(ctx, candidate, normalized, false)
			return id, nil, createErr
		}
	}
}

// lockShards acquires the given shard mutexes. Indices must be sorted
// ascending so concurrent resolvers acquire them in one global order.
func (r *EntityResolver) lockShards(indices []int) {
	for _, i := range indices {
		r.shards[i].Lock()
	}
}

func (r *EntityResolver) unlockShards(indices []int) {
	for i := len(indices) - 1; i >= 0; i-- {
		r.shards[indices[i]].Unlock()
	}
}

// relock releases the held shards and re-acquires them together with idx, in
// ascending order. The caller must redo its match afterwards.
func (r *EntityResolver) relock(held []int, idx int) []int {
	r.unlockShards(held)
	held = append(held, idx)
	slices.Sort(held)
	held = slices.Compact(held)
	r.lockShards(held)
	return held
}

// closestMatch scans canonical entities of the type for the best similarity
// against the candidate's normalized name, considering aliases too.
func (r *EntityResolver) closestMatch(ctx context.Context, normalized string, typ core.EntityType) (*core.Entity, float64, error) {
	entities, err := r.store.ListByType(ctx, typ)
	if err != nil {
		return nil, 0, err
	}

	var best *core.Entity
	bestScore := 0.0
	for _, entity := range entities {
		score := r.similarity(normalized, NormalizeName(entity.Name))
		for _, alias := range entity.Aliases {
			if s := r.similarity(normalized, NormalizeName(alias)); s > score {
				score = s
			}
		}
		if score > bestScore || (score == bestScore && best != nil && entity.Id < best.Id) {
			best = entity
			bestScore = score
		}
	}
	return best, bestScore, nil
}

// merge folds the candidate into the canonical entity. The weight scales the
// candidate's confidence contribution; fuzzy merges pass their similarity
// score, exact merges pass 1.
func (r *EntityResolver) merge(ctx context.Context, entity *core.Entity, candidate core.EntityCandidate, weight float64) (core.ID, error) {
	if slices.Contains(entity.Provenance, candidate.SegmentId) {
		// Already recorded: retried jobs must not double-count.
		return entity.Id, nil
	}

	weighted := candidate.Confidence * weight

	// Description comes from the highest-confidence contributor so far, not
	// the running average. Ties keep the earlier contribution.
	if candidate.Description != "" && (entity.Description == "" || weighted > entity.DescriptionConfidence) {
		entity.Description = candidate.Description
		entity.DescriptionConfidence = weighted
	}

	n := float64(len(entity.Provenance))
	entity.Confidence = (entity.Confidence*n + weighted) / (n + 1)
	entity.Provenance = append(entity.Provenance, candidate.SegmentId)

	if candidate.Name != entity.Name && !slices.Contains(entity.Aliases, candidate.Name) {
		entity.Aliases = append(entity.Aliases, candidate.Name)
	}
	if entity.Subtype == "" && candidate.Subtype != "" {
		entity.Subtype = candidate.Subtype
	}
	entity.UpdatedAt = time.Now()

	if err := r.store.Put(ctx, entity); err != nil {
		return 0, err
	}
	return entity.Id, nil
}

func (r *EntityResolver) create(ctx context.Context, candidate core.EntityCandidate, normalized string, needsReview bool) (core.ID, error) {
	now := time.Now()
	entity := &core.Entity{
		Id:          core.EntityID(normalized, candidate.Type),
		Name:        candidate.Name,
		Type:        candidate.Type,
		Subtype:     candidate.Subtype,
		Description: candidate.Description,
		Provenance:  []core.ID{candidate.SegmentId},
		Confidence:  candidate.Confidence,
		NeedsReview: needsReview,
		InsertedAt:  now,
		UpdatedAt:   now,
	}
	if entity.Description != "" {
		entity.DescriptionConfidence = candidate.Confidence
	}
	if err := core.ValidateEntity(entity); err != nil {
		return 0, err
	}
	if err := r.store.Put(ctx, entity); err != nil {
		return 0, err
	}
	return entity.Id, nil
}

func shardIndex(normalized string, typ core.EntityType) int {
	h := fnv.New32a()
	h.Write([]byte(typ))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return int(h.Sum32() % shardCount)
}
