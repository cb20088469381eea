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


package reindex

import (
	"context"

	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 100
)

// SegmentIterator iterates over stored segments in batches, in ascending id
// order so a checkpointed run can resume after the last processed id.
type SegmentIterator struct {
	repo      storage.DocumentRepository
	batchSize int
}

// NewSegmentIterator creates a new segment iterator.
// batchSize: number of segments per batch (must be > 0)
func NewSegmentIterator(repo storage.DocumentRepository, batchSize int) *SegmentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &SegmentIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEachBatch iterates over all segments with id greater than after, calling
// fn for each batch. Iteration stops on the first error from fn. Context
// cancellation is checked between records by the underlying iteration.
func (it *SegmentIterator) ForEachBatch(ctx context.Context, after core.ID, fn func([]*core.Segment) error) error {
	var batch []*core.Segment

	err := it.repo.IterateSegments(ctx, after, func(seg *core.Segment) error {
		batch = append(batch, seg)
		if len(batch) >= it.batchSize {
			full := batch
			batch = nil
			return fn(full)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// Count returns the number of segments with id greater than after.
func (it *SegmentIterator) Count(ctx context.Context, after core.ID) (int, error) {
	count := 0
	err := it.repo.IterateSegments(ctx, after, func(*core.Segment) error {
		count++
		return nil
	})
	return count, err
}

// EntityIterator iterates over stored entities in batches, in ascending id
// order so a checkpointed run can resume after the last processed id.
type EntityIterator struct {
	repo      storage.EntityRepository
	batchSize int
}

// NewEntityIterator creates a new entity iterator.
// batchSize: number of entities per batch (must be > 0)
func NewEntityIterator(repo storage.EntityRepository, batchSize int) *EntityIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &EntityIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEachBatch iterates over all entities with id greater than after, calling
// fn for each batch. Iteration stops on the first error from fn.
func (it *EntityIterator) ForEachBatch(ctx context.Context, after core.ID, fn func([]*core.Entity) error) error {
	var batch []*core.Entity

	err := it.repo.IterateEntities(ctx, after, func(entity *core.Entity) error {
		batch = append(batch, entity)
		if len(batch) >= it.batchSize {
			full := batch
			batch = nil
			return fn(full)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// Count returns the number of entities with id greater than after.
func (it *EntityIterator) Count(ctx context.Context, after core.ID) (int, error) {
	count := 0
	err := it.repo.IterateEntities(ctx, after, func(*core.Entity) error {
		count++
		return nil
	})
	return count, err
}
