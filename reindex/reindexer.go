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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/gnosis/ai"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/storage"
)

const (
	// SegmentProcessorType names the segment phase's checkpoint.
	SegmentProcessorType = "segment-reindex"

	// EntityProcessorType names the entity phase's checkpoint.
	EntityProcessorType = "entity-reindex"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer orchestrates re-embedding of all stored segments and entities.
// Progress is checkpointed after every batch, so an interrupted run resumes
// after the last fully processed batch instead of starting over.
type Reindexer struct {
	documents   storage.DocumentRepository
	entities    storage.EntityRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer

	segmentProcessor *SegmentBatchProcessor
	entityProcessor  *EntityBatchProcessor
	segmentIterator  *SegmentIterator
	entityIterator   *EntityIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(
	documents storage.DocumentRepository,
	entities storage.EntityRepository,
	checkpoints storage.CheckpointRepository,
	embedder ai.Embedder,
	idx index.Index,
	config *Config,
	progress io.Writer,
) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reindexer{
		documents:        documents,
		entities:         entities,
		checkpoints:      checkpoints,
		config:           config,
		progress:         progress,
		segmentProcessor: NewSegmentBatchProcessor(documents, embedder, idx, config.MaxRetries, config.RetryDelay),
		entityProcessor:  NewEntityBatchProcessor(entities, embedder, idx, config.MaxRetries, config.RetryDelay),
		segmentIterator:  NewSegmentIterator(documents, config.BatchSize),
		entityIterator:   NewEntityIterator(entities, config.BatchSize),
	}
}

// Run executes the reindexing operation: all segments first, then all
// entities. Each phase resumes from its checkpoint when one exists and clears
// it on completion.
func (r *Reindexer) Run(ctx context.Context) error {
	err := r.runPhase(ctx, "segments", SegmentProcessorType, r.countSegments, r.processSegments)
	if err != nil {
		return err
	}
	return r.runPhase(ctx, "entities", EntityProcessorType, r.countEntities, r.processEntities)
}

// phaseFn processes every record after the resume point, calling advance with
// the last id and size of each completed batch.
type phaseFn func(ctx context.Context, after core.ID, advance func(last core.ID, n int) error) error

func (r *Reindexer) runPhase(ctx context.Context, label, processorType string, count func(context.Context, core.ID) (int, error), process phaseFn) error {
	after := core.ID(0)
	processed := int64(0)

	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, processorType)
	if err != nil {
		return fmt.Errorf("failed to load %s checkpoint: %w", label, err)
	}
	if checkpoint != nil {
		after = checkpoint.LastProcessedID
		processed = checkpoint.ProcessedCount
		fmt.Fprintf(r.progress, "Resuming %s after %d already processed\n", label, processed)
	}

	remaining, err := count(ctx, after)
	if err != nil {
		return fmt.Errorf("failed to count %s: %w", label, err)
	}
	if remaining == 0 {
		fmt.Fprintf(r.progress, "No %s to reindex\n", label)
		return r.checkpoints.DeleteCheckpoint(ctx, processorType)
	}

	fmt.Fprintf(r.progress, "Reindexing %d %s (batch size: %d)\n", remaining, label, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, label, remaining, r.config.ReportInterval)
	tracker.Start()

	done := 0
	err = process(ctx, after, func(last core.ID, n int) error {
		done += n
		processed += int64(n)
		tracker.Update(done)

		return r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
			ProcessorType:   processorType,
			LastProcessedID: last,
			ProcessedCount:  processed,
			UpdatedAt:       time.Now(),
		})
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	if err := r.checkpoints.DeleteCheckpoint(ctx, processorType); err != nil {
		return fmt.Errorf("failed to clear %s checkpoint: %w", label, err)
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing of %s complete. Processed %d in %v (%.1f records/sec)\n",
		label, done, elapsed.Round(time.Second), float64(done)/elapsed.Seconds())

	return nil
}

func (r *Reindexer) countSegments(ctx context.Context, after core.ID) (int, error) {
	return r.segmentIterator.Count(ctx, after)
}

func (r *Reindexer) countEntities(ctx context.Context, after core.ID) (int, error) {
	return r.entityIterator.Count(ctx, after)
}

func (r *Reindexer) processSegments(ctx context.Context, after core.ID, advance func(core.ID, int) error) error {
	return r.segmentIterator.ForEachBatch(ctx, after, func(segments []*core.Segment) error {
		if err := r.segmentProcessor.Process(ctx, segments); err != nil {
			return fmt.Errorf("failed to process segment batch: %w", err)
		}
		return advance(segments[len(segments)-1].Id, len(segments))
	})
}

func (r *Reindexer) processEntities(ctx context.Context, after core.ID, advance func(core.ID, int) error) error {
	return r.entityIterator.ForEachBatch(ctx, after, func(entities []*core.Entity) error {
		if err := r.entityProcessor.Process(ctx, entities); err != nil {
			return fmt.Errorf("failed to process entity batch: %w", err)
		}
		return advance(entities[len(entities)-1].Id, len(entities))
	})
}
