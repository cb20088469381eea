package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/gnosis/ai"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/storage"
)

// SegmentBatchProcessor regenerates embeddings for batches of segments and
// refreshes their index entries.
type SegmentBatchProcessor struct {
	repo           storage.DocumentRepository
	embedder       ai.Embedder
	index          index.Index
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewSegmentBatchProcessor creates a new segment batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewSegmentBatchProcessor(repo storage.DocumentRepository, embedder ai.Embedder, idx index.Index, maxRetries int, retryBaseDelay time.Duration) *SegmentBatchProcessor {
	return &SegmentBatchProcessor{
		repo:           repo,
		embedder:       embedder,
		index:          idx,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of segments, updates them in the
// database, and upserts the new vectors into the index. Vectors are normalized
// after embedding to ensure compatibility with cosine similarity.
func (bp *SegmentBatchProcessor) Process(ctx context.Context, segments []*core.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = ai.SegmentEmbeddingText(seg)
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(segments) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(segments), len(embeddings))
	}

	for i := range segments {
		segments[i].Vector = NormalizeVector(embeddings[i])
	}

	if _, err := bp.repo.UpdateSegments(ctx, segments...); err != nil {
		return fmt.Errorf("failed to update segments: %w", err)
	}

	for _, seg := range segments {
		err := bp.index.Upsert(ctx, index.KindSegment, seg.Id, seg.Vector, map[string]string{
			"document_id": seg.DocumentId.String(),
			"kind":        string(seg.Kind),
		})
		if err != nil {
			return fmt.Errorf("failed to index segment %d: %w", seg.Id, err)
		}
	}

	return nil
}

// EntityBatchProcessor regenerates embeddings for batches of entities and
// refreshes their index entries.
type EntityBatchProcessor struct {
	repo           storage.EntityRepository
	embedder       ai.Embedder
	index          index.Index
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewEntityBatchProcessor creates a new entity batch processor.
func NewEntityBatchProcessor(repo storage.EntityRepository, embedder ai.Embedder, idx index.Index, maxRetries int, retryBaseDelay time.Duration) *EntityBatchProcessor {
	return &EntityBatchProcessor{
		repo:           repo,
		embedder:       embedder,
		index:          idx,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of entities, updates them in the
// database, and upserts the new vectors into the index.
func (bp *EntityBatchProcessor) Process(ctx context.Context, entities []*core.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	texts := make([]string, len(entities))
	for i, entity := range entities {
		texts[i] = ai.EntityEmbeddingText(entity)
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(entities) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(entities), len(embeddings))
	}

	for i, entity := range entities {
		entity.Vector = NormalizeVector(embeddings[i])
		if err := bp.repo.Put(ctx, entity); err != nil {
			return fmt.Errorf("failed to update entity %d: %w", entity.Id, err)
		}
		err := bp.index.Upsert(ctx, index.KindEntity, entity.Id, entity.Vector, map[string]string{
			"type": string(entity.Type),
		})
		if err != nil {
			return fmt.Errorf("failed to index entity %d: %w", entity.Id, err)
		}
	}

	return nil
}
