package reindex

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/poiesic/gnosis/ai/mock"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

func assertUnitVector(t *testing.T, v []float32) {
	t.Helper()
	require.NotEmpty(t, v)
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestReindexer_FullRun(t *testing.T) {
	ctx := context.Background()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	doc, err := repos.Documents.AddDocument(ctx, &core.Document{SourceId: "paper.md", Version: 1})
	require.NoError(t, err)

	segments := make([]*core.Segment, 5)
	for i := range segments {
		segments[i] = &core.Segment{
			DocumentId: doc.Id,
			Content:    fmt.Sprintf("paragraph %d about the topic", i),
			Kind:       core.SegmentKindParagraph,
			Position:   i,
		}
	}
	segments, err = repos.Documents.AddSegments(ctx, segments...)
	require.NoError(t, err)

	for _, name := range []string{"topic modeling", "latent variables", "inference"} {
		require.NoError(t, repos.Entities.Put(ctx, &core.Entity{
			Name:       name,
			Type:       core.EntityTypeConcept,
			Confidence: 0.9,
		}))
	}

	embedder := &mock.MockEmbedder{Dimension: 8}
	idx, err := index.NewMemory(8)
	require.NoError(t, err)

	var out bytes.Buffer
	r := NewReindexer(repos.Documents, repos.Entities, repos.Checkpoints, embedder, idx, testConfig(), &out)
	require.NoError(t, r.Run(ctx))

	// Every segment got a fresh normalized vector.
	for _, seg := range segments {
		stored, err := repos.Documents.GetSegment(ctx, seg.Id)
		require.NoError(t, err)
		assertUnitVector(t, stored.Vector)
	}

	// Entities too, and they are queryable through the index.
	entities, err := repos.Entities.ListByType(ctx, core.EntityTypeConcept)
	require.NoError(t, err)
	require.Len(t, entities, 3)
	for _, entity := range entities {
		assertUnitVector(t, entity.Vector)
	}

	vector, err := embedder.EmbedText(ctx, "topic modeling")
	require.NoError(t, err)
	hits, err := idx.Query(ctx, vector, 10, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 8) // 5 segments + 3 entities

	// Checkpoints are cleared after a complete run.
	cp, err := repos.Checkpoints.LoadCheckpoint(ctx, SegmentProcessorType)
	require.NoError(t, err)
	assert.Nil(t, cp)
	cp, err = repos.Checkpoints.LoadCheckpoint(ctx, EntityProcessorType)
	require.NoError(t, err)
	assert.Nil(t, cp)

	assert.Contains(t, out.String(), "Reindexing of segments complete")
	assert.Contains(t, out.String(), "Reindexing of entities complete")
}

func TestReindexer_EmptyDatabase(t *testing.T) {
	ctx := context.Background()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	embedder := &mock.MockEmbedder{Dimension: 8}
	idx, err := index.NewMemory(8)
	require.NoError(t, err)

	var out bytes.Buffer
	r := NewReindexer(repos.Documents, repos.Entities, repos.Checkpoints, embedder, idx, testConfig(), &out)
	require.NoError(t, r.Run(ctx))

	assert.Contains(t, out.String(), "No segments to reindex")
	assert.Contains(t, out.String(), "No entities to reindex")
}

func TestReindexer_ResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	doc, err := repos.Documents.AddDocument(ctx, &core.Document{SourceId: "long.md", Version: 1})
	require.NoError(t, err)

	segments := make([]*core.Segment, 6)
	for i := range segments {
		segments[i] = &core.Segment{
			DocumentId: doc.Id,
			Content:    fmt.Sprintf("section %d", i),
			Kind:       core.SegmentKindParagraph,
			Position:   i,
		}
	}
	_, err = repos.Documents.AddSegments(ctx, segments...)
	require.NoError(t, err)

	idx, err := index.NewMemory(8)
	require.NoError(t, err)

	// First run: embedding starts failing after the first batch succeeds.
	batches := 0
	failing := &mock.MockEmbedder{Dimension: 8}
	failing.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		batches++
		if batches > 1 {
			return nil, assert.AnError
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			v, _ := (&mock.MockEmbedder{Dimension: 8}).EmbedText(ctx, texts[i])
			vectors[i] = v
		}
		return vectors, nil
	}

	var out bytes.Buffer
	r := NewReindexer(repos.Documents, repos.Entities, repos.Checkpoints, failing, idx, testConfig(), &out)
	err = r.Run(ctx)
	require.Error(t, err)

	// The first batch's progress survived.
	cp, err := repos.Checkpoints.LoadCheckpoint(ctx, SegmentProcessorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(2), cp.ProcessedCount)

	// Second run with a healthy embedder resumes after the checkpoint.
	healthy := &mock.MockEmbedder{Dimension: 8}
	var out2 bytes.Buffer
	r2 := NewReindexer(repos.Documents, repos.Entities, repos.Checkpoints, healthy, idx, testConfig(), &out2)
	require.NoError(t, r2.Run(ctx))

	assert.Contains(t, out2.String(), "Resuming segments after 2 already processed")
	assert.Contains(t, out2.String(), "Reindexing 4 segments")

	cp, err = repos.Checkpoints.LoadCheckpoint(ctx, SegmentProcessorType)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestSegmentBatchProcessor_EmbeddingCountMismatch(t *testing.T) {
	ctx := context.Background()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	doc, err := repos.Documents.AddDocument(ctx, &core.Document{SourceId: "m.md", Version: 1})
	require.NoError(t, err)
	segments, err := repos.Documents.AddSegments(ctx, &core.Segment{
		DocumentId: doc.Id, Content: "only one", Kind: core.SegmentKindParagraph,
	})
	require.NoError(t, err)

	embedder := &mock.MockEmbedder{Dimension: 8}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, nil // wrong count
	}
	idx, err := index.NewMemory(8)
	require.NoError(t, err)

	bp := NewSegmentBatchProcessor(repos.Documents, embedder, idx, 1, time.Millisecond)
	err = bp.Process(ctx, segments)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding count mismatch")
}
