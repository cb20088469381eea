package gnosis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/gnosis/ai/mock"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.DocumentRepository())
		assert.NotNil(t, db.EntityRepository())
		assert.NotNil(t, db.RelationRepository())
		assert.NotNil(t, db.JobRepository())
		assert.NotNil(t, db.CheckpointRepository())
		assert.NotNil(t, db.Index())
		assert.NotNil(t, db.Graph())
		assert.Equal(t, DefaultIndexDimension, db.Index().Dimension())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("custom index dimension", func(t *testing.T) {
		db, err := NewMemoryDatabase(WithProvider(mock.NewMockProvider()), WithIndexDimension(384))
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, 384, db.Index().Dimension())
	})
}

func TestDatabase_Close(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, db)

	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewMemoryDatabase(WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	t.Run("can create pipeline", func(t *testing.T) {
		coordinator, err := db.NewPipeline()
		require.NoError(t, err)
		require.NotNil(t, coordinator)
		coordinator.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})

	t.Run("can create reindexer", func(t *testing.T) {
		reindexer := db.NewReindexer(nil, os.Stderr)
		require.NotNil(t, reindexer)
	})
}

func TestDatabase_RebuildOnOpen(t *testing.T) {
	ctx := context.Background()
	tmpDir := filepath.Join(t.TempDir(), "rebuild_db")

	embedder := &mock.MockEmbedder{Dimension: 8}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockEntityExtractor(), mock.NewMockRelationExtractor())

	db, err := NewDatabase(tmpDir, WithProvider(provider), WithIndexDimension(8))
	require.NoError(t, err)

	doc, err := db.DocumentRepository().AddDocument(ctx, &core.Document{SourceId: "persist.md", Version: 1})
	require.NoError(t, err)

	segments := make([]*core.Segment, 2)
	for i := range segments {
		content := fmt.Sprintf("stored paragraph %d", i)
		vector, err := embedder.EmbedText(ctx, content)
		require.NoError(t, err)
		segments[i] = &core.Segment{
			DocumentId: doc.Id,
			Content:    content,
			Kind:       core.SegmentKindParagraph,
			Position:   i,
			Vector:     vector,
		}
	}
	_, err = db.DocumentRepository().AddSegments(ctx, segments...)
	require.NoError(t, err)

	entity := &core.Entity{Name: "persistence", Type: core.EntityTypeConcept, Confidence: 0.9}
	entity.Vector, err = embedder.EmbedText(ctx, entity.Name)
	require.NoError(t, err)
	require.NoError(t, db.EntityRepository().Put(ctx, entity))

	other := &core.Entity{Name: "durability", Type: core.EntityTypeConcept, Confidence: 0.9}
	require.NoError(t, db.EntityRepository().Put(ctx, other))

	relation := &core.Relation{SourceId: entity.Id, TargetId: other.Id, Type: core.RelationTypeRelatesTo, Confidence: 0.8}
	require.NoError(t, db.RelationRepository().Put(ctx, relation))

	require.NoError(t, db.Close())

	// Reopen: the index and graph come back from storage, and the index
	// adopts the stored vectors' width over the configured default.
	reopened, err := NewDatabase(tmpDir, WithProvider(mock.NewMockProviderWithServices(
		&mock.MockEmbedder{Dimension: 8}, mock.NewMockEntityExtractor(), mock.NewMockRelationExtractor())))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 8, reopened.Index().Dimension())
	assert.Equal(t, 2, reopened.Graph().NodeCount())
	assert.Equal(t, 1, reopened.Graph().EdgeCount())

	vector, err := (&mock.MockEmbedder{Dimension: 8}).EmbedText(ctx, "persistence")
	require.NoError(t, err)
	hits, err := reopened.Index().Query(ctx, vector, 10, nil)
	require.NoError(t, err)
	// 2 segments + 1 entity carried vectors; the unembedded entity is absent.
	assert.Len(t, hits, 3)
	assert.Equal(t, index.KindEntity, hits[0].Kind)
	assert.Equal(t, entity.Id, hits[0].Id)
}

func TestDatabase_Ingest(t *testing.T) {
	ctx := context.Background()
	db, err := NewMemoryDatabase(WithProvider(mock.NewMockProvider()), WithIndexDimension(384))
	require.NoError(t, err)
	defer db.Close()

	doc, jobID, err := db.Ingest(ctx, &core.Document{
		SourceId: "paper.md",
		Title:    "A Paper",
		Text:     "Semantic indexing turns documents into queryable knowledge.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	assert.Equal(t, 1, doc.Version)

	job, err := db.JobRepository().GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, doc.Id, job.DocumentId)

	// A second ingest of the same source becomes the next version.
	doc2, _, err := db.Ingest(ctx, &core.Document{
		SourceId: "paper.md",
		Title:    "A Paper, revised",
		Text:     "Semantic indexing turns documents into queryable knowledge graphs.",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, doc2.Version)
	assert.Equal(t, doc.Id, doc2.SupersedesId)
}
