package storage

import (
	"testing"
	"time"

	"github.com/poiesic/gnosis/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}

	t.Run("empty data", func(t *testing.T) {
		_, err := UnmarshalID([]byte{})
		assert.Error(t, err)
	})
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	original := &core.Document{
		Id:          core.DocumentID("arxiv:2401.00001", 1),
		SourceId:    "arxiv:2401.00001",
		Title:       "Attention Is All You Need",
		Authors:     []string{"Vaswani", "Shazeer"},
		Text:        "Abstract: we propose the Transformer.",
		ContentType: core.ContentTypeText,
		Language:    "en",
		Version:     1,
		Metadata:    map[string]string{"venue": "NeurIPS"},
		InsertedAt:  now,
		UpdatedAt:   now,
	}

	data := MarshalDocument(original)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, original.Id, decoded.Id)
	assert.Equal(t, original.SourceId, decoded.SourceId)
	assert.Equal(t, original.Title, decoded.Title)
	assert.Equal(t, original.Authors, decoded.Authors)
	assert.Equal(t, original.Text, decoded.Text)
	assert.Equal(t, original.ContentType, decoded.ContentType)
	assert.Equal(t, original.Version, decoded.Version)
	assert.Equal(t, original.Metadata, decoded.Metadata)
	assert.True(t, original.InsertedAt.Equal(decoded.InsertedAt))

	t.Run("invalid data", func(t *testing.T) {
		_, err := UnmarshalDocument([]byte{0xFF, 0xFF, 0xFF})
		assert.Error(t, err)
	})
}

func TestMarshalUnmarshalSegment(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	docID := core.DocumentID("doc", 1)
	original := &core.Segment{
		Id:         core.SegmentID(docID, 2),
		DocumentId: docID,
		Content:    "The Transformer relies entirely on attention.",
		Kind:       core.SegmentKindParagraph,
		Position:   2,
		Vector:     []float32{0.1, 0.2, 0.3},
		InsertedAt: now,
	}

	data := MarshalSegment(original)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalSegment(data)
	require.NoError(t, err)
	assert.Equal(t, original.Id, decoded.Id)
	assert.Equal(t, original.DocumentId, decoded.DocumentId)
	assert.Equal(t, original.Content, decoded.Content)
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.Position, decoded.Position)
	assert.Equal(t, original.Vector, decoded.Vector)
}

func TestMarshalUnmarshalEntity(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	original := &core.Entity{
		Id:                    core.EntityID("transformer", core.EntityTypeMethod),
		Name:                  "Transformer",
		Type:                  core.EntityTypeMethod,
		Aliases:               []string{"the Transformer"},
		Description:           "Attention-based sequence model.",
		DescriptionConfidence: 0.91,
		Provenance:            []core.ID{core.ID(10), core.ID(20)},
		Confidence:            0.87,
		NeedsReview:           true,
		InsertedAt:            now,
		UpdatedAt:             now,
	}

	data := MarshalEntity(original)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalEntity(data)
	require.NoError(t, err)
	assert.Equal(t, original.Id, decoded.Id)
	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.Aliases, decoded.Aliases)
	assert.Equal(t, original.Description, decoded.Description)
	assert.Equal(t, original.Provenance, decoded.Provenance)
	assert.InDelta(t, original.Confidence, decoded.Confidence, 1e-9)
	assert.InDelta(t, original.DescriptionConfidence, decoded.DescriptionConfidence, 1e-9)
	assert.True(t, decoded.NeedsReview)
}

func TestMarshalUnmarshalRelation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	source := core.EntityID("transformer", core.EntityTypeMethod)
	target := core.EntityID("attention", core.EntityTypeConcept)
	original := &core.Relation{
		Id:                    core.RelationID(source, target, core.RelationTypeUses),
		SourceId:              source,
		TargetId:              target,
		Type:                  core.RelationTypeUses,
		Description:           "applies attention to its inputs",
		DescriptionConfidence: 0.85,
		Provenance:            []core.ID{core.ID(10)},
		Confidence:            0.9,
		InsertedAt:            now,
		UpdatedAt:             now,
	}

	data := MarshalRelation(original)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalRelation(data)
	require.NoError(t, err)
	assert.Equal(t, original.Id, decoded.Id)
	assert.Equal(t, original.SourceId, decoded.SourceId)
	assert.Equal(t, original.TargetId, decoded.TargetId)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.Provenance, decoded.Provenance)
	assert.Equal(t, original.Description, decoded.Description)
	assert.InDelta(t, original.Confidence, decoded.Confidence, 1e-9)
	assert.InDelta(t, original.DescriptionConfidence, decoded.DescriptionConfidence, 1e-9)
}

func TestMarshalUnmarshalJob(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	original := &core.Job{
		Id:         "550e8400-e29b-41d4-a716-446655440000",
		DocumentId: core.DocumentID("doc", 1),
		State:      core.JobStateFailedPartial,
		Segmenting: core.StageStatusSucceeded,
		Extracting: core.StageStatusSucceeded,
		Resolving:  core.StageStatusFailed,
		Indexing:   core.StageStatusSkipped,
		Errors:     []string{"resolving: storage unavailable"},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	data := MarshalJob(original)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalJob(data)
	require.NoError(t, err)
	assert.Equal(t, original.Id, decoded.Id)
	assert.Equal(t, original.DocumentId, decoded.DocumentId)
	assert.Equal(t, original.State, decoded.State)
	assert.Equal(t, original.Resolving, decoded.Resolving)
	assert.Equal(t, original.Indexing, decoded.Indexing)
	assert.Equal(t, original.Errors, decoded.Errors)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	original := &core.Checkpoint{
		ProcessorType:   "segment-reembed",
		LastProcessedID: core.ID(12345),
		ProcessedCount:  678,
		UpdatedAt:       now,
	}

	data := MarshalCheckpoint(original)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, original.ProcessorType, decoded.ProcessorType)
	assert.Equal(t, original.LastProcessedID, decoded.LastProcessedID)
	assert.Equal(t, original.ProcessedCount, decoded.ProcessedCount)
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))
}
