package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gnosis/ai"
)

func names(entities []ai.ExtractedEntity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Name
	}
	return out
}

func TestEntityExtractor_CapitalizedPhrases(t *testing.T) {
	e := NewEntityExtractor(0)

	entities, err := e.ExtractEntities(context.Background(), "We compare our approach with Latent Dirichlet Allocation on two corpora.")
	require.NoError(t, err)

	assert.Contains(t, names(entities), "Latent Dirichlet Allocation")
}

func TestEntityExtractor_Acronyms(t *testing.T) {
	e := NewEntityExtractor(0)

	entities, err := e.ExtractEntities(context.Background(), "BERT and GPT-2 dominate the leaderboard.")
	require.NoError(t, err)

	got := names(entities)
	assert.Contains(t, got, "BERT")
	assert.Contains(t, got, "GPT-2")

	for _, entity := range entities {
		if entity.Name == "BERT" {
			assert.Equal(t, "technology", entity.Type)
		}
	}
}

func TestEntityExtractor_TypeHints(t *testing.T) {
	e := NewEntityExtractor(0)

	entities, err := e.ExtractEntities(context.Background(), "The Adam algorithm converges quickly on the ImageNet dataset.")
	require.NoError(t, err)

	byName := make(map[string]ai.ExtractedEntity)
	for _, entity := range entities {
		byName[entity.Name] = entity
	}

	require.Contains(t, byName, "Adam")
	assert.Equal(t, "algorithm", byName["Adam"].Type)

	require.Contains(t, byName, "ImageNet")
	assert.Equal(t, "dataset", byName["ImageNet"].Type)
}

func TestEntityExtractor_IgnoresSentenceOpeners(t *testing.T) {
	e := NewEntityExtractor(0)

	entities, err := e.ExtractEntities(context.Background(), "However, the results vary. This remains open.")
	require.NoError(t, err)

	got := names(entities)
	assert.NotContains(t, got, "However")
	assert.NotContains(t, got, "This")
}

func TestEntityExtractor_Deduplicates(t *testing.T) {
	e := NewEntityExtractor(0)

	entities, err := e.ExtractEntities(context.Background(), "Transformers are everywhere. Transformers changed the field.")
	require.NoError(t, err)

	count := 0
	for _, entity := range entities {
		if entity.Name == "Transformers" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEntityExtractor_MinConfidence(t *testing.T) {
	e := NewEntityExtractor(0.99)

	entities, err := e.ExtractEntities(context.Background(), "BERT builds on the Transformer architecture.")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestEntityExtractor_EmptyText(t *testing.T) {
	e := NewEntityExtractor(0)

	entities, err := e.ExtractEntities(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, entities)
}
