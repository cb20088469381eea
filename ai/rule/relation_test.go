package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/gnosis/ai"
)

func findRelation(relations []ai.ExtractedRelation, source, target string) (ai.ExtractedRelation, bool) {
	for _, r := range relations {
		if r.Source == source && r.Target == target {
			return r, true
		}
	}
	return ai.ExtractedRelation{}, false
}

func TestRelationExtractor_VerbCues(t *testing.T) {
	e := NewRelationExtractor(0)

	tests := []struct {
		name     string
		text     string
		source   string
		target   string
		expected string
	}{
		{
			name:     "based on",
			text:     "BERT is based on the Transformer.",
			source:   "BERT",
			target:   "Transformer",
			expected: "based_on",
		},
		{
			name:     "uses",
			text:     "AlphaGo uses Monte Carlo tree search.",
			source:   "AlphaGo",
			target:   "Monte Carlo",
			expected: "uses",
		},
		{
			name:     "improves",
			text:     "RoBERTa improves on BERT.",
			source:   "RoBERTa",
			target:   "BERT",
			expected: "improves",
		},
		{
			name:     "evaluated on",
			text:     "ResNet is evaluated on ImageNet.",
			source:   "ResNet",
			target:   "ImageNet",
			expected: "uses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relations, err := e.ExtractRelations(context.Background(), tt.text, []string{tt.source, tt.target})
			require.NoError(t, err)

			rel, ok := findRelation(relations, tt.source, tt.target)
			require.True(t, ok, "expected a relation from %s to %s", tt.source, tt.target)
			assert.Equal(t, tt.expected, rel.Type)
		})
	}
}

func TestRelationExtractor_CooccurrenceFallback(t *testing.T) {
	e := NewRelationExtractor(0)

	relations, err := e.ExtractRelations(context.Background(),
		"Both BERT and ELMo appeared in 2018.",
		[]string{"BERT", "ELMo"})
	require.NoError(t, err)

	rel, ok := findRelation(relations, "BERT", "ELMo")
	require.True(t, ok)
	assert.Equal(t, "relates_to", rel.Type)
	assert.Less(t, rel.Confidence, 0.5)
}

func TestRelationExtractor_NoCrossSentencePairs(t *testing.T) {
	e := NewRelationExtractor(0)

	relations, err := e.ExtractRelations(context.Background(),
		"BERT appeared in 2018. ImageNet is a vision dataset.",
		[]string{"BERT", "ImageNet"})
	require.NoError(t, err)
	assert.Empty(t, relations)
}

func TestRelationExtractor_SingleEntity(t *testing.T) {
	e := NewRelationExtractor(0)

	relations, err := e.ExtractRelations(context.Background(), "BERT is popular.", []string{"BERT"})
	require.NoError(t, err)
	assert.Empty(t, relations)
}

func TestRelationExtractor_MinConfidenceFiltersFallback(t *testing.T) {
	e := NewRelationExtractor(0.5)

	relations, err := e.ExtractRelations(context.Background(),
		"Both BERT and ELMo appeared in 2018.",
		[]string{"BERT", "ELMo"})
	require.NoError(t, err)
	assert.Empty(t, relations)
}
