package mock

import (
	"context"
	"strings"

	"github.com/poiesic/gnosis/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	// If nil, uses default simple word extraction.
	ExtractEntitiesFunc func(ctx context.Context, text string) ([]ai.ExtractedEntity, error)

	callCount int
}

// NewMockEntityExtractor creates a mock entity extractor with default behavior.
// Note: Returns concrete type to allow test assertions and behavior injection.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractEntities proposes simple mock entities from text.
// Default behavior: treats capitalized words as entities, up to five per call.
func (m *MockEntityExtractor) ExtractEntities(ctx context.Context, text string) ([]ai.ExtractedEntity, error) {
	m.callCount++

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []ai.ExtractedEntity{}, nil
	}

	entities := make([]ai.ExtractedEntity, 0, 5)
	confidence := 0.9
	for _, word := range words {
		if len(entities) >= 5 {
			break
		}

		word = strings.Trim(word, ".,!?;:\"'()[]{}—–-")
		if word == "" || word[0] < 'A' || word[0] > 'Z' {
			continue
		}

		entityType := "concept"
		if strings.ToUpper(word) == word && len(word) > 1 {
			entityType = "technology"
		}

		entities = append(entities, ai.ExtractedEntity{
			Name:       word,
			Type:       entityType,
			Confidence: confidence,
		})

		// Decrease confidence for each subsequent entity
		if confidence > 0.1 {
			confidence -= 0.1
		}
	}

	return entities, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *MockEntityExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.callCount = 0
	m.ExtractEntitiesFunc = nil
}

// MockRelationExtractor is a test double for ai.RelationExtractor.
// It allows custom behavior injection via function fields.
type MockRelationExtractor struct {
	// ExtractRelationsFunc is called by ExtractRelations if set.
	// If nil, uses default pairwise behavior.
	ExtractRelationsFunc func(ctx context.Context, text string, entities []string) ([]ai.ExtractedRelation, error)

	callCount int
}

// NewMockRelationExtractor creates a mock relation extractor with default behavior.
// Note: Returns concrete type to allow test assertions and behavior injection.
func NewMockRelationExtractor() *MockRelationExtractor {
	return &MockRelationExtractor{}
}

// ExtractRelations proposes simple mock relations between entities.
// Default behavior: links consecutive entities with relates_to.
func (m *MockRelationExtractor) ExtractRelations(ctx context.Context, text string, entities []string) ([]ai.ExtractedRelation, error) {
	m.callCount++

	if m.ExtractRelationsFunc != nil {
		return m.ExtractRelationsFunc(ctx, text, entities)
	}

	if len(entities) < 2 {
		return []ai.ExtractedRelation{}, nil
	}

	relations := make([]ai.ExtractedRelation, 0, len(entities)-1)
	for i := 0; i < len(entities)-1; i++ {
		relations = append(relations, ai.ExtractedRelation{
			Source:     entities[i],
			Target:     entities[i+1],
			Type:       "relates_to",
			Confidence: ai.DefaultConfidence,
		})
	}

	return relations, nil
}

// CallCount returns the number of times ExtractRelations was called.
func (m *MockRelationExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockRelationExtractor) Reset() {
	m.callCount = 0
	m.ExtractRelationsFunc = nil
}
