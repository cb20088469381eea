package ai

import "errors"

// DefaultConfidence is assigned to candidates produced by strategies that
// have no notion of confidence.
const DefaultConfidence = 0.5

// ErrExtraction indicates that extraction failed for a single text.
// The failure is recoverable: callers skip the affected segment and continue.
var ErrExtraction = errors.New("extraction failed")

// ExtractedEntity represents an entity proposal identified in text.
// The type label is matched against the closed entity type set downstream;
// unknown labels are preserved as a subtype of the catch-all type.
type ExtractedEntity struct {
	// Name is the surface form of the entity as it appears in the text.
	// Example: "Transformer", "Google Research"
	Name string

	// Type categorizes the entity (e.g., "technology", "organization").
	Type string

	// Description is an optional free-text gloss produced by the strategy.
	Description string

	// Confidence is the strategy's confidence in [0, 1].
	Confidence float64
}

// ExtractedRelation represents a typed, directed relation proposal between
// two entities observed in the same text.
type ExtractedRelation struct {
	// Source and Target are entity names drawn from the set the caller
	// provided to ExtractRelations.
	Source string
	Target string

	// Type categorizes the relation (e.g., "uses", "based_on").
	Type string

	// Description is an optional free-text gloss produced by the strategy.
	Description string

	// Confidence is the strategy's confidence in [0, 1].
	Confidence float64
}
