package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor proposes entity candidates from a segment's text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities analyzes text and proposes entities with their types
	// and confidences. Returns an empty slice if no entities are found.
	// Returns an error wrapping ErrExtraction if extraction fails; the
	// failure is scoped to the given text and callers continue with other
	// segments.
	ExtractEntities(ctx context.Context, text string) ([]ExtractedEntity, error)
}

// RelationExtractor proposes typed relations between entities known to occur
// in the same text. Only pairs drawn from the provided entity names are
// considered. Implementations must be thread-safe for concurrent use.
type RelationExtractor interface {
	// ExtractRelations analyzes text and proposes relations between the
	// named entities. Entity names are canonical names as resolved by the
	// caller. Returns an empty slice if no relations are found.
	ExtractRelations(ctx context.Context, text string, entities []string) ([]ExtractedRelation, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder and extractor instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// EntityExtractor returns the entity extraction service.
	EntityExtractor() EntityExtractor

	// RelationExtractor returns the relation extraction service.
	RelationExtractor() RelationExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
