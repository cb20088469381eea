package ai

import "github.com/poiesic/gnosis/core"

// SegmentEmbeddingText is the text a segment is embedded from.
func SegmentEmbeddingText(segment *core.Segment) string {
	return segment.Content
}

// EntityEmbeddingText is the text an entity is embedded from: the name alone,
// or "name: description" when a description exists. Pipeline indexing and
// batch reindexing both embed through this so their vectors stay comparable.
func EntityEmbeddingText(entity *core.Entity) string {
	if entity.Description == "" {
		return entity.Name
	}
	return entity.Name + ": " + entity.Description
}
