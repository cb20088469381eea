// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - SourceId must not be empty
//   - Text must not be empty
//
// NOT validated (populated by the pipeline):
//   - Id (derived from SourceId and Version when zero)
//   - Metadata, Authors, timestamps
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.SourceId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptySource)
	}

	if doc.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyText)
	}

	return nil
}

// ValidateSegment validates a Segment according to domain rules.
func ValidateSegment(seg *Segment) error {
	if seg == nil {
		return fmt.Errorf("%w: segment is nil", ErrInvalidSegment)
	}

	if seg.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, ErrEmptyText)
	}

	if seg.Position < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSegment, ErrNegativePosition)
	}

	return nil
}

// ValidateEntity validates an Entity according to domain rules.
//
// NOT validated (populated by the pipeline):
//   - Vector (can be empty until the indexing stage runs)
//   - Provenance (empty only for entities created outside the pipeline)
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyName)
	}

	if entity.Confidence < 0 || entity.Confidence > 1 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidEntity, ErrInvalidConfidence, entity.Confidence)
	}

	return nil
}

// ValidateRelation validates a Relation according to domain rules.
func ValidateRelation(rel *Relation) error {
	if rel == nil {
		return fmt.Errorf("%w: relation is nil", ErrInvalidRelation)
	}

	if rel.SourceId == 0 || rel.TargetId == 0 {
		return fmt.Errorf("%w: endpoint IDs must be set", ErrInvalidRelation)
	}

	if rel.SourceId == rel.TargetId {
		return fmt.Errorf("%w: %w", ErrInvalidRelation, ErrSelfRelation)
	}

	if rel.Confidence < 0 || rel.Confidence > 1 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidRelation, ErrInvalidConfidence, rel.Confidence)
	}

	return nil
}
