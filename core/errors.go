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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidSegment indicates a Segment failed validation.
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidRelation indicates a Relation failed validation.
	ErrInvalidRelation = errors.New("invalid relation")

	// ErrEmptyText indicates a document has no text content.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyName indicates an entity name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptySource indicates a document has no source identifier.
	ErrEmptySource = errors.New("source identifier cannot be empty")

	// ErrInvalidConfidence indicates a confidence value outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be in [0, 1]")

	// ErrSelfRelation indicates a relation whose source and target are the same entity.
	ErrSelfRelation = errors.New("source and target entities must be different")

	// ErrNegativePosition indicates a segment with a negative position.
	ErrNegativePosition = errors.New("segment position cannot be negative")
)
