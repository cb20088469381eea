package storage

import (
	"context"

	"github.com/poiesic/gnosis/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for documents and their segments.
type DocumentRepository interface {
	Repository

	// AddDocument stores a new document. Documents are immutable; ingesting a
	// newer version of the same source creates a new document whose
	// SupersedesId links to the prior version.
	AddDocument(ctx context.Context, document *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocumentBySource retrieves the latest version of the document with
	// the given source identifier.
	// Returns ErrNotFound if no version exists.
	GetDocumentBySource(ctx context.Context, sourceID string) (*core.Document, error)

	// ListDocuments returns all stored documents.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// AddSegments stores segments for a document.
	// Sets InsertedAt timestamps if not already set.
	AddSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error)

	// UpdateSegments updates existing segments (typically their vectors).
	// Returns ErrNotFound if any segment doesn't exist.
	UpdateSegments(ctx context.Context, segments ...*core.Segment) ([]*core.Segment, error)

	// GetSegment retrieves a single segment by ID.
	// Returns ErrNotFound if the segment doesn't exist.
	GetSegment(ctx context.Context, id core.ID) (*core.Segment, error)

	// GetSegmentsByDocument returns a document's segments ordered by position.
	GetSegmentsByDocument(ctx context.Context, documentID core.ID) ([]*core.Segment, error)

	// IterateSegments calls fn for every stored segment in ascending id order,
	// starting after the given id (pass 0 to start from the beginning).
	// Iteration stops at the first error from fn.
	IterateSegments(ctx context.Context, after core.ID, fn func(*core.Segment) error) error
}

// EntityRepository provides operations for canonical entities. The Put,
// GetByName and ListByType methods satisfy the resolver's store contract.
type EntityRepository interface {
	Repository

	// Put stores or replaces an entity and maintains the normalized-name
	// index over its canonical name and aliases.
	Put(ctx context.Context, entity *core.Entity) error

	// GetEntity retrieves a single entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id core.ID) (*core.Entity, error)

	// GetEntities retrieves multiple entities by their IDs.
	// Returns only the entities that exist (no error for missing entities).
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// GetByName finds the entity of the given type whose canonical name or
	// alias normalizes to the given key.
	// Returns ErrNotFound if no entity matches.
	GetByName(ctx context.Context, normalized string, typ core.EntityType) (*core.Entity, error)

	// ListByType returns all entities of the given type.
	ListByType(ctx context.Context, typ core.EntityType) ([]*core.Entity, error)

	// DeleteEntities removes entities by their IDs, including index entries.
	// Returns ErrNotFound if any entity doesn't exist.
	DeleteEntities(ctx context.Context, ids ...core.ID) error

	// IterateEntities calls fn for every stored entity in ascending id order,
	// starting after the given id (pass 0 to start from the beginning).
	IterateEntities(ctx context.Context, after core.ID, fn func(*core.Entity) error) error
}

// RelationRepository provides operations for canonical relations. The Get and
// Put methods satisfy the resolver's store contract.
type RelationRepository interface {
	Repository

	// Put stores or replaces a relation and maintains the endpoint index.
	Put(ctx context.Context, relation *core.Relation) error

	// Get retrieves a single relation by ID.
	// Returns ErrNotFound if the relation doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.Relation, error)

	// GetByEntity returns all relations with the entity as source or target.
	GetByEntity(ctx context.Context, entityID core.ID) ([]*core.Relation, error)

	// DeleteRelations removes relations by their IDs, including index entries.
	// Returns ErrNotFound if any relation doesn't exist.
	DeleteRelations(ctx context.Context, ids ...core.ID) error

	// IterateRelations calls fn for every stored relation in ascending id order.
	IterateRelations(ctx context.Context, fn func(*core.Relation) error) error
}

// JobRepository provides operations for pipeline jobs.
type JobRepository interface {
	Repository

	// PutJob stores or replaces a job record.
	PutJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by its UUID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// ListJobsByDocument returns all jobs recorded for a document.
	ListJobsByDocument(ctx context.Context, documentID core.ID) ([]*core.Job, error)
}

// CheckpointRepository persists batch-processor progress markers.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}
