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


package gnosis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/gnosis/ai"
	"github.com/poiesic/gnosis/ai/openai"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/graph"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/pipeline"
	"github.com/poiesic/gnosis/reindex"
	"github.com/poiesic/gnosis/search"
	"github.com/poiesic/gnosis/storage"
	"github.com/poiesic/gnosis/storage/badger"
)

// DefaultIndexDimension is the embedding width assumed for an empty database.
// A database holding vectors adopts their width instead on open.
const DefaultIndexDimension = 768

// Database bundles the storage backend, AI provider, embedding index, and
// knowledge graph behind one handle. The index and graph are in-memory and
// rebuilt from storage when the database is opened.
type Database struct {
	repos    *badger.Repositories
	provider ai.Provider
	index    index.Index
	graph    *graph.Store
	logger   *slog.Logger

	mu          sync.Mutex
	coordinator *pipeline.Coordinator
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig  *ai.Config
	provider  ai.Provider
	dimension int
}

// WithAIConfig sets the configuration used to construct the AI provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider supplies a pre-built AI provider, bypassing the configured
// OpenAI-compatible one.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithIndexDimension sets the embedding dimension used when the database holds
// no vectors yet. It must match the embedding model's output width.
func WithIndexDimension(dimension int) DatabaseOption {
	return func(o *databaseOptions) {
		o.dimension = dimension
	}
}

// NewDatabase opens (or creates) a database at the given path.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	repos, err := badger.NewRepositories(filePath)
	if err != nil {
		return nil, err
	}
	return newDatabase(repos, opts...)
}

// NewMemoryDatabase creates a database backed by in-memory storage.
func NewMemoryDatabase(opts ...DatabaseOption) (*Database, error) {
	repos, err := badger.NewMemoryRepositories()
	if err != nil {
		return nil, err
	}
	return newDatabase(repos, opts...)
}

func newDatabase(repos *badger.Repositories, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig:  ai.DefaultConfig(),
		dimension: DefaultIndexDimension,
	}
	for _, opt := range opts {
		opt(options)
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	db := &Database{
		repos:    repos,
		provider: provider,
		logger:   slog.Default().With("component", "database"),
	}

	if err := db.rebuild(context.Background(), options.dimension); err != nil {
		db.provider.Close()
		repos.Close()
		return nil, err
	}

	return db, nil
}

var errStopIteration = errors.New("stop iteration")

// rebuild reconstructs the in-memory embedding index and knowledge graph from
// persistent storage. Vectors whose width disagrees with the index are skipped
// with a warning; a reindex run brings them back.
func (db *Database) rebuild(ctx context.Context, fallbackDimension int) error {
	dimension := 0

	sniff := func(vector []float32) error {
		if len(vector) > 0 {
			dimension = len(vector)
			return errStopIteration
		}
		return nil
	}
	err := db.repos.Documents.IterateSegments(ctx, 0, func(seg *core.Segment) error {
		return sniff(seg.Vector)
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return err
	}
	if dimension == 0 {
		err = db.repos.Entities.IterateEntities(ctx, 0, func(entity *core.Entity) error {
			return sniff(entity.Vector)
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			return err
		}
	}
	if dimension == 0 {
		dimension = fallbackDimension
	}

	idx, err := index.NewMemory(dimension)
	if err != nil {
		return err
	}
	g, err := graph.New()
	if err != nil {
		return err
	}

	err = db.repos.Documents.IterateSegments(ctx, 0, func(seg *core.Segment) error {
		if len(seg.Vector) == 0 {
			return nil
		}
		err := idx.Upsert(ctx, index.KindSegment, seg.Id, seg.Vector, segmentIndexMetadata(seg))
		if errors.Is(err, index.ErrDimensionMismatch) {
			db.logger.Warn("skipping segment with stale vector width", "segment", seg.Id)
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	err = db.repos.Entities.IterateEntities(ctx, 0, func(entity *core.Entity) error {
		g.UpsertNode(entity)
		if len(entity.Vector) == 0 {
			return nil
		}
		err := idx.Upsert(ctx, index.KindEntity, entity.Id, entity.Vector, entityIndexMetadata(entity))
		if errors.Is(err, index.ErrDimensionMismatch) {
			db.logger.Warn("skipping entity with stale vector width", "entity", entity.Id)
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	err = db.repos.Relations.IterateRelations(ctx, func(relation *core.Relation) error {
		if err := g.UpsertEdge(relation); err != nil {
			db.logger.Warn("skipping relation with missing endpoint", "relation", relation.Id, "err", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.index = idx
	db.graph = g
	return nil
}

// Close releases the AI provider, the pipeline coordinator if one was created,
// and the storage backend.
func (db *Database) Close() error {
	db.mu.Lock()
	if db.coordinator != nil {
		db.coordinator.Release()
		db.coordinator = nil
	}
	db.mu.Unlock()

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.repos.Close(); err != nil {
		db.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

func (db *Database) DocumentRepository() storage.DocumentRepository {
	return db.repos.Documents
}

func (db *Database) EntityRepository() storage.EntityRepository {
	return db.repos.Entities
}

func (db *Database) RelationRepository() storage.RelationRepository {
	return db.repos.Relations
}

func (db *Database) JobRepository() storage.JobRepository {
	return db.repos.Jobs
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.repos.Checkpoints
}

func (db *Database) Index() index.Index {
	return db.index
}

func (db *Database) Graph() *graph.Store {
	return db.graph
}

func (db *Database) Provider() ai.Provider {
	return db.provider
}

// NewPipeline creates a processing pipeline coordinator wired to this
// database. The caller owns it and must Release it.
func (db *Database) NewPipeline(opts ...pipeline.Option) (*pipeline.Coordinator, error) {
	return pipeline.NewCoordinator(pipeline.Deps{
		Documents: db.repos.Documents,
		Entities:  db.repos.Entities,
		Relations: db.repos.Relations,
		Jobs:      db.repos.Jobs,
		Provider:  db.provider,
		Index:     db.index,
		Graph:     db.graph,
	}, opts...)
}

// NewSearcher creates a searcher wired to this database.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.repos.Documents, db.repos.Entities, db.provider, db.index, db.graph, opts...)
}

// NewReindexer creates a reindexer wired to this database.
// progress: where to write progress output (typically os.Stderr)
func (db *Database) NewReindexer(config *reindex.Config, progress io.Writer) *reindex.Reindexer {
	return reindex.NewReindexer(db.repos.Documents, db.repos.Entities, db.repos.Checkpoints,
		db.provider.Embedder(), db.index, config, progress)
}

// Ingest stores a document and queues it for asynchronous processing,
// returning the stored document and the job id. When the document's Version is
// zero it becomes the next version of its source.
func (db *Database) Ingest(ctx context.Context, document *core.Document) (*core.Document, string, error) {
	if document.Version == 0 {
		document.Version = 1
		latest, err := db.repos.Documents.GetDocumentBySource(ctx, document.SourceId)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, "", err
		}
		if latest != nil {
			document.Version = latest.Version + 1
		}
	}

	document, err := db.repos.Documents.AddDocument(ctx, document)
	if err != nil {
		return nil, "", err
	}

	jobID, err := db.Preprocess(ctx, document.Id)
	if err != nil {
		return nil, "", err
	}
	return document, jobID, nil
}

// Preprocess queues processing of a stored document on the database's shared
// pipeline and returns the job id for polling.
func (db *Database) Preprocess(ctx context.Context, documentID core.ID) (string, error) {
	coordinator, err := db.sharedPipeline()
	if err != nil {
		return "", err
	}
	return coordinator.Preprocess(ctx, documentID)
}

func (db *Database) sharedPipeline() (*pipeline.Coordinator, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.coordinator == nil {
		coordinator, err := db.NewPipeline()
		if err != nil {
			return nil, err
		}
		db.coordinator = coordinator
	}
	return db.coordinator, nil
}

func segmentIndexMetadata(seg *core.Segment) map[string]string {
	return map[string]string{
		"document_id": seg.DocumentId.String(),
		"kind":        string(seg.Kind),
	}
}

func entityIndexMetadata(entity *core.Entity) map[string]string {
	return map[string]string{
		"type": string(entity.Type),
	}
}
