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


package pipeline

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/gnosis/ai"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/graph"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/resolve"
	"github.com/poiesic/gnosis/segment"
	"github.com/poiesic/gnosis/storage"
)

// Deps bundles the collaborators a Coordinator drives.
type Deps struct {
	Documents storage.DocumentRepository
	Entities  storage.EntityRepository
	Relations storage.RelationRepository
	Jobs      storage.JobRepository
	Provider  ai.Provider
	Index     index.Index
	Graph     *graph.Store
}

// Coordinator drives documents through the processing stages: segmentation,
// extraction, resolution and indexing. Each document gets its own Job; jobs
// for different documents run concurrently on a bounded worker pool, while
// stages within one job execute strictly in order.
type Coordinator struct {
	documents storage.DocumentRepository
	entities  storage.EntityRepository
	relations storage.RelationRepository
	jobs      storage.JobRepository

	segmenter         *segment.Segmenter
	entityExtractor   ai.EntityExtractor
	relationExtractor ai.RelationExtractor
	embedder          ai.Embedder
	entityResolver    *resolve.EntityResolver
	relationResolver  *resolve.RelationResolver

	index index.Index
	graph *graph.Store

	pool        *ants.Pool
	parallelism int
	logger      *slog.Logger

	segmenterOpts []segment.Option
	resolverOpts  []resolve.EntityOption
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithPoolSize sets the worker pool size for concurrent document processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Coordinator) error {
		if size < 1 {
			size = 1
		}

		if c.pool != nil {
			c.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithParallelism bounds how many segments of one document are extracted or
// embedded concurrently. Default is runtime.NumCPU(), with a minimum of 1.
func WithParallelism(n int) Option {
	return func(c *Coordinator) error {
		if n < 1 {
			n = 1
		}
		c.parallelism = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "pipeline")
		return nil
	}
}

// WithSegmenterOptions forwards options to the segmenter.
func WithSegmenterOptions(opts ...segment.Option) Option {
	return func(c *Coordinator) error {
		c.segmenterOpts = append(c.segmenterOpts, opts...)
		return nil
	}
}

// WithEntityResolverOptions forwards options to the entity resolver, for
// example to tune the similarity threshold or review band.
func WithEntityResolverOptions(opts ...resolve.EntityOption) Option {
	return func(c *Coordinator) error {
		c.resolverOpts = append(c.resolverOpts, opts...)
		return nil
	}
}

// NewCoordinator creates a pipeline coordinator over the given collaborators.
func NewCoordinator(deps Deps, opts ...Option) (*Coordinator, error) {
	if deps.Documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if deps.Entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if deps.Relations == nil {
		return nil, ErrRelationRepositoryRequired
	}
	if deps.Jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if deps.Provider == nil {
		return nil, ErrProviderRequired
	}
	if deps.Index == nil {
		return nil, ErrIndexRequired
	}
	if deps.Graph == nil {
		return nil, ErrGraphRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		documents:         deps.Documents,
		entities:          deps.Entities,
		relations:         deps.Relations,
		jobs:              deps.Jobs,
		entityExtractor:   deps.Provider.EntityExtractor(),
		relationExtractor: deps.Provider.RelationExtractor(),
		embedder:          deps.Provider.Embedder(),
		index:             deps.Index,
		graph:             deps.Graph,
		pool:              pool,
		parallelism:       max(runtime.NumCPU(), 1),
		logger:            slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}

	segmenter, err := segment.New(c.segmenterOpts...)
	if err != nil {
		c.Release()
		return nil, err
	}
	c.segmenter = segmenter

	entityResolver, err := resolve.NewEntityResolver(deps.Entities, c.resolverOpts...)
	if err != nil {
		c.Release()
		return nil, err
	}
	c.entityResolver = entityResolver

	relationResolver, err := resolve.NewRelationResolver(deps.Relations)
	if err != nil {
		c.Release()
		return nil, err
	}
	c.relationResolver = relationResolver

	return c, nil
}

// Preprocess creates a Job for the document and schedules it on the worker
// pool. Returns the Job id immediately; callers observe progress through the
// job repository. Processing errors are reflected in the Job record.
func (c *Coordinator) Preprocess(ctx context.Context, documentID core.ID) (string, error) {
	job := newJob(documentID)
	if err := c.jobs.PutJob(ctx, job); err != nil {
		return "", err
	}

	err := c.pool.Submit(func() {
		c.run(context.Background(), job)
	})
	if err != nil {
		return "", err
	}
	return job.Id, nil
}

// Run processes the document synchronously and returns its completed Job.
func (c *Coordinator) Run(ctx context.Context, documentID core.ID) (*core.Job, error) {
	job := newJob(documentID)
	if err := c.jobs.PutJob(ctx, job); err != nil {
		return nil, err
	}
	c.run(ctx, job)
	return job, nil
}

// Release releases the worker pool.
// The coordinator should not be used after calling Release.
func (c *Coordinator) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

func newJob(documentID core.ID) *core.Job {
	return &core.Job{
		Id:         uuid.NewString(),
		DocumentId: documentID,
		State:      core.JobStatePending,
		Segmenting: core.StageStatusPending,
		Extracting: core.StageStatusPending,
		Resolving:  core.StageStatusPending,
		Indexing:   core.StageStatusPending,
	}
}
