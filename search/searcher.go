package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/gnosis/ai"
	"github.com/poiesic/gnosis/core"
	"github.com/poiesic/gnosis/graph"
	"github.com/poiesic/gnosis/index"
	"github.com/poiesic/gnosis/storage"
)

// verbatimBoost is added when every query word appears in the hit's text.
const verbatimBoost = 0.3

// Filters restricts a search.
type Filters struct {
	// Kinds restricts results to the listed object kinds.
	Kinds []index.Kind

	// EntityTypes restricts results to entities of the listed types.
	// Setting it implies entity-only results.
	EntityTypes []core.EntityType

	// DocumentId restricts segment results to one document.
	DocumentId core.ID

	// ExpandGraph attaches directly related entities to each entity hit.
	ExpandGraph bool
}

// Related is an entity surfaced by graph expansion of a hit.
type Related struct {
	Id   core.ID
	Name string
	Type core.EntityType
}

// Result is one ranked search result.
type Result struct {
	Id      core.ID
	Kind    index.Kind
	Score   float64
	Snippet string
	Related []Related
}

// Searcher answers semantic and graph queries over the indexed knowledge.
type Searcher struct {
	documents storage.DocumentRepository
	entities  storage.EntityRepository
	embedder  ai.Embedder
	index     index.Index
	graph     *graph.Store
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "search")
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	documents storage.DocumentRepository,
	entities storage.EntityRepository,
	provider ai.Provider,
	idx index.Index,
	g *graph.Store,
	opts ...Option,
) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if entities == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if g == nil {
		return nil, ErrGraphRequired
	}

	s := &Searcher{
		documents: documents,
		entities:  entities,
		embedder:  provider.Embedder(),
		index:     idx,
		graph:     g,
		logger:    slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search embeds the query and returns up to k results ranked by relevance.
func (s *Searcher) Search(ctx context.Context, query string, k int, filters *Filters) ([]*Result, error) {
	return s.SearchWithMonitor(ctx, query, k, filters, nil)
}

// SearchWithMonitor is Search with observation hooks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, k int, filters *Filters, monitor SearchMonitor) ([]*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if filters == nil {
		filters = &Filters{}
	}

	monitor.Start(query)

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vector))

	// Entity-type filtering happens after retrieval, so over-fetch to keep
	// the post-filtered set full.
	queryK := k
	if len(filters.EntityTypes) > 0 {
		queryK = k * 4
	}

	hits, err := s.index.Query(ctx, vector, queryK, indexFilter(filters))
	if err != nil {
		s.logger.Error("error querying embedding index", "err", err)
		return nil, err
	}
	monitor.AfterIndexQuery(hits)

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		result, err := s.assemble(ctx, hit, query, filters)
		if err != nil {
			return nil, err
		}
		if result == nil {
			continue
		}
		if filters.ExpandGraph && hit.Kind == index.KindEntity {
			s.expand(result)
			monitor.AfterGraphExpansion(result)
		}
		results = append(results, result)
	}

	// Boosts can reorder, so sort on final scores
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Id < results[j].Id
	})
	if len(results) > k {
		results = results[:k]
	}
	monitor.Finish(results)

	return results, nil
}

// GraphQuery returns the bounded-depth subgraph around an entity.
func (s *Searcher) GraphQuery(ctx context.Context, entityID core.ID, depth int, relationTypes []core.RelationType, undirected bool) (*graph.Subgraph, error) {
	var opts []graph.TraverseOption
	if len(relationTypes) > 0 {
		opts = append(opts, graph.WithRelationTypes(relationTypes...))
	}
	if undirected {
		opts = append(opts, graph.Undirected())
	}
	return s.graph.Traverse(entityID, depth, opts...)
}

// Document returns a document together with its segments in position order.
func (s *Searcher) Document(ctx context.Context, id core.ID) (*core.Document, []*core.Segment, error) {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	segments, err := s.documents.GetSegmentsByDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, segments, nil
}

// assemble builds the result for one hit. Returns nil for hits excluded by
// the entity-type filter or no longer present in storage.
func (s *Searcher) assemble(ctx context.Context, hit index.Hit, query string, filters *Filters) (*Result, error) {
	result := &Result{Id: hit.Id, Kind: hit.Kind, Score: hit.Score}

	switch hit.Kind {
	case index.KindSegment:
		if len(filters.EntityTypes) > 0 {
			return nil, nil
		}
		seg, err := s.documents.GetSegment(ctx, hit.Id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("indexed segment missing from storage", "segment", hit.Id)
				return nil, nil
			}
			return nil, err
		}
		result.Snippet = snippet(seg.Content, 200)
		if containsAllQueryWords(seg.Content, query) {
			result.Score += verbatimBoost
		}

	case index.KindEntity:
		entity, err := s.entities.GetEntity(ctx, hit.Id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("indexed entity missing from storage", "entity", hit.Id)
				return nil, nil
			}
			return nil, err
		}
		if !typeAllowed(entity.Type, filters.EntityTypes) {
			return nil, nil
		}
		result.Snippet = entitySnippet(entity)
		if containsAllQueryWords(entityText(entity), query) {
			result.Score += verbatimBoost
		}
	}

	return result, nil
}

// expand attaches the entity's direct graph neighbors.
func (s *Searcher) expand(result *Result) {
	sub, err := s.graph.Traverse(result.Id, 1)
	if err != nil {
		// The entity may predate the graph rebuild; expansion is best-effort
		s.logger.Debug("graph expansion skipped", "entity", result.Id, "err", err)
		return
	}
	for _, node := range sub.Nodes {
		if node.Id == result.Id {
			continue
		}
		result.Related = append(result.Related, Related{Id: node.Id, Name: node.Name, Type: node.Type})
	}
}

func indexFilter(filters *Filters) *index.Filter {
	f := &index.Filter{Kinds: filters.Kinds}
	if len(filters.EntityTypes) > 0 {
		f.Kinds = []index.Kind{index.KindEntity}
	}
	if filters.DocumentId != 0 {
		f.Kinds = []index.Kind{index.KindSegment}
		f.Metadata = map[string]string{
			"document_id": filters.DocumentId.String(),
		}
	}
	return f
}

func typeAllowed(typ core.EntityType, allowed []core.EntityType) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == typ {
			return true
		}
	}
	return false
}

func entitySnippet(entity *core.Entity) string {
	if entity.Description == "" {
		return entity.Name
	}
	return snippet(entity.Name+": "+entity.Description, 200)
}

// entityText is the searchable surface of an entity for verbatim matching.
func entityText(entity *core.Entity) string {
	parts := append([]string{entity.Name}, entity.Aliases...)
	if entity.Description != "" {
		parts = append(parts, entity.Description)
	}
	return strings.Join(parts, " ")
}
