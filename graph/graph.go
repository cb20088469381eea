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


package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/poiesic/gnosis/core"
)

// ErrInvalidDepth indicates a traversal depth below zero or above the store's
// configured maximum. Fatal for the call only.
var ErrInvalidDepth = errors.New("invalid traversal depth")

// ErrUnknownNode indicates an operation referenced an entity id absent from
// the graph.
var ErrUnknownNode = errors.New("unknown graph node")

// Node is a canonical entity projected into the graph.
type Node struct {
	Id   core.ID
	Name string
	Type core.EntityType
}

// Edge is a canonical relation projected into the graph.
type Edge struct {
	Id       core.ID
	SourceId core.ID
	TargetId core.ID
	Type     core.RelationType
}

// Subgraph is the result of a traversal: the visited nodes and the edges
// walked to reach them, both in deterministic id order.
type Subgraph struct {
	Nodes []Node
	Edges []Edge
}

// Store holds canonical entities as nodes and canonical relations as directed
// edges, and answers bounded-depth breadth-first traversals. All methods are
// safe for concurrent use; node upserts happen-before any edge upsert that
// references them because UpsertEdge rejects unknown endpoints.
type Store struct {
	mu       sync.RWMutex
	maxDepth int
	nodes    map[core.ID]Node
	edges    map[core.ID]Edge
	outgoing map[core.ID][]core.ID // node id -> edge ids
	incoming map[core.ID][]core.ID
}

// Option is a functional option for configuring a Store.
type Option func(*Store) error

// WithMaxDepth sets the largest traversal depth the store accepts.
func WithMaxDepth(depth int) Option {
	return func(s *Store) error {
		if depth < 1 {
			return fmt.Errorf("max depth must be at least 1, got %d", depth)
		}
		s.maxDepth = depth
		return nil
	}
}

// New creates an empty graph store.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		maxDepth: 6,
		nodes:    make(map[core.ID]Node),
		edges:    make(map[core.ID]Edge),
		outgoing: make(map[core.ID][]core.ID),
		incoming: make(map[core.ID][]core.ID),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// UpsertNode stores or replaces the node for the entity.
func (s *Store) UpsertNode(entity *core.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[entity.Id] = Node{
		Id:   entity.Id,
		Name: entity.Name,
		Type: entity.Type,
	}
}

// UpsertEdge stores or replaces the edge for the relation. Both endpoints
// must already be nodes.
func (s *Store) UpsertEdge(relation *core.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[relation.SourceId]; !ok {
		return fmt.Errorf("%w: source %d", ErrUnknownNode, relation.SourceId)
	}
	if _, ok := s.nodes[relation.TargetId]; !ok {
		return fmt.Errorf("%w: target %d", ErrUnknownNode, relation.TargetId)
	}

	if _, exists := s.edges[relation.Id]; !exists {
		s.outgoing[relation.SourceId] = append(s.outgoing[relation.SourceId], relation.Id)
		s.incoming[relation.TargetId] = append(s.incoming[relation.TargetId], relation.Id)
	}
	s.edges[relation.Id] = Edge{
		Id:       relation.Id,
		SourceId: relation.SourceId,
		TargetId: relation.TargetId,
		Type:     relation.Type,
	}
	return nil
}

// NodeCount returns the number of nodes in the graph.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

type traversal struct {
	types      map[core.RelationType]bool
	undirected bool
}

// TraverseOption adjusts a single traversal.
type TraverseOption func(*traversal)

// WithRelationTypes restricts the traversal to edges of the given types.
// No types means all types.
func WithRelationTypes(types ...core.RelationType) TraverseOption {
	return func(t *traversal) {
		if t.types == nil {
			t.types = make(map[core.RelationType]bool, len(types))
		}
		for _, typ := range types {
			t.types[typ] = true
		}
	}
}

// Undirected walks edges in both directions instead of source-to-target only.
func Undirected() TraverseOption {
	return func(t *traversal) {
		t.undirected = true
	}
}

// Traverse walks breadth-first from the start node up to maxDepth hops,
// visiting each node at most once. Depth 0 returns only the start node.
// Returns ErrInvalidDepth for a negative depth or one above the configured
// maximum, and ErrUnknownNode if the start node is absent.
func (s *Store) Traverse(start core.ID, maxDepth int, opts ...TraverseOption) (*Subgraph, error) {
	if maxDepth < 0 || maxDepth > s.maxDepth {
		return nil, fmt.Errorf("%w: %d (maximum %d)", ErrInvalidDepth, maxDepth, s.maxDepth)
	}

	var t traversal
	for _, opt := range opts {
		opt(&t)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[start]; !ok {
		return nil, fmt.Errorf("%w: start %d", ErrUnknownNode, start)
	}

	visited := map[core.ID]bool{start: true}
	collected := make(map[core.ID]bool)
	frontier := []core.ID{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []core.ID
		for _, nodeID := range frontier {
			for _, edgeID := range s.neighbors(nodeID, t.undirected) {
				edge := s.edges[edgeID]
				if t.types != nil && !t.types[edge.Type] {
					continue
				}

				other := edge.TargetId
				if other == nodeID {
					other = edge.SourceId
				}

				collected[edgeID] = true
				if !visited[other] {
					visited[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	result := &Subgraph{
		Nodes: make([]Node, 0, len(visited)),
		Edges: make([]Edge, 0, len(collected)),
	}
	for id := range visited {
		result.Nodes = append(result.Nodes, s.nodes[id])
	}
	for id := range collected {
		result.Edges = append(result.Edges, s.edges[id])
	}
	sort.Slice(result.Nodes, func(i, j int) bool { return result.Nodes[i].Id < result.Nodes[j].Id })
	sort.Slice(result.Edges, func(i, j int) bool { return result.Edges[i].Id < result.Edges[j].Id })
	return result, nil
}

// neighbors returns the edge ids leaving the node, plus those entering it for
// undirected walks. Callers hold at least the read lock.
func (s *Store) neighbors(nodeID core.ID, undirected bool) []core.ID {
	out := s.outgoing[nodeID]
	if !undirected {
		return out
	}
	combined := make([]core.ID, 0, len(out)+len(s.incoming[nodeID]))
	combined = append(combined, out...)
	combined = append(combined, s.incoming[nodeID]...)
	return combined
}
