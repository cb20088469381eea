package search

import (
	"github.com/poiesic/gnosis/index"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimension int)
	AfterIndexQuery(hits []index.Hit)
	AfterGraphExpansion(result *Result)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                 {}
func (n *noopMonitor) AfterEmbedding(_ int)           {}
func (n *noopMonitor) AfterIndexQuery(_ []index.Hit)  {}
func (n *noopMonitor) AfterGraphExpansion(_ *Result)  {}
func (n *noopMonitor) Finish(_ []*Result)             {}
