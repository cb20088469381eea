// Package graph stores canonical entities and relations as a directed graph
// and answers bounded-depth breadth-first traversal queries.
package graph
