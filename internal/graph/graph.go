// Package graph implements the relationship graph over memories: linking,
// breadth-first trace, and hydrated subgraph extraction with Mermaid output.
package graph

import (
	"fmt"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// Graph wraps a Store with the graph-level operations of spec §4.H.
type Graph struct {
	store *store.Store
}

// New builds a Graph over an already-open Store.
func New(st *store.Store) *Graph {
	return &Graph{store: st}
}

// Link validates and inserts a directed edge between two memories.
func (g *Graph) Link(sourceID, targetID int64, rel store.RelationshipType, description string, confidence float64) (store.LinkStatus, error) {
	status, err := g.store.LinkMemories(sourceID, targetID, rel, description, confidence)
	if err == nil {
		logging.Memory("linked %d -> %d (%s): %s", sourceID, targetID, rel, status)
	}
	return status, err
}

// UnlinkResult is the tagged outcome of Unlink, per spec §4.H.
type UnlinkResult string

const (
	UnlinkResultUnlinked UnlinkResult = "unlinked"
	UnlinkResultNotFound UnlinkResult = "not_found"
)

// Unlink removes an edge by its (source, target, relationship) key.
func (g *Graph) Unlink(sourceID, targetID int64, rel store.RelationshipType) (UnlinkResult, error) {
	removed, err := g.store.UnlinkMemories(sourceID, targetID, rel)
	if err != nil {
		return "", fmt.Errorf("graph: unlink: %w", err)
	}
	if removed {
		return UnlinkResultUnlinked, nil
	}
	return UnlinkResultNotFound, nil
}
