package graph

import (
	"fmt"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// Direction selects which edges TraceChain follows from the seed memory.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionBoth     Direction = "both"
)

const defaultTraceMaxDepth = 5

// ChainNode is one memory visited during a trace, annotated with how deep it
// was found and the edge label that reached it (empty for the seed itself).
type ChainNode struct {
	Memory       *store.Memory
	Depth        int
	Relationship store.RelationshipType
}

// TraceChain performs the breadth-first traversal of spec §4.H: forward
// follows outgoing edges, backward follows incoming, both follows the union.
// A visited-set prevents revisits and respects maxDepth (default 5).
// relTypes, if non-empty, restricts which relationship labels are followed.
func (g *Graph) TraceChain(memoryID int64, direction Direction, relTypes []store.RelationshipType, maxDepth int) ([]ChainNode, error) {
	if maxDepth <= 0 {
		maxDepth = defaultTraceMaxDepth
	}
	seed, err := g.store.GetMemory(memoryID)
	if err != nil {
		return nil, fmt.Errorf("graph: trace seed: %w", err)
	}
	if seed == nil {
		return nil, fmt.Errorf("graph: no such memory %d", memoryID)
	}

	allowed := make(map[store.RelationshipType]bool, len(relTypes))
	for _, r := range relTypes {
		allowed[r] = true
	}

	visited := map[int64]bool{memoryID: true}
	result := []ChainNode{{Memory: seed, Depth: 0}}

	type queued struct {
		id    int64
		depth int
	}
	queue := []queued{{id: memoryID, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		edges, err := g.edgesFrom(cur.id, direction)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if len(allowed) > 0 && !allowed[e.Relationship] {
				continue
			}
			next := e.TargetID
			if visited[next] {
				continue
			}
			visited[next] = true

			mem, err := g.store.GetMemory(next)
			if err != nil || mem == nil {
				logging.MemoryWarn("trace chain: could not hydrate memory %d: %v", next, err)
				continue
			}
			result = append(result, ChainNode{Memory: mem, Depth: cur.depth + 1, Relationship: e.Relationship})
			queue = append(queue, queued{id: next, depth: cur.depth + 1})
		}
	}

	return result, nil
}

// edgesFrom fetches the outgoing, incoming, or union of edges touching id,
// oriented so TargetID always names the neighbor discovered by the edge.
func (g *Graph) edgesFrom(id int64, direction Direction) ([]store.MemoryRelationship, error) {
	switch direction {
	case DirectionForward:
		return g.store.QueryRelationships(id, "outgoing")
	case DirectionBackward:
		edges, err := g.store.QueryRelationships(id, "incoming")
		if err != nil {
			return nil, err
		}
		return flipped(edges), nil
	default:
		out, err := g.store.QueryRelationships(id, "outgoing")
		if err != nil {
			return nil, err
		}
		in, err := g.store.QueryRelationships(id, "incoming")
		if err != nil {
			return nil, err
		}
		return append(out, flipped(in)...), nil
	}
}

// flipped swaps source/target so TargetID always points at the neighbor
// reached by the edge, regardless of which direction it was stored in.
func flipped(edges []store.MemoryRelationship) []store.MemoryRelationship {
	out := make([]store.MemoryRelationship, len(edges))
	for i, e := range edges {
		out[i] = e
		out[i].SourceID, out[i].TargetID = e.TargetID, e.SourceID
	}
	return out
}
