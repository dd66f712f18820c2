package graph

import (
	"context"
	"fmt"
	"strings"

	"memoryengine/internal/memory"
	"memoryengine/internal/store"
)

// Recaller is the subset of *memory.Manager GetGraph needs to seed a
// topic-driven query; satisfied by *memory.Manager.
type Recaller interface {
	Recall(ctx context.Context, in memory.RecallInput) (*memory.RecallResult, error)
}

// GetGraphInput selects either an explicit node set or a topic to seed
// recall from, per spec §4.H's get-graph operation.
type GetGraphInput struct {
	MemoryIDs []int64
	Topic     string
}

// GraphView is a hydrated node/edge subgraph, ready for rendering.
type GraphView struct {
	Nodes []*store.Memory
	Edges []store.MemoryRelationship
}

// GetGraph resolves the node set (explicit ids, or one hop out from a
// topic's recall hits), hydrates every node, and pulls the edges among them.
// Archived memories are visible here even though recall itself excludes them.
func (g *Graph) GetGraph(ctx context.Context, in GetGraphInput, recaller Recaller) (*GraphView, error) {
	seedIDs := in.MemoryIDs
	if len(seedIDs) == 0 {
		if strings.TrimSpace(in.Topic) == "" {
			return nil, fmt.Errorf("graph: get-graph needs memory_ids or topic")
		}
		if recaller == nil {
			return nil, fmt.Errorf("graph: get-graph by topic needs a recaller")
		}
		res, err := recaller.Recall(ctx, memory.RecallInput{Topic: in.Topic, Limit: 10})
		if err != nil {
			return nil, fmt.Errorf("graph: seed recall: %w", err)
		}
		seedIDs = recallIDs(res)
	}

	nodeSet := make(map[int64]bool, len(seedIDs)*2)
	for _, id := range seedIDs {
		nodeSet[id] = true
	}
	if len(in.MemoryIDs) == 0 {
		for _, id := range seedIDs {
			edges, err := g.store.QueryRelationships(id, "")
			if err != nil {
				return nil, fmt.Errorf("graph: expand %d: %w", id, err)
			}
			for _, e := range edges {
				nodeSet[e.SourceID] = true
				nodeSet[e.TargetID] = true
			}
		}
	}

	ids := make([]int64, 0, len(nodeSet))
	for id := range nodeSet {
		ids = append(ids, id)
	}

	nodes := make([]*store.Memory, 0, len(ids))
	for _, id := range ids {
		mem, err := g.store.GetMemory(id)
		if err != nil {
			return nil, fmt.Errorf("graph: hydrate %d: %w", id, err)
		}
		if mem != nil {
			nodes = append(nodes, mem)
		}
	}

	edges, err := g.store.RelationshipsAmong(ids)
	if err != nil {
		return nil, fmt.Errorf("graph: edges among node set: %w", err)
	}

	return &GraphView{Nodes: nodes, Edges: edges}, nil
}

func recallIDs(res *memory.RecallResult) []int64 {
	var ids []int64
	for _, bucket := range [][]memory.MemoryView{res.Decisions, res.Patterns, res.Warnings, res.Learnings} {
		for _, v := range bucket {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// Mermaid renders the subgraph as a `graph TD` Mermaid diagram: one line per
// node (id and a truncated content label) and one arrow per edge labeled
// with its relationship.
func (v *GraphView) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, n := range v.Nodes {
		label := n.Content
		if len(label) > 40 {
			label = label[:40] + "..."
		}
		label = strings.ReplaceAll(label, `"`, `'`)
		sb.WriteString(fmt.Sprintf("    m%d[\"%s\"]\n", n.ID, label))
	}
	for _, e := range v.Edges {
		sb.WriteString(fmt.Sprintf("    m%d -->|%s| m%d\n", e.SourceID, e.Relationship, e.TargetID))
	}
	return sb.String()
}
