package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoryengine/internal/memory"
	"memoryengine/internal/store"
)

func newTestGraph(t *testing.T) (*Graph, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st), st
}

func createTestMemory(t *testing.T, st *store.Store, content string, tags []string) int64 {
	t.Helper()
	id, err := st.CreateMemory(&store.Memory{
		ProjectPath: "proj",
		Category:    store.CategoryLearning,
		Content:     content,
		Tags:        tags,
	})
	require.NoError(t, err)
	return id
}

func TestLinkRejectsSelfLoop(t *testing.T) {
	g, st := newTestGraph(t)
	id := createTestMemory(t, st, "a", nil)
	_, err := g.Link(id, id, store.RelRelatedTo, "", 1.0)
	assert.Error(t, err)
}

func TestLinkAndUnlinkRoundTrip(t *testing.T) {
	g, st := newTestGraph(t)
	a := createTestMemory(t, st, "first", nil)
	b := createTestMemory(t, st, "second", nil)

	status, err := g.Link(a, b, store.RelLedTo, "a led to b", 0.9)
	require.NoError(t, err)
	assert.Equal(t, store.LinkStatusLinked, status)

	status, err = g.Link(a, b, store.RelLedTo, "a led to b", 0.9)
	require.NoError(t, err)
	assert.Equal(t, store.LinkStatusExists, status)

	result, err := g.Unlink(a, b, store.RelLedTo)
	require.NoError(t, err)
	assert.Equal(t, UnlinkResultUnlinked, result)

	result, err = g.Unlink(a, b, store.RelLedTo)
	require.NoError(t, err)
	assert.Equal(t, UnlinkResultNotFound, result)
}

func TestTraceChainRespectsDirectionAndDepth(t *testing.T) {
	g, st := newTestGraph(t)
	a := createTestMemory(t, st, "root", nil)
	b := createTestMemory(t, st, "child", nil)
	c := createTestMemory(t, st, "grandchild", nil)

	_, err := g.Link(a, b, store.RelLedTo, "", 1.0)
	require.NoError(t, err)
	_, err = g.Link(b, c, store.RelLedTo, "", 1.0)
	require.NoError(t, err)

	chain, err := g.TraceChain(a, DirectionForward, nil, 5)
	require.NoError(t, err)
	assert.Len(t, chain, 3)
	assert.Equal(t, a, chain[0].Memory.ID)
	assert.Equal(t, 0, chain[0].Depth)

	shallow, err := g.TraceChain(a, DirectionForward, nil, 1)
	require.NoError(t, err)
	assert.Len(t, shallow, 2)

	backward, err := g.TraceChain(c, DirectionBackward, nil, 5)
	require.NoError(t, err)
	assert.Len(t, backward, 3)
}

func TestTraceChainFiltersByRelationshipType(t *testing.T) {
	g, st := newTestGraph(t)
	a := createTestMemory(t, st, "root", nil)
	b := createTestMemory(t, st, "other", nil)

	_, err := g.Link(a, b, store.RelConflictsWith, "", 1.0)
	require.NoError(t, err)

	chain, err := g.TraceChain(a, DirectionForward, []store.RelationshipType{store.RelLedTo}, 5)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestGetGraphWithExplicitIDsAndMermaid(t *testing.T) {
	g, st := newTestGraph(t)
	a := createTestMemory(t, st, "alpha decision", nil)
	b := createTestMemory(t, st, "beta decision", nil)
	_, err := g.Link(a, b, store.RelRelatedTo, "", 1.0)
	require.NoError(t, err)

	view, err := g.GetGraph(context.Background(), GetGraphInput{MemoryIDs: []int64{a, b}}, nil)
	require.NoError(t, err)
	assert.Len(t, view.Nodes, 2)
	assert.Len(t, view.Edges, 1)

	diagram := view.Mermaid()
	assert.Contains(t, diagram, "graph TD")
	assert.Contains(t, diagram, "related_to")
}

func TestGetGraphByTopicUsesRecaller(t *testing.T) {
	g, st := newTestGraph(t)
	mgr := memory.New(st, nil, nil, "proj", memory.Options{})
	a := createTestMemory(t, st, "caching strategy for database reads", nil)

	view, err := g.GetGraph(context.Background(), GetGraphInput{Topic: "caching database reads"}, mgr)
	require.NoError(t, err)
	found := false
	for _, n := range view.Nodes {
		if n.ID == a {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildCommunitiesClustersSimilarMemories(t *testing.T) {
	g, st := newTestGraph(t)
	createTestMemory(t, st, "use redis for caching database query results", []string{"caching"})
	createTestMemory(t, st, "use redis for caching database query results again", []string{"caching"})
	createTestMemory(t, st, "completely unrelated notes about deployment pipelines", []string{"deploy"})

	n, err := g.BuildCommunities(context.Background(), "proj", 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	communities, err := st.ListCommunities("proj")
	require.NoError(t, err)
	assert.NotEmpty(t, communities)
}

func TestConnectedComponentsGroupsTransitively(t *testing.T) {
	groups, err := connectedComponents([][2]int64{{1, 2}, {2, 3}, {10, 11}})
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	var sizes []int
	for _, g := range groups {
		sizes = append(sizes, len(g))
	}
	assert.Contains(t, sizes, 3)
	assert.Contains(t, sizes, 2)
}
