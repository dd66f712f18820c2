package store

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateMemoryAndGetMemoryRoundTrip(t *testing.T) {
	st := newTestStore(t)

	m := &Memory{
		ProjectPath: "proj",
		Category:    CategoryDecision,
		Content:     "use sqlite for the durable store",
		Rationale:   "single-file deployment",
		Tags:        []string{"storage", "sqlite"},
	}
	id, err := st.CreateMemory(m)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := st.GetMemory(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "use sqlite for the durable store", got.Content)
	assert.Equal(t, []string{"storage", "sqlite"}, got.Tags)
	assert.False(t, got.Archived)

	n, err := st.VersionCount(id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListNonArchivedExcludesArchivedMemories(t *testing.T) {
	st := newTestStore(t)

	id1, err := st.CreateMemory(&Memory{ProjectPath: "proj", Category: CategoryPattern, Content: "keep this"})
	require.NoError(t, err)
	id2, err := st.CreateMemory(&Memory{ProjectPath: "proj", Category: CategoryPattern, Content: "archive this"})
	require.NoError(t, err)
	require.NoError(t, st.SetArchived(id2, true))

	list, err := st.ListNonArchived("proj")
	require.NoError(t, err)
	ids := make([]int64, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	assert.Contains(t, ids, id1)
	assert.NotContains(t, ids, id2)
}

func TestUpdateContentAndSealOutcomeAppendVersions(t *testing.T) {
	st := newTestStore(t)

	id, err := st.CreateMemory(&Memory{ProjectPath: "proj", Category: CategoryDecision, Content: "v1"})
	require.NoError(t, err)

	require.NoError(t, st.UpdateContent(id, "v2", "because", nil, []string{"x"}, "edit"))
	require.NoError(t, st.SealOutcome(id, "worked great", WorkedTrue))

	n, err := st.VersionCount(id)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := st.GetMemory(id)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, WorkedTrue, got.Worked)
	assert.Equal(t, "worked great", got.Outcome)
}

func TestSearchFTSFindsMatchingContent(t *testing.T) {
	st := newTestStore(t)

	id, err := st.CreateMemory(&Memory{ProjectPath: "proj", Category: CategoryLearning, Content: "retry with exponential backoff on 429s"})
	require.NoError(t, err)
	_, err = st.CreateMemory(&Memory{ProjectPath: "proj", Category: CategoryLearning, Content: "completely unrelated deployment notes"})
	require.NoError(t, err)

	ids, err := st.SearchFTS("proj", "backoff", 10)
	require.NoError(t, err)
	assert.Contains(t, ids, id)
}

func TestSearchFTSOnBlankQueryReturnsNothing(t *testing.T) {
	st := newTestStore(t)
	ids, err := st.SearchFTS("proj", "   ", 10)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestSessionLifecycle(t *testing.T) {
	st := newTestStore(t)

	created, err := st.CreateSession("sess-1", "proj")
	require.NoError(t, err)
	assert.False(t, created.Briefed)

	require.NoError(t, st.MarkBriefed("sess-1"))
	got, err := st.GetSession("sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Briefed)
}

func TestGetSessionMissingReturnsNilNotError(t *testing.T) {
	st := newTestStore(t)
	got, err := st.GetSession("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleCRUD(t *testing.T) {
	st := newTestStore(t)

	r := &Rule{
		Trigger:  "database migration",
		MustDo:   []string{"back up first"},
		MustNot:  []string{"drop columns without a review"},
		Priority: 5,
		Enabled:  true,
	}
	id, err := st.CreateRule(r)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, id, r.ID)

	got, err := st.GetRule(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"back up first"}, got.MustDo)

	got.Priority = 9
	require.NoError(t, st.UpdateRule(got))
	got, err = st.GetRule(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.Priority)

	require.NoError(t, st.DeleteRule(id))
	got, err = st.GetRule(id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProjectLinkCRUD(t *testing.T) {
	st := newTestStore(t)

	id, err := st.AddLink("proj-a", "proj-b", LinkUpstream, "shared library")
	require.NoError(t, err)
	assert.NotZero(t, id)

	links, err := st.ListLinks("proj-a")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "proj-b", links[0].LinkedPath)
	assert.Equal(t, LinkUpstream, links[0].Relationship)

	removed, err := st.RemoveLink("proj-a", "proj-b")
	require.NoError(t, err)
	assert.True(t, removed)

	links, err = st.ListLinks("proj-a")
	require.NoError(t, err)
	assert.Empty(t, links)
}

// TestReplaceCommunitiesPersistsLevel1ParentLinks exercises the two-pass
// insert/patch ReplaceCommunities uses to wire a level-0 community's
// ParentID (an index into the submitted slice) to its level-1 parent's
// real database id.
func TestReplaceCommunitiesPersistsLevel1ParentLinks(t *testing.T) {
	st := newTestStore(t)

	parentIdx := int64(2)
	submitted := []*MemoryCommunity{
		{ProjectPath: "proj", Name: "caching", MemberCount: 2, MemberIDs: []int64{1, 2}, Level: 0, ParentID: &parentIdx},
		{ProjectPath: "proj", Name: "deploy", MemberCount: 2, MemberIDs: []int64{3, 4}, Level: 0, ParentID: &parentIdx},
		{ProjectPath: "proj", Name: "caching", MemberCount: 4, MemberIDs: []int64{1, 2, 3, 4}, Level: 1},
	}
	require.NoError(t, st.ReplaceCommunities("proj", submitted))

	got, err := st.ListCommunities("proj")
	require.NoError(t, err)
	require.Len(t, got, 3)

	byLevel := map[int][]*MemoryCommunity{}
	for _, c := range got {
		byLevel[c.Level] = append(byLevel[c.Level], c)
	}
	require.Len(t, byLevel[1], 1)
	parent := byLevel[1][0]
	require.Len(t, byLevel[0], 2)
	for _, child := range byLevel[0] {
		require.NotNil(t, child.ParentID)
		assert.Equal(t, parent.ID, *child.ParentID)
	}

	if diff := cmp.Diff([]int64{1, 2, 3, 4}, parent.MemberIDs, cmpopts.SortSlices(func(a, b int64) bool { return a < b })); diff != "" {
		t.Errorf("parent member ids mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceCommunitiesClearsPriorRowsForProject(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.ReplaceCommunities("proj", []*MemoryCommunity{
		{ProjectPath: "proj", Name: "old", MemberCount: 1, MemberIDs: []int64{1}},
	}))
	require.NoError(t, st.ReplaceCommunities("proj", nil))

	got, err := st.ListCommunities("proj")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatsCountsRowsAcrossTables(t *testing.T) {
	st := newTestStore(t)
	_, err := st.CreateMemory(&Memory{ProjectPath: "proj", Category: CategoryDecision, Content: "x"})
	require.NoError(t, err)

	stats, err := st.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["memories"])
}
