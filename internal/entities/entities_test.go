package entities

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoryengine/internal/store"
)

func TestExtractFindsFunctionsClassesAndFiles(t *testing.T) {
	found := Extract("Refactored parseConfig() inside ConfigLoader, see internal/config/config.go for details")

	var types []string
	for _, e := range found {
		types = append(types, string(e.Type)+":"+e.Name)
	}
	assert.Contains(t, types, "function:parseConfig")
	assert.Contains(t, types, "class:ConfigLoader")
	assert.Contains(t, types, "file:internal/config/config.go")
}

func TestExtractSkipsStopWordsAndShortNames(t *testing.T) {
	found := Extract("if(x) { return self }")
	for _, e := range found {
		assert.NotEqual(t, "if", e.Name)
		assert.NotEqual(t, "self", e.Name)
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "entities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestIndexMemoryLinksExtractedEntities(t *testing.T) {
	st := newTestStore(t)
	id, err := st.CreateMemory(&store.Memory{ProjectPath: "/tmp/proj", Category: store.CategoryLearning, Content: "fixed retryRequest() in HttpClient"})
	require.NoError(t, err)
	require.NoError(t, IndexMemory(st, id, "/tmp/proj", "fixed retryRequest() in HttpClient", ""))

	var n int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM memory_entity_refs WHERE memory_id = ?`, id).Scan(&n))
	assert.Positive(t, n)
}

func TestMatchTriggersFiresOnGlobAndRegex(t *testing.T) {
	st := newTestStore(t)
	const project = "/tmp/proj"

	_, err := st.CreateTrigger(&store.ContextTrigger{
		ProjectPath: project,
		TriggerType: store.TriggerFilePattern,
		Pattern:     "internal/**/*.go",
		RecallTopic: "go internals",
		IsActive:    true,
		Priority:    5,
	})
	require.NoError(t, err)

	_, err = st.CreateTrigger(&store.ContextTrigger{
		ProjectPath: project,
		TriggerType: store.TriggerTagMatch,
		Pattern:     "^security-.*",
		RecallTopic: "security context",
		IsActive:    true,
	})
	require.NoError(t, err)

	matches, err := MatchTriggers(st, project, MatchContext{
		FilePaths: []string{"internal/store/memories.go"},
		Tags:      []string{"security-review"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestMatchTriggersIgnoresInactiveTriggers(t *testing.T) {
	st := newTestStore(t)
	const project = "/tmp/proj"

	_, err := st.CreateTrigger(&store.ContextTrigger{
		ProjectPath: project,
		TriggerType: store.TriggerFilePattern,
		Pattern:     "*.go",
		RecallTopic: "go files",
		IsActive:    false,
	})
	require.NoError(t, err)

	matches, err := MatchTriggers(st, project, MatchContext{FilePaths: []string{"main.go"}})
	require.NoError(t, err)
	assert.Empty(t, matches)
}
