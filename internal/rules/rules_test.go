package rules

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoryengine/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st)
}

func TestAddAndCheckMatchesTrigger(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Add(AddRuleInput{
		Trigger:  "deleting a database table",
		MustDo:   []string{"take a backup first"},
		MustNot:  []string{"drop without a backup"},
		Priority: 10,
		Enabled:  true,
	})
	require.NoError(t, err)

	result, err := e.Check("deleting a database table in production", 0)
	require.NoError(t, err)
	require.Len(t, result.MatchedRules, 1)
	assert.True(t, result.HasBlockers)
	assert.Contains(t, result.Message, "STOP")
}

func TestCheckWithNoMatchesHasNoGuidance(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Check("totally unrelated text with no rules", 0)
	require.NoError(t, err)
	assert.Empty(t, result.MatchedRules)
	assert.Equal(t, "Rules matched but no specific guidance", result.Message)
}

func TestCheckPrefersAskFirstOverPlainMustDo(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Add(AddRuleInput{
		Trigger:  "renaming a public api method",
		MustDo:   []string{"update the changelog"},
		AskFirst: []string{"is this a breaking change?"},
		Enabled:  true,
	})
	require.NoError(t, err)

	result, err := e.Check("renaming a public api method signature", 0)
	require.NoError(t, err)
	assert.False(t, result.HasBlockers)
	assert.Contains(t, result.Message, "Consider these questions")
}

func TestDisablingRuleRemovesItFromChecks(t *testing.T) {
	e := newTestEngine(t)
	r, err := e.Add(AddRuleInput{Trigger: "force pushing to main branch", MustNot: []string{"never do this"}, Enabled: true})
	require.NoError(t, err)

	result, err := e.Check("force pushing to main branch", 0)
	require.NoError(t, err)
	require.Len(t, result.MatchedRules, 1)

	r.Enabled = false
	require.NoError(t, e.Update(r))

	result, err = e.Check("force pushing to main branch", 0)
	require.NoError(t, err)
	assert.Empty(t, result.MatchedRules)
}

func TestFindSimilarSurfacesCloseTriggers(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Add(AddRuleInput{Trigger: "modifying the authentication middleware", Enabled: true})
	require.NoError(t, err)

	similar, err := e.FindSimilar("changing the authentication middleware")
	require.NoError(t, err)
	assert.NotEmpty(t, similar)
}

func TestAddWarningAppendsToExistingRule(t *testing.T) {
	e := newTestEngine(t)
	r, err := e.Add(AddRuleInput{Trigger: "editing the migration scripts", Enabled: true})
	require.NoError(t, err)

	require.NoError(t, e.AddWarning(r.ID, "migrations are append-only in this project"))

	result, err := e.Check("editing the migration scripts", 0)
	require.NoError(t, err)
	require.Len(t, result.MatchedRules, 1)
	assert.Contains(t, result.MatchedRules[0].Warnings, "migrations are append-only in this project")
}
