package protocol

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoryengine/internal/store"
)

const testProject = "/tmp/some-project"

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "protocol.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, testProject, []byte("test-secret"))
}

func TestSessionIDIsStableWithinTheHour(t *testing.T) {
	a := SessionID(testProject)
	b := SessionID(testProject)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, SessionID("/tmp/other-project"))
}

func TestCheckBlocksUnbriefedSession(t *testing.T) {
	g := newTestGate(t)
	result, err := g.Check("remember", "store a decision")
	require.NoError(t, err)
	assert.True(t, result.Blocked)
	assert.Equal(t, ViolationInitRequired, result.Violation)
	assert.Equal(t, "get_briefing", result.Remedy.Tool)
}

func TestExemptToolNeverBlocks(t *testing.T) {
	g := newTestGate(t)
	result, err := g.Check("health", "")
	require.NoError(t, err)
	assert.False(t, result.Blocked)
}

func TestInitRequiredToolPassesOnceBriefed(t *testing.T) {
	g := newTestGate(t)
	require.NoError(t, g.MarkBriefed())

	result, err := g.Check("recall", "search for something")
	require.NoError(t, err)
	assert.False(t, result.Blocked)
}

func TestContextCheckRequiredToolBlocksWithoutACheck(t *testing.T) {
	g := newTestGate(t)
	require.NoError(t, g.MarkBriefed())

	result, err := g.Check("remember", "store a new decision")
	require.NoError(t, err)
	assert.True(t, result.Blocked)
	assert.Equal(t, ViolationContextCheckRequired, result.Violation)
	assert.Contains(t, result.Message, "store a new decision")
}

func TestContextCheckToolClearsTheGate(t *testing.T) {
	g := newTestGate(t)
	require.NoError(t, g.MarkBriefed())

	ccResult, err := g.ContextCheck("remember", "authentication middleware")
	require.NoError(t, err)
	assert.NotEmpty(t, ccResult.Token)

	result, err := g.Check("remember", "store a new decision")
	require.NoError(t, err)
	assert.False(t, result.Blocked)
}

func TestIssueAndVerifyTokenRoundTrips(t *testing.T) {
	secret := []byte("a-process-lifetime-secret")
	token, err := IssueToken(secret, "remember", "sess-1", testProject, time.Minute)
	require.NoError(t, err)

	action, sessionID, projectPath, err := VerifyToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "remember", action)
	assert.Equal(t, "sess-1", sessionID)
	assert.Equal(t, testProject, projectPath)
}

func TestVerifyTokenRejectsTamperedSignature(t *testing.T) {
	secret := []byte("a-process-lifetime-secret")
	token, err := IssueToken(secret, "remember", "sess-1", testProject, time.Minute)
	require.NoError(t, err)

	_, _, _, err = VerifyToken([]byte("wrong-secret"), token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyTokenRejectsExpiredToken(t *testing.T) {
	secret := []byte("a-process-lifetime-secret")
	token, err := IssueToken(secret, "remember", "sess-1", testProject, -time.Second)
	require.NoError(t, err)

	_, _, _, err = VerifyToken(secret, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCheckStagedFilesBlocksOldPendingDecisionAndFailedApproach(t *testing.T) {
	g := newTestGate(t)
	g.WithPendingThreshold(0)

	st := g.store
	_, err := st.CreateMemory(&store.Memory{
		ProjectPath: testProject,
		Category:    store.CategoryDecision,
		Content:     "chose to use a queue instead of polling",
	})
	require.NoError(t, err)

	_, err = st.CreateMemory(&store.Memory{
		ProjectPath:      testProject,
		Category:         store.CategoryLearning,
		Content:          "retry loop without backoff caused a thundering herd",
		FilePathRelative: "internal/worker/retry.go",
		Worked:           store.WorkedFalse,
	})
	require.NoError(t, err)

	report, err := g.CheckStagedFiles([]string{"internal/worker/retry.go"})
	require.NoError(t, err)
	assert.False(t, report.CanProceed)
	require.Len(t, report.Blocks, 2)
}

func TestCheckStagedFilesWarnsOnRecentPendingDecision(t *testing.T) {
	g := newTestGate(t)

	_, err := g.store.CreateMemory(&store.Memory{
		ProjectPath: testProject,
		Category:    store.CategoryDecision,
		Content:     "chose to use a queue instead of polling",
	})
	require.NoError(t, err)

	report, err := g.CheckStagedFiles(nil)
	require.NoError(t, err)
	assert.True(t, report.CanProceed)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "PENDING_DECISION_RECENT", report.Warnings[0].Type)
}
