package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"memoryengine/internal/store"
)

// TestMain checks that Recall's fire-and-forget recall-count bump
// goroutine (recall.go) doesn't outlive the test process.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, nil, nil, "proj", Options{})
}

func TestRememberRejectsInvalidCategory(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Remember(context.Background(), RememberInput{
		Category: "bogus",
		Content:  "something",
	})
	assert.Error(t, err)
}

func TestRememberAndRecallRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	res, err := m.Remember(ctx, RememberInput{
		Category:  store.CategoryDecision,
		Content:   "use sqlite for the durable store",
		Rationale: "single-file deployment, good FTS support",
		Tags:      []string{"storage"},
	})
	require.NoError(t, err)
	assert.Equal(t, ScopeLocal, res.Scope)
	assert.NotZero(t, res.Memory.ID)

	recall, err := m.Recall(ctx, RecallInput{Topic: "sqlite durable store", Limit: 5})
	require.NoError(t, err)
	if assert.Equal(t, 1, recall.Found) {
		assert.Equal(t, res.Memory.ID, recall.Decisions[0].ID)
	}
}

func TestRecallWithZeroLimitReturnsNothing(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Remember(ctx, RememberInput{
		Category: store.CategoryDecision,
		Content:  "use sqlite for the durable store",
	})
	require.NoError(t, err)

	recall, err := m.Recall(ctx, RecallInput{Topic: "sqlite durable store", Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, recall.Found)
	assert.Empty(t, recall.Decisions)
	assert.Empty(t, recall.Patterns)
	assert.Empty(t, recall.Warnings)
	assert.Empty(t, recall.Learnings)
}

func TestRecallCondensedTruncatesContent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	_, err := m.Remember(ctx, RememberInput{
		Category: store.CategoryLearning,
		Content:  "keyword " + long,
	})
	require.NoError(t, err)

	recall, err := m.Recall(ctx, RecallInput{Topic: "keyword", Limit: 5, Condensed: true})
	require.NoError(t, err)
	if assert.NotEmpty(t, recall.Learnings) {
		assert.LessOrEqual(t, len(recall.Learnings[0].Content), condensedContentLimit+3)
		assert.Empty(t, recall.Learnings[0].Rationale)
	}
}

func TestRecallAlwaysIncludesWarnings(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Remember(ctx, RememberInput{
		Category: store.CategoryWarning,
		Content:  "rate limiting breaks under burst traffic",
	})
	require.NoError(t, err)

	recall, err := m.Recall(ctx, RecallInput{
		Topic:      "rate limiting burst traffic",
		Categories: []store.MemoryCategory{store.CategoryDecision},
		Limit:      5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, recall.Warnings)
}

func TestSealOutcomeRecordsWorkedFalse(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	res, err := m.Remember(ctx, RememberInput{
		Category: store.CategoryPattern,
		Content:  "retry with exponential backoff",
	})
	require.NoError(t, err)

	mem, err := m.SealOutcome(res.Memory.ID, "caused thundering herd", false)
	require.NoError(t, err)
	assert.Equal(t, store.WorkedFalse, mem.Worked)
	assert.Equal(t, "caused thundering herd", mem.Outcome)
}

func TestDetectConflictsFlagsSimilarFailedMemory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Remember(ctx, RememberInput{
		Category: store.CategoryDecision,
		Content:  "cache database query results in redis for five minutes",
	})
	require.NoError(t, err)
	_, err = m.SealOutcome(first.Memory.ID, "redis eviction caused stale reads", false)
	require.NoError(t, err)

	second, err := m.Remember(ctx, RememberInput{
		Category: store.CategoryDecision,
		Content:  "cache database query results in redis for five minutes",
	})
	require.NoError(t, err)
	found := false
	for _, c := range second.Conflicts {
		if c.MemoryID == first.Memory.ID {
			found = true
			assert.Equal(t, ConflictSimilarFailed, c.Kind)
		}
	}
	assert.True(t, found, "expected a similar_failed conflict against the first memory")
}

func TestClassifyScopeLocalWhenFilePathPresent(t *testing.T) {
	m := newTestManager(t)
	scope := m.classifyScope(RememberInput{
		Content:  "always prefer immutable structs",
		FilePath: "internal/store/store.go",
	})
	assert.Equal(t, ScopeLocal, scope)
}

func TestClassifyScopeGlobalOnUniversalPhrase(t *testing.T) {
	m := newTestManager(t)
	scope := m.classifyScope(RememberInput{
		Content: "always prefer immutable structs in go",
	})
	assert.Equal(t, ScopeGlobal, scope)
}

func TestClassifyScopeLocalOnProjectAnchor(t *testing.T) {
	m := newTestManager(t)
	scope := m.classifyScope(RememberInput{
		Content: "always do this in this repo because of PR #42",
	})
	assert.Equal(t, ScopeLocal, scope)
}

func TestCompactDryRunReportsCandidatesWithoutMutating(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Remember(ctx, RememberInput{Category: store.CategoryLearning, Content: "first thing we learned about retries"})
	require.NoError(t, err)
	_, err = m.Remember(ctx, RememberInput{Category: store.CategoryLearning, Content: "second thing we learned about retries"})
	require.NoError(t, err)

	result, err := m.Compact(CompactionInput{
		Summary: "retries need jitter and a cap on attempts to avoid pile-ups",
		DryRun:  true,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "dry_run", result.Status)
	assert.Equal(t, 2, result.WouldCompact)
}

func TestCompactArchivesCandidatesAndCreatesSummary(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Remember(ctx, RememberInput{Category: store.CategoryLearning, Content: "first thing we learned about retries"})
	require.NoError(t, err)

	result, err := m.Compact(CompactionInput{
		Summary: "retries need jitter and a cap on attempts to avoid pile-ups",
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "compacted", result.Status)
	assert.NotZero(t, result.SummaryID)
	assert.Contains(t, result.ArchivedIDs, first.Memory.ID)

	mem, err := m.store.GetMemory(first.Memory.ID)
	require.NoError(t, err)
	assert.True(t, mem.Archived)
}

func TestCompactRejectsShortSummary(t *testing.T) {
	m := newTestManager(t)
	result, err := m.Compact(CompactionInput{Summary: "too short"})
	require.NoError(t, err)
	assert.Equal(t, "error", result.Status)
}

func TestDecisionStatsCountsOutcomes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	res, err := m.Remember(ctx, RememberInput{Category: store.CategoryDecision, Content: "adopt feature flags for rollout"})
	require.NoError(t, err)
	_, err = m.SealOutcome(res.Memory.ID, "rollout went smoothly", true)
	require.NoError(t, err)

	stats, err := m.DecisionStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalMemories)
	assert.Equal(t, 1, stats.Worked)
	assert.Equal(t, 1, stats.ByCategory["decision"])
}

func TestDecayWeightPinnedBypassesDecay(t *testing.T) {
	mem := &store.Memory{Pinned: true, UpdatedAt: time.Now().Add(-365 * 24 * time.Hour)}
	assert.Equal(t, 1.0, decayWeight(mem))
}

func TestDecayWeightPermanentFloorsAtOne(t *testing.T) {
	mem := &store.Memory{IsPermanent: true, UpdatedAt: time.Now().Add(-365 * 24 * time.Hour)}
	assert.Equal(t, 1.0, decayWeight(mem))
}

func TestDecayWeightDecaysOverTime(t *testing.T) {
	mem := &store.Memory{UpdatedAt: time.Now().Add(-30 * 24 * time.Hour)}
	w := decayWeight(mem)
	assert.InDelta(t, 0.5, w, 0.01)
}
