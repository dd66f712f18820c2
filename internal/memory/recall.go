package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"memoryengine/internal/cache"
	"memoryengine/internal/logging"
	"memoryengine/internal/search"
	"memoryengine/internal/store"
	"memoryengine/internal/vectorindex"
)

const (
	condensedContentLimit = 150
	recallPoolMultiplier  = 3
)

// Recall finds memories relevant to a topic and ranks/buckets them, per
// spec §4.G.3's eleven-step procedure.
func (m *Manager) Recall(ctx context.Context, in RecallInput) (*RecallResult, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "Recall")
	defer timer.Stop()

	if in.Limit < 0 {
		in.Limit = 0
	}
	if in.ProjectPath == "" {
		in.ProjectPath = m.projectPath
	}

	key := cache.NormalizeKey(in.Topic, categoryStrings(in.Categories), in.Limit, in.Condensed, in.Tags, in.FilePath, in.ProjectPath)
	if found, v := m.recallCache.Get(key); found {
		return v.(*RecallResult), nil
	}

	result, err, _ := m.recallGroup.Do(key, func() (interface{}, error) {
		return m.recallUncached(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	res := result.(*RecallResult)
	m.recallCache.Set(key, res)
	return res, nil
}

func (m *Manager) recallUncached(ctx context.Context, in RecallInput) (*RecallResult, error) {
	// limit=0 is a genuine request for nothing: every bucket stays empty,
	// found=0, per spec's boundary behaviors.
	if in.Limit == 0 {
		return &RecallResult{Topic: in.Topic}, nil
	}

	if err := m.ensureFresh(); err != nil {
		return nil, err
	}

	categories := in.Categories
	if len(categories) > 0 && !containsCategory(categories, store.CategoryWarning) {
		categories = append(append([]store.MemoryCategory{}, categories...), store.CategoryWarning)
	}

	pool := in.Limit * recallPoolMultiplier
	var queryVec []float32
	if m.embed != nil {
		embedCtx, cancel := newEmbedContext(ctx)
		v, err := m.embed.Embed(embedCtx, in.Topic)
		cancel()
		if err != nil {
			logging.EmbeddingWarn("recall embed failed, falling back to TF-IDF only: %v", err)
		} else {
			queryVec = v
		}
	}

	filters := vectorindex.Filters{FilePath: in.FilePath, AnyTags: in.Tags}
	for _, c := range categories {
		filters.Categories = append(filters.Categories, string(c))
	}

	hits, err := m.currentSearcher().Search(ctx, in.Topic, queryVec, pool, filters)
	if err != nil {
		logging.MemoryWarn("hybrid search failed, falling back to FTS5: %v", err)
		hits, err = m.searchFTSFallback(in.ProjectPath, in.Topic, pool)
		if err != nil {
			return nil, err
		}
	}

	// Gather every filter-passing hit with its decay-weighted relevance
	// (spec §4.G.3 step 5, re-rank) before applying the diversity cap and
	// per-bucket limit (step 7, truncate) — otherwise a heavily-decayed
	// hit with a high base search score could consume a bucket slot or a
	// diversity slot ahead of a fresher hit that only out-ranks it after
	// decay is applied.
	candidates := map[string][]MemoryView{
		"decisions": {}, "patterns": {}, "warnings": {}, "learnings": {},
	}
	filePathOf := make(map[int64]string)

	for _, hit := range hits {
		mem, err := m.store.GetMemory(hit.ID)
		if err != nil || mem == nil || mem.Archived {
			continue
		}
		if len(categories) > 0 && !containsCategory(categories, mem.Category) {
			continue
		}
		if in.FilePath != "" && mem.FilePath != in.FilePath {
			continue
		}
		if len(in.Tags) > 0 && !hasAnyTag(mem.Tags, in.Tags) {
			continue
		}

		weight := decayWeight(mem)
		view := toView(mem, hit.Score*weight, in.Condensed)
		key := string(mem.Category) + "s"
		candidates[key] = append(candidates[key], view)
		filePathOf[mem.ID] = mem.FilePath
	}

	for k := range candidates {
		sort.SliceStable(candidates[k], func(i, j int) bool { return candidates[k][i].Relevance > candidates[k][j].Relevance })
	}

	buckets := map[string][]MemoryView{
		"decisions": {}, "patterns": {}, "warnings": {}, "learnings": {},
	}
	seenFilePath := make(map[string]int)
	var touched []int64

	for k, views := range candidates {
		for _, view := range views {
			if len(buckets[k]) >= in.Limit {
				break
			}
			if fp := filePathOf[view.ID]; m.diversity > 0 && fp != "" {
				if seenFilePath[fp] >= m.diversity {
					continue
				}
				seenFilePath[fp]++
			}
			buckets[k] = append(buckets[k], view)
			touched = append(touched, view.ID)
		}
	}

	result := &RecallResult{
		Topic:     in.Topic,
		Decisions: buckets["decisions"],
		Patterns:  buckets["patterns"],
		Warnings:  buckets["warnings"],
		Learnings: buckets["learnings"],
	}
	result.Found = len(result.Decisions) + len(result.Patterns) + len(result.Warnings) + len(result.Learnings)

	if m.shouldMergeGlobal(in) {
		globalIn := in
		globalIn.ProjectPath = GlobalProjectPath
		globalResult, err := m.global.Recall(ctx, globalIn)
		if err != nil {
			logging.MemoryWarn("global recall merge failed: %v", err)
		} else {
			mergeGlobal(result, globalResult)
		}
	}

	for _, id := range touched {
		go func(id int64) {
			if err := m.store.IncrementRecallCount(id); err != nil {
				logging.MemoryDebug("recall_count bump failed for %d: %v", id, err)
			}
		}(id)
	}

	return result, nil
}

// searchFTSFallback runs the durable store's FTS5 index directly when the
// in-memory hybrid searcher errors out, per EXPANSION C item 6. Results
// carry a neutral score of 1.0: FTS5's bm25 rank isn't on the same scale
// as the hybrid searcher's combined score, so callers get unranked but
// present results rather than a failed recall.
func (m *Manager) searchFTSFallback(projectPath, topic string, limit int) ([]search.Result, error) {
	ids, err := m.store.SearchFTS(projectPath, topic, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: fts fallback: %w", err)
	}
	hits := make([]search.Result, 0, len(ids))
	for _, id := range ids {
		hits = append(hits, search.Result{ID: id, Score: 1.0})
	}
	return hits, nil
}

func (m *Manager) shouldMergeGlobal(in RecallInput) bool {
	return m.global != nil && m.projectPath != GlobalProjectPath && in.ProjectPath != GlobalProjectPath
}

// decayWeight computes the exponential half-life re-rank weight of spec
// §4.G.3 step 5: pinned memories bypass decay, permanent (semantic)
// memories use a 1.0 floor, everything else decays toward minFloor.
func decayWeight(mem *store.Memory) float64 {
	if mem.Pinned {
		return 1.0
	}
	floor := defaultMinFloor
	if mem.IsPermanent {
		floor = 1.0
	}
	ageDays := time.Since(mem.UpdatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	weight := math.Exp(-math.Ln2 * ageDays / defaultHalfLifeDays)
	if weight < floor {
		weight = floor
	}
	return weight
}

func toView(mem *store.Memory, relevance float64, condensed bool) MemoryView {
	v := MemoryView{
		ID:        mem.ID,
		Category:  string(mem.Category),
		Content:   mem.Content,
		Rationale: mem.Rationale,
		Context:   mem.Context,
		Tags:      mem.Tags,
		FilePath:  mem.FilePath,
		Outcome:   mem.Outcome,
		Worked:    mem.Worked,
		Pinned:    mem.Pinned,
		Relevance: relevance,
		CreatedAt: mem.CreatedAt,
		UpdatedAt: mem.UpdatedAt,
	}
	if condensed {
		v.Rationale = ""
		v.Context = nil
		if len(v.Content) > condensedContentLimit {
			v.Content = v.Content[:condensedContentLimit] + "..."
		}
	}
	return v
}

// MergeFromLinked merges a linked project's recall result into local using
// the same dedup rule as the global-store merge (EXPANSION C item 5:
// cross-project recall over explicit ProjectLinks, not just the implicit
// global store).
func MergeFromLinked(local, linked *RecallResult) {
	mergeGlobal(local, linked)
}

// mergeGlobal appends global's buckets into local, tagging entries
// _from_global and deduping by content Jaccard similarity > 0.6, preferring
// local on ties, per spec §4.G.3 step 9.
func mergeGlobal(local, global *RecallResult) {
	local.Decisions = mergeBucket(local.Decisions, global.Decisions)
	local.Patterns = mergeBucket(local.Patterns, global.Patterns)
	local.Warnings = mergeBucket(local.Warnings, global.Warnings)
	local.Learnings = mergeBucket(local.Learnings, global.Learnings)
	local.Found = len(local.Decisions) + len(local.Patterns) + len(local.Warnings) + len(local.Learnings)
}

func mergeBucket(local, global []MemoryView) []MemoryView {
	out := append([]MemoryView{}, local...)
	for _, g := range global {
		dup := false
		for _, l := range local {
			if jaccard(g.Content, l.Content) > 0.6 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		g.FromGlobal = true
		out = append(out, g)
	}
	return out
}

func jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

func containsCategory(cats []store.MemoryCategory, c store.MemoryCategory) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}

func hasAnyTag(tags, want []string) bool {
	for _, t := range tags {
		for _, w := range want {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func categoryStrings(cats []store.MemoryCategory) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}
