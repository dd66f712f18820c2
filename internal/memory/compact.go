package memory

import (
	"fmt"
	"strings"
	"time"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
	"memoryengine/internal/tokenize"
)

const defaultCompactionMinLen = 50

// Compact implements spec §4.G.7: select candidate non-archived, non-pinned
// memories, and either report a dry run or atomically replace them with a
// single summarizing learning memory linked by supersedes edges.
func (m *Manager) Compact(in CompactionInput) (*CompactionResult, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "Compact")
	defer timer.Stop()

	minLen := in.MinLen
	if minLen <= 0 {
		minLen = defaultCompactionMinLen
	}
	if len(strings.TrimSpace(in.Summary)) < minLen {
		return &CompactionResult{Status: "error", Error: fmt.Sprintf("summary shorter than minimum length %d", minLen)}, nil
	}
	if in.Limit <= 0 {
		in.Limit = 50
	}

	candidates, err := m.compactionCandidates(in.Topic, in.Limit)
	if err != nil {
		return nil, fmt.Errorf("memory: select compaction candidates: %w", err)
	}
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	if in.DryRun {
		return &CompactionResult{Status: "dry_run", WouldCompact: len(ids), CandidateIDs: ids}, nil
	}

	summary := &store.Memory{
		ProjectPath: m.projectPath,
		Category:    store.CategoryLearning,
		Content:     in.Summary,
		Keywords:    tokenize.Keywords(tokenize.Tokenize(in.Summary, nil)),
		IsPermanent: store.IsPermanentCategory(store.CategoryLearning),
	}

	summaryID, archivedIDs, err := m.store.CompactMemories(m.projectPath, summary, ids)
	if err != nil {
		return &CompactionResult{Status: "error", Error: err.Error()}, nil
	}

	m.mu.Lock()
	m.tf.AddDocument(summaryID, summary.Content, nil)
	for _, id := range archivedIDs {
		m.tf.RemoveDocument(id)
	}
	m.indexBuiltAt = time.Now().UTC()
	m.mu.Unlock()
	m.recallCache.Clear()

	logging.Memory("compacted %d memories into summary %d for %s", len(archivedIDs), summaryID, m.projectPath)
	return &CompactionResult{
		Status:         "compacted",
		SummaryID:      summaryID,
		CompactedCount: len(archivedIDs),
		ArchivedIDs:    archivedIDs,
	}, nil
}

func (m *Manager) compactionCandidates(topic string, limit int) ([]*store.Memory, error) {
	all, err := m.store.ListNonArchived(m.projectPath)
	if err != nil {
		return nil, err
	}
	var filtered []*store.Memory
	for _, mem := range all {
		if mem.Pinned {
			continue
		}
		filtered = append(filtered, mem)
	}

	if strings.TrimSpace(topic) != "" {
		if err := m.ensureFresh(); err != nil {
			return nil, err
		}
		hits := m.tf.Search(topic, limit, 0)
		allowed := make(map[int64]bool, len(hits))
		for _, h := range hits {
			allowed[h.ID] = true
		}
		var topical []*store.Memory
		for _, mem := range filtered {
			if allowed[mem.ID] {
				topical = append(topical, mem)
			}
		}
		filtered = topical
	}

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}
