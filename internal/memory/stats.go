package memory

import (
	"sort"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// DecisionStats returns a read-only analytics view over the project's
// memories: category distribution, outcome-tracking rate, and top tags,
// per EXPANSION C item 2.
func (m *Manager) DecisionStats() (*DecisionStatsResult, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "DecisionStats")
	defer timer.Stop()

	memories, err := m.store.ListNonArchived(m.projectPath)
	if err != nil {
		return nil, err
	}

	result := &DecisionStatsResult{ByCategory: make(map[string]int)}
	tagCounts := make(map[string]int)

	for _, mem := range memories {
		result.TotalMemories++
		result.ByCategory[string(mem.Category)]++
		switch mem.Worked {
		case store.WorkedTrue:
			result.Worked++
		case store.WorkedFalse:
			result.Failed++
		default:
			result.Pending++
		}
		for _, tag := range mem.Tags {
			tagCounts[tag]++
		}
	}

	if result.TotalMemories > 0 {
		tracked := result.Worked + result.Failed
		result.OutcomeTrackedPct = float64(tracked) / float64(result.TotalMemories) * 100
	}

	for tag, count := range tagCounts {
		result.TopTags = append(result.TopTags, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(result.TopTags, func(i, j int) bool {
		if result.TopTags[i].Count != result.TopTags[j].Count {
			return result.TopTags[i].Count > result.TopTags[j].Count
		}
		return result.TopTags[i].Tag < result.TopTags[j].Tag
	})
	if len(result.TopTags) > 10 {
		result.TopTags = result.TopTags[:10]
	}

	return result, nil
}
