package graph

import (
	"context"
	"fmt"
	"sort"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
	"memoryengine/internal/tfidf"
)

const communityEdgeThreshold = 0.3

const defaultMinClusterSize = 2

// BuildCommunities implements EXPANSION C item 3: cluster a project's
// memories into connected components of mutual TF-IDF similarity,
// persist them as level-0 MemoryCommunity rows, then merge level-0
// communities that share a dominant tag into a level-1 parent, replacing
// whatever was stored before. Clusters smaller than minClusterSize (or
// the default of 2 when minClusterSize <= 0) are dropped, matching the
// spec's "cluster" framing rather than a forced full partition.
func (g *Graph) BuildCommunities(ctx context.Context, projectPath string, minClusterSize int) (int, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "BuildCommunities")
	defer timer.Stop()

	if minClusterSize <= 0 {
		minClusterSize = defaultMinClusterSize
	}

	memories, err := g.store.ListNonArchived(projectPath)
	if err != nil {
		return 0, fmt.Errorf("graph: list memories for communities: %w", err)
	}
	if len(memories) < minClusterSize {
		if err := g.store.ReplaceCommunities(projectPath, nil); err != nil {
			return 0, err
		}
		return 0, nil
	}

	index := tfidf.New()
	byID := make(map[int64]*store.Memory, len(memories))
	for _, m := range memories {
		index.AddDocument(m.ID, m.Content+" "+m.Rationale, m.Tags)
		byID[m.ID] = m
	}

	var edges [][2]int64
	for i := 0; i < len(memories); i++ {
		for j := i + 1; j < len(memories); j++ {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
			sim := index.DocumentSimilarity(memories[i].ID, memories[j].ID)
			if sim >= communityEdgeThreshold {
				edges = append(edges, [2]int64{memories[i].ID, memories[j].ID})
			}
		}
	}

	groups, err := connectedComponents(edges)
	if err != nil {
		return 0, fmt.Errorf("graph: cluster communities: %w", err)
	}

	communities := make([]*store.MemoryCommunity, 0, len(groups))
	for _, members := range groups {
		if len(members) < minClusterSize {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		communities = append(communities, &store.MemoryCommunity{
			ProjectPath: projectPath,
			Name:        dominantTagName(members, byID),
			Summary:     fmt.Sprintf("%d related memories", len(members)),
			Tags:        dominantTags(members, byID),
			MemberCount: len(members),
			MemberIDs:   members,
			Level:       0,
		})
	}

	communities = append(communities, mergeIntoLevel1(projectPath, communities)...)

	if err := g.store.ReplaceCommunities(projectPath, communities); err != nil {
		return 0, fmt.Errorf("graph: replace communities: %w", err)
	}
	logging.Memory("rebuilt %d communities for %s from %d memories", len(communities), projectPath, len(memories))
	return len(communities), nil
}

// mergeIntoLevel1 groups level-0 communities that share a dominant tag
// into a level-1 parent, per EXPANSION C item 3's "hierarchical
// clustering by dominant tag co-occurrence". It mutates each merged
// level-0 entry's ParentID to point at its new parent's eventual index
// in the combined slice, and returns the new level-1 entries to append.
func mergeIntoLevel1(projectPath string, level0 []*store.MemoryCommunity) []*store.MemoryCommunity {
	byTag := make(map[string][]int)
	for i, c := range level0 {
		if c.Name == "" || c.Name == "untagged cluster" {
			continue
		}
		byTag[c.Name] = append(byTag[c.Name], i)
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var level1 []*store.MemoryCommunity
	nextIndex := len(level0)
	for _, tag := range tags {
		members := byTag[tag]
		if len(members) < 2 {
			continue
		}
		parentIdx := int64(nextIndex)
		var allMemberIDs []int64
		tagSet := make(map[string]bool)
		for _, idx := range members {
			level0[idx].ParentID = &parentIdx
			allMemberIDs = append(allMemberIDs, level0[idx].MemberIDs...)
			for _, t := range level0[idx].Tags {
				tagSet[t] = true
			}
		}
		sort.Slice(allMemberIDs, func(i, j int) bool { return allMemberIDs[i] < allMemberIDs[j] })
		mergedTags := make([]string, 0, len(tagSet))
		for t := range tagSet {
			mergedTags = append(mergedTags, t)
		}
		sort.Strings(mergedTags)

		level1 = append(level1, &store.MemoryCommunity{
			ProjectPath: projectPath,
			Name:        tag,
			Summary:     fmt.Sprintf("%d clusters sharing %q", len(members), tag),
			Tags:        mergedTags,
			MemberCount: len(allMemberIDs),
			MemberIDs:   allMemberIDs,
			Level:       1,
		})
		nextIndex++
	}
	return level1
}

func dominantTagName(members []int64, byID map[int64]*store.Memory) string {
	counts := make(map[string]int)
	for _, id := range members {
		for _, tag := range byID[id].Tags {
			counts[tag]++
		}
	}
	best := ""
	bestCount := 0
	for tag, count := range counts {
		if count > bestCount || (count == bestCount && tag < best) {
			best, bestCount = tag, count
		}
	}
	if best == "" {
		return "untagged cluster"
	}
	return best
}

func dominantTags(members []int64, byID map[int64]*store.Memory) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range members {
		for _, tag := range byID[id].Tags {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	sort.Strings(out)
	return out
}
