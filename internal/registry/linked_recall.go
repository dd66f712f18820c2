package registry

import (
	"context"

	"memoryengine/internal/config"
	"memoryengine/internal/logging"
	"memoryengine/internal/memory"
)

// RecallWithLinks runs pc's own Recall, then merges in a Recall from every
// project pc.Store.ListLinks names (EXPANSION C item 5), using the same
// content-similarity dedup as the implicit global-store merge. A linked
// project that fails to open or recall is skipped with a warning rather
// than failing the whole call.
func (r *Registry) RecallWithLinks(ctx context.Context, pc *ProjectContext, cfg *config.Config, in memory.RecallInput) (*memory.RecallResult, error) {
	result, err := pc.Memory.Recall(ctx, in)
	if err != nil {
		return nil, err
	}

	links, err := pc.Store.ListLinks(pc.ProjectPath)
	if err != nil {
		logging.MemoryWarn("registry: list links for %s: %v", pc.ProjectPath, err)
		return result, nil
	}

	for _, link := range links {
		linkedPC, err := r.Get(link.LinkedPath, cfg)
		if err != nil {
			logging.MemoryWarn("registry: open linked project %s: %v", link.LinkedPath, err)
			continue
		}
		linkedIn := in
		linkedIn.ProjectPath = link.LinkedPath
		linkedResult, err := linkedPC.Memory.Recall(ctx, linkedIn)
		if err != nil {
			logging.MemoryWarn("registry: recall from linked project %s: %v", link.LinkedPath, err)
			continue
		}
		memory.MergeFromLinked(result, linkedResult)
	}
	return result, nil
}
