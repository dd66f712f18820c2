package memory

import (
	"context"
	"fmt"

	"memoryengine/internal/embedding"
	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// BackfillResult tallies a vector-embedding backfill pass, mirroring the
// migrated/skipped/failed/total shape of the original Qdrant migration
// script this is grounded on.
type BackfillResult struct {
	Total    int
	Migrated int
	Skipped  int
	Failed   int
	Errors   []string
}

// BackfillVectorEmbeddings finds every non-archived memory in projectPath
// with a NULL vector_embedding, encodes content+rationale through embed,
// and writes the bytes back (spec §4.E). It is idempotent: a memory already
// carrying an embedding is never touched, so re-running only picks up rows
// created (or migrated onto a schema that added the column) since the last
// pass.
func BackfillVectorEmbeddings(ctx context.Context, st *store.Store, embed embedding.Engine, projectPath string) (*BackfillResult, error) {
	if embed == nil {
		return nil, fmt.Errorf("memory: backfill vector embeddings: no embedding engine configured")
	}

	missing, err := st.ListMissingEmbeddings(projectPath)
	if err != nil {
		return nil, fmt.Errorf("memory: backfill vector embeddings: %w", err)
	}

	result := &BackfillResult{Total: len(missing)}
	for _, mem := range missing {
		text := mem.Content + " " + mem.Rationale
		embedCtx, cancel := newEmbedContext(ctx)
		vec, err := embed.Embed(embedCtx, text)
		cancel()
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("memory %d: %v", mem.ID, err))
			logging.MemoryWarn("backfill embed failed for memory %d: %v", mem.ID, err)
			continue
		}
		if len(vec) == 0 {
			result.Skipped++
			continue
		}
		if err := st.SetVectorEmbedding(mem.ID, vec); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("memory %d: %v", mem.ID, err))
			continue
		}
		result.Migrated++
	}
	logging.Store("vector backfill complete: total=%d migrated=%d skipped=%d failed=%d",
		result.Total, result.Migrated, result.Skipped, result.Failed)
	return result, nil
}
