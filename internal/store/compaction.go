package store

import (
	"fmt"
	"time"

	"memoryengine/internal/logging"
)

// CompactMemories implements the atomic half of spec §4.G.7's compaction
// procedure: insert a new learning memory holding the summary, link a
// supersedes edge from it to every candidate, and archive each candidate.
// All in one transaction; any error rolls back the entire operation.
func (s *Store) CompactMemories(projectPath string, summary *Memory, candidateIDs []int64) (int64, []int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CompactMemories")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, nil, fmt.Errorf("store: begin compaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(`INSERT INTO memories
		(project_path, category, content, rationale, context, tags, file_path, file_path_relative,
		 keywords, is_permanent, vector_embedding, outcome, worked, pinned, archived, recall_count,
		 created_at, updated_at)
		VALUES (?, ?, ?, '', '{}', '[]', NULL, NULL, ?, ?, NULL, '', 0, 0, 0, 0, ?, ?)`,
		projectPath, string(CategoryLearning), summary.Content, summary.Keywords, summary.IsPermanent, now, now)
	if err != nil {
		return 0, nil, fmt.Errorf("store: insert compaction summary: %w", err)
	}
	summaryID, err := res.LastInsertId()
	if err != nil {
		return 0, nil, fmt.Errorf("store: summary id: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO memory_versions
		(memory_id, content, rationale, context, tags, outcome, worked, version_number, change_type, change_description, changed_at)
		VALUES (?, ?, '', '{}', '[]', '', 0, 1, ?, 'created', ?)`,
		summaryID, summary.Content, string(ChangeCreated), now); err != nil {
		return 0, nil, fmt.Errorf("store: insert summary version: %w", err)
	}

	for _, id := range candidateIDs {
		if _, err := tx.Exec(`INSERT INTO memory_relationships (source_id, target_id, relationship, description, confidence, created_at)
			VALUES (?, ?, ?, 'compaction', 1.0, ?)`, summaryID, id, string(RelSupersedes), now); err != nil {
			return 0, nil, fmt.Errorf("store: insert supersedes edge for %d: %w", id, err)
		}
		if _, err := tx.Exec(`UPDATE memories SET archived = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return 0, nil, fmt.Errorf("store: archive candidate %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("store: commit compaction: %w", err)
	}
	summary.ID = summaryID
	summary.CreatedAt, summary.UpdatedAt = now, now
	return summaryID, candidateIDs, nil
}
