package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReplaceCommunities deletes every community for a project and inserts the
// supplied set. Rebuilding communities from scratch on each call keeps the
// greedy clustering in the graph package simple; see EXPANSION C item 3.
func (s *Store) ReplaceCommunities(projectPath string, communities []*MemoryCommunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin replace communities: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memory_communities WHERE project_path = ?`, projectPath); err != nil {
		return fmt.Errorf("store: clear communities: %w", err)
	}

	// Communities reference their parent by index into this slice (a
	// level-0 entry's ParentID, when set, names a level-1 entry further
	// along), so every row is inserted with parent_id NULL first and
	// patched in a second pass once every row has a database id.
	now := time.Now().UTC()
	idByIndex := make([]int64, len(communities))
	for i, c := range communities {
		res, err := tx.Exec(`INSERT INTO memory_communities
			(project_path, name, summary, tags, member_count, member_ids, level, parent_id, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
			projectPath, c.Name, c.Summary, marshalStrSlice(c.Tags), c.MemberCount, marshalInt64Slice(c.MemberIDs),
			c.Level, encodeEmbedding(c.Embedding), now)
		if err != nil {
			return fmt.Errorf("store: insert community: %w", err)
		}
		id, _ := res.LastInsertId()
		idByIndex[i] = id
		c.ID = id
	}
	for i, c := range communities {
		if c.ParentID == nil {
			continue
		}
		parentID := idByIndex[*c.ParentID]
		if _, err := tx.Exec(`UPDATE memory_communities SET parent_id = ? WHERE id = ?`, parentID, idByIndex[i]); err != nil {
			return fmt.Errorf("store: set community parent: %w", err)
		}
	}
	return tx.Commit()
}

// ListCommunities returns every stored community for a project.
func (s *Store) ListCommunities(projectPath string) ([]*MemoryCommunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, project_path, name, summary, tags, member_count, member_ids, level, parent_id, embedding, created_at
		FROM memory_communities WHERE project_path = ?`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("store: list communities: %w", err)
	}
	defer rows.Close()

	var out []*MemoryCommunity
	for rows.Next() {
		var c MemoryCommunity
		var tagsJSON, memberIDsJSON string
		var parentID sql.NullInt64
		var embedding []byte
		if err := rows.Scan(&c.ID, &c.ProjectPath, &c.Name, &c.Summary, &tagsJSON, &c.MemberCount, &memberIDsJSON,
			&c.Level, &parentID, &embedding, &c.CreatedAt); err != nil {
			continue
		}
		c.Tags = unmarshalStrSlice(tagsJSON)
		c.MemberIDs = unmarshalInt64Slice(memberIDsJSON)
		if parentID.Valid {
			id := parentID.Int64
			c.ParentID = &id
		}
		c.Embedding = decodeEmbedding(embedding)
		out = append(out, &c)
	}
	return out, rows.Err()
}
