package store

import (
	"database/sql"
	"fmt"
	"time"

	"memoryengine/internal/logging"
)

// LinkStatus mirrors the tagged result spec §4.H's Link operation returns.
type LinkStatus string

const (
	LinkStatusLinked   LinkStatus = "linked"
	LinkStatusExists   LinkStatus = "already_exists"
	LinkStatusError    LinkStatus = "error"
)

// LinkMemories validates and inserts a directed edge. Self-loops and
// duplicate (source, target, relationship) triples are rejected per the
// invariants in spec §3.
func (s *Store) LinkMemories(sourceID, targetID int64, rel RelationshipType, description string, confidence float64) (LinkStatus, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LinkMemories")
	defer timer.Stop()

	if sourceID == targetID {
		return LinkStatusError, fmt.Errorf("store: self-loop rejected: source == target == %d", sourceID)
	}
	if !ValidRelationship(rel) {
		return LinkStatusError, fmt.Errorf("store: invalid relationship %q", rel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT 1 FROM memories WHERE id IN (?, ?)`, sourceID, targetID).Scan(&exists); err == sql.ErrNoRows {
		return LinkStatusError, fmt.Errorf("store: link to non-existent memory")
	}

	var dupe int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_relationships WHERE source_id = ? AND target_id = ? AND relationship = ?`,
		sourceID, targetID, string(rel)).Scan(&dupe)
	if err != nil {
		return LinkStatusError, fmt.Errorf("store: duplicate check: %w", err)
	}
	if dupe > 0 {
		return LinkStatusExists, nil
	}

	_, err = s.db.Exec(`INSERT INTO memory_relationships (source_id, target_id, relationship, description, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, sourceID, targetID, string(rel), description, confidence, time.Now().UTC())
	if err != nil {
		return LinkStatusError, fmt.Errorf("store: insert relationship: %w", err)
	}
	return LinkStatusLinked, nil
}

// UnlinkMemories deletes an edge by its (source, target, relationship) key.
func (s *Store) UnlinkMemories(sourceID, targetID int64, rel RelationshipType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM memory_relationships WHERE source_id = ? AND target_id = ? AND relationship = ?`,
		sourceID, targetID, string(rel))
	if err != nil {
		return false, fmt.Errorf("store: unlink: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// QueryRelationships retrieves edges touching an entity in the given
// direction (outgoing, incoming, or both). direction=="" means both.
func (s *Store) QueryRelationships(memoryID int64, direction string) ([]MemoryRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryRelationshipsLocked(memoryID, direction)
}

// queryRelationshipsLocked assumes the caller already holds at least RLock;
// callers that themselves hold the lock (e.g. TraceChain) must call this
// instead of QueryRelationships to avoid a nested RLock/writer deadlock.
func (s *Store) queryRelationshipsLocked(memoryID int64, direction string) ([]MemoryRelationship, error) {
	var query string
	var args []any
	switch direction {
	case "outgoing":
		query = `SELECT id, source_id, target_id, relationship, description, confidence, created_at FROM memory_relationships WHERE source_id = ?`
		args = []any{memoryID}
	case "incoming":
		query = `SELECT id, source_id, target_id, relationship, description, confidence, created_at FROM memory_relationships WHERE target_id = ?`
		args = []any{memoryID}
	default:
		query = `SELECT id, source_id, target_id, relationship, description, confidence, created_at FROM memory_relationships WHERE source_id = ? OR target_id = ?`
		args = []any{memoryID, memoryID}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query relationships: %w", err)
	}
	defer rows.Close()

	var out []MemoryRelationship
	for rows.Next() {
		var r MemoryRelationship
		var relStr string
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &relStr, &r.Description, &r.Confidence, &r.CreatedAt); err != nil {
			continue
		}
		r.Relationship = RelationshipType(relStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RelationshipsAmong returns every edge whose endpoints are both in ids,
// used by GetGraph to materialize edges within an explicit node set.
func (s *Store) RelationshipsAmong(ids []int64) ([]MemoryRelationship, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	inClause := string(placeholders)
	args2 := append(append([]any{}, args...), args...)

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, source_id, target_id, relationship, description, confidence, created_at
		 FROM memory_relationships WHERE source_id IN (%s) AND target_id IN (%s)`, inClause, inClause), args2...)
	if err != nil {
		return nil, fmt.Errorf("store: relationships among: %w", err)
	}
	defer rows.Close()

	var out []MemoryRelationship
	for rows.Next() {
		var r MemoryRelationship
		var relStr string
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &relStr, &r.Description, &r.Confidence, &r.CreatedAt); err != nil {
			continue
		}
		r.Relationship = RelationshipType(relStr)
		out = append(out, r)
	}
	return out, rows.Err()
}
