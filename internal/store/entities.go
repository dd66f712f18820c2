package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertEntity inserts an ExtractedEntity or, if (project_path, entity_type,
// name) already exists, increments its mention_count.
func (s *Store) UpsertEntity(projectPath string, entityType EntityType, name, qualifiedName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRow(`SELECT id FROM extracted_entities WHERE project_path = ? AND entity_type = ? AND name = ?`,
		projectPath, string(entityType), name).Scan(&id)
	if err == nil {
		_, err = s.db.Exec(`UPDATE extracted_entities SET mention_count = mention_count + 1, updated_at = ? WHERE id = ?`, now, id)
		return id, err
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("store: lookup entity: %w", err)
	}

	res, err := s.db.Exec(`INSERT INTO extracted_entities
		(project_path, entity_type, name, qualified_name, mention_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`, projectPath, string(entityType), name, qualifiedName, now, now)
	if err != nil {
		return 0, fmt.Errorf("store: insert entity: %w", err)
	}
	return res.LastInsertId()
}

// LinkMemoryEntity inserts a MemoryEntityRef, ignoring the call if the
// triple already exists.
func (s *Store) LinkMemoryEntity(memoryID, entityID int64, rel EntityRefRelationship, context string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO memory_entity_refs (memory_id, entity_id, relationship, context, created_at)
		VALUES (?, ?, ?, ?, ?)`, memoryID, entityID, string(rel), context, time.Now().UTC())
	return err
}

// ListActiveTriggers returns active ContextTrigger rows for a project,
// ordered by priority descending.
func (s *Store) ListActiveTriggers(projectPath string) ([]*ContextTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, project_path, trigger_type, pattern, recall_topic, recall_categories,
		is_active, priority, trigger_count, last_triggered, created_at
		FROM context_triggers WHERE project_path = ? AND is_active = 1 ORDER BY priority DESC`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("store: list triggers: %w", err)
	}
	defer rows.Close()

	var out []*ContextTrigger
	for rows.Next() {
		var t ContextTrigger
		var triggerType, categoriesJSON string
		var lastTriggered sql.NullTime
		if err := rows.Scan(&t.ID, &t.ProjectPath, &triggerType, &t.Pattern, &t.RecallTopic, &categoriesJSON,
			&t.IsActive, &t.Priority, &t.TriggerCount, &lastTriggered, &t.CreatedAt); err != nil {
			continue
		}
		t.TriggerType = TriggerType(triggerType)
		t.RecallCategories = unmarshalStrSlice(categoriesJSON)
		if lastTriggered.Valid {
			t.LastTriggered = &lastTriggered.Time
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// CreateTrigger inserts a new ContextTrigger.
func (s *Store) CreateTrigger(t *ContextTrigger) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO context_triggers
		(project_path, trigger_type, pattern, recall_topic, recall_categories, is_active, priority, trigger_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		t.ProjectPath, string(t.TriggerType), t.Pattern, t.RecallTopic, marshalStrSlice(t.RecallCategories), t.IsActive, t.Priority, now)
	if err != nil {
		return 0, fmt.Errorf("store: create trigger: %w", err)
	}
	return res.LastInsertId()
}

// RecordTriggerFired bumps trigger_count and sets last_triggered=now.
func (s *Store) RecordTriggerFired(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE context_triggers SET trigger_count = trigger_count + 1, last_triggered = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}
