package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"memoryengine/internal/logging"
)

func marshalJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func unmarshalTags(s string) []string {
	var tags []string
	if s == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(s), &tags)
	return tags
}

func unmarshalContext(s string) map[string]any {
	var m map[string]any
	if s == "" {
		return map[string]any{}
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]any{}
	}
	return m
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	var v []float32
	_ = json.Unmarshal(b, &v)
	return v
}

// CreateMemory inserts a new Memory row and its first MemoryVersion
// (version_number=1, change_type=created) in a single transaction, per
// spec §4.G.2 step 6.
func (s *Store) CreateMemory(m *Memory) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CreateMemory")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin create memory: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(`INSERT INTO memories
		(project_path, category, content, rationale, context, tags, file_path, file_path_relative,
		 keywords, is_permanent, vector_embedding, outcome, worked, pinned, archived, recall_count,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		m.ProjectPath, string(m.Category), m.Content, m.Rationale, marshalJSON(m.Context), marshalTags(m.Tags),
		nullableString(m.FilePath), nullableString(m.FilePathRelative), m.Keywords, m.IsPermanent,
		encodeEmbedding(m.VectorEmbedding), m.Outcome, int(m.Worked), m.Pinned, now, now)
	if err != nil {
		return 0, fmt.Errorf("store: insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: memory id: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO memory_versions
		(memory_id, content, rationale, context, tags, outcome, worked, version_number, change_type, change_description, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		id, m.Content, m.Rationale, marshalJSON(m.Context), marshalTags(m.Tags), m.Outcome, int(m.Worked),
		string(ChangeCreated), "created", now); err != nil {
		return 0, fmt.Errorf("store: insert first version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit create memory: %w", err)
	}
	m.ID = id
	m.CreatedAt, m.UpdatedAt = now, now
	return id, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanMemory(row interface {
	Scan(dest ...any) error
}) (*Memory, error) {
	var m Memory
	var category string
	var filePath, filePathRel sql.NullString
	var ctx, tags string
	var embedding []byte
	var worked int
	var createdAt, updatedAt time.Time

	err := row.Scan(&m.ID, &m.ProjectPath, &category, &m.Content, &m.Rationale, &ctx, &tags,
		&filePath, &filePathRel, &m.Keywords, &m.IsPermanent, &embedding, &m.Outcome, &worked,
		&m.Pinned, &m.Archived, &m.RecallCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.Category = MemoryCategory(category)
	m.Context = unmarshalContext(ctx)
	m.Tags = unmarshalTags(tags)
	m.FilePath = filePath.String
	m.FilePathRelative = filePathRel.String
	m.VectorEmbedding = decodeEmbedding(embedding)
	m.Worked = Worked(worked)
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	return &m, nil
}

const memorySelectCols = `id, project_path, category, content, rationale, context, tags, file_path,
	file_path_relative, keywords, is_permanent, vector_embedding, outcome, worked, pinned, archived,
	recall_count, created_at, updated_at`

// GetMemory loads a memory by id regardless of archived state (explicit id
// lookups bypass the recall-visibility rule, per spec §3's Archived note).
func (s *Store) GetMemory(id int64) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+memorySelectCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListNonArchived returns every non-archived memory for a project, used to
// seed the TF-IDF and vector indices on first use (spec §4.G.1).
func (s *Store) ListNonArchived(projectPath string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT `+memorySelectCols+` FROM memories WHERE project_path = ? AND archived = 0`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("store: list non-archived: %w", err)
	}
	defer rows.Close()
	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListWithEmbeddings returns non-archived memories carrying a vector
// embedding, used to seed the dense vector index.
func (s *Store) ListWithEmbeddings(projectPath string) ([]*Memory, error) {
	all, err := s.ListNonArchived(projectPath)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if len(m.VectorEmbedding) > 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListMissingEmbeddings returns non-archived memories whose vector_embedding
// column is still NULL, for the migration backfill path (spec §4.E).
func (s *Store) ListMissingEmbeddings(projectPath string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT `+memorySelectCols+` FROM memories
		WHERE project_path = ? AND archived = 0 AND vector_embedding IS NULL`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("store: list missing embeddings: %w", err)
	}
	defer rows.Close()
	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetVectorEmbedding writes a freshly-computed embedding back to id's
// vector_embedding column without touching updated_at or bumping a memory
// version: a backfill is bookkeeping, not a content change.
func (s *Store) SetVectorEmbedding(id int64, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE memories SET vector_embedding = ? WHERE id = ?`, encodeEmbedding(embedding), id)
	if err != nil {
		return fmt.Errorf("store: set vector embedding: %w", err)
	}
	return nil
}

// UpdateContent rewrites content/rationale/context/tags and appends a
// content_updated MemoryVersion.
func (s *Store) UpdateContent(id int64, content, rationale string, context map[string]any, tags []string, changeDescription string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin update content: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE memories SET content = ?, rationale = ?, context = ?, tags = ?, updated_at = ? WHERE id = ?`,
		content, rationale, marshalJSON(context), marshalTags(tags), now, id); err != nil {
		return fmt.Errorf("store: update memory content: %w", err)
	}

	version, err := nextVersionNumberTx(tx, id)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO memory_versions
		(memory_id, content, rationale, context, tags, outcome, worked, version_number, change_type, change_description, changed_at)
		SELECT memory_id, ?, ?, ?, ?, outcome, worked, ?, ?, ?, ?
		FROM memory_versions WHERE memory_id = ? ORDER BY version_number DESC LIMIT 1`,
		content, rationale, marshalJSON(context), marshalTags(tags), version, string(ChangeContentUpdated), changeDescription, now, id); err != nil {
		return fmt.Errorf("store: insert content version: %w", err)
	}
	return tx.Commit()
}

// SealOutcome atomically writes outcome+worked and appends an
// outcome_recorded MemoryVersion, per spec §4.G.4.
func (s *Store) SealOutcome(id int64, outcome string, worked Worked) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin seal: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE memories SET outcome = ?, worked = ?, updated_at = ? WHERE id = ?`, outcome, int(worked), now, id); err != nil {
		return fmt.Errorf("store: update outcome: %w", err)
	}

	version, err := nextVersionNumberTx(tx, id)
	if err != nil {
		return err
	}
	var content, rationale, ctx, tags string
	err = tx.QueryRow(`SELECT content, rationale, context, tags FROM memory_versions WHERE memory_id = ? ORDER BY version_number DESC LIMIT 1`, id).
		Scan(&content, &rationale, &ctx, &tags)
	if err != nil {
		return fmt.Errorf("store: load prior version: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO memory_versions
		(memory_id, content, rationale, context, tags, outcome, worked, version_number, change_type, change_description, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?)`,
		id, content, rationale, ctx, tags, outcome, int(worked), version, string(ChangeOutcomeRecorded), now); err != nil {
		return fmt.Errorf("store: insert outcome version: %w", err)
	}
	return tx.Commit()
}

func nextVersionNumberTx(tx *sql.Tx, memoryID int64) (int, error) {
	var max int
	err := tx.QueryRow(`SELECT COALESCE(MAX(version_number), 0) FROM memory_versions WHERE memory_id = ?`, memoryID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("store: next version number: %w", err)
	}
	return max + 1, nil
}

// VersionCount returns the number of MemoryVersion rows for a memory, used
// to check the version-number invariant in tests (spec §8).
func (s *Store) VersionCount(memoryID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_versions WHERE memory_id = ?`, memoryID).Scan(&n)
	return n, err
}

// SetPinned toggles the pinned flag.
func (s *Store) SetPinned(id int64, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE memories SET pinned = ?, updated_at = ? WHERE id = ?`, pinned, time.Now().UTC(), id)
	return err
}

// SetArchived toggles the archived flag.
func (s *Store) SetArchived(id int64, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE memories SET archived = ?, updated_at = ? WHERE id = ?`, archived, time.Now().UTC(), id)
	return err
}

// IncrementRecallCount bumps recall_count by one; callers invoke this
// fire-and-forget per spec §4.G.3 step 10.
func (s *Store) IncrementRecallCount(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE memories SET recall_count = recall_count + 1 WHERE id = ?`, id)
	return err
}

// DeleteMemory removes a memory; foreign keys cascade to versions,
// relationships, entity refs, and code refs.
func (s *Store) DeleteMemory(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	return err
}

// SearchFTS runs a direct FTS5 MATCH query, the fallback path of EXPANSION C
// item 6: recall uses it when the hybrid search returns an error.
func (s *Store) SearchFTS(projectPath, query string, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT m.id FROM memories_fts f
		JOIN memories m ON m.id = f.rowid
		WHERE memories_fts MATCH ? AND m.project_path = ? AND m.archived = 0
		ORDER BY rank LIMIT ?`, query, projectPath, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fts search: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
