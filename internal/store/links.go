package store

import (
	"fmt"
	"time"
)

// AddLink inserts a ProjectLink; unique on (source_path, linked_path) per
// spec §3.
func (s *Store) AddLink(sourcePath, linkedPath string, rel ProjectLinkRelationship, label string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO project_links (source_path, linked_path, relationship, label, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_path, linked_path) DO UPDATE SET relationship = excluded.relationship, label = excluded.label`,
		sourcePath, linkedPath, string(rel), label, now)
	if err != nil {
		return 0, fmt.Errorf("store: add link: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		var existing int64
		if qerr := s.db.QueryRow(`SELECT id FROM project_links WHERE source_path = ? AND linked_path = ?`, sourcePath, linkedPath).Scan(&existing); qerr == nil {
			return existing, nil
		}
		return 0, err
	}
	return id, nil
}

// RemoveLink deletes a project link by its endpoints.
func (s *Store) RemoveLink(sourcePath, linkedPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM project_links WHERE source_path = ? AND linked_path = ?`, sourcePath, linkedPath)
	if err != nil {
		return false, fmt.Errorf("store: remove link: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListLinks returns every outbound link from a project.
func (s *Store) ListLinks(sourcePath string) ([]ProjectLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT id, source_path, linked_path, relationship, label, created_at
		FROM project_links WHERE source_path = ?`, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("store: list links: %w", err)
	}
	defer rows.Close()

	var out []ProjectLink
	for rows.Next() {
		var l ProjectLink
		var rel string
		if err := rows.Scan(&l.ID, &l.SourcePath, &l.LinkedPath, &rel, &l.Label, &l.CreatedAt); err != nil {
			continue
		}
		l.Relationship = ProjectLinkRelationship(rel)
		out = append(out, l)
	}
	return out, rows.Err()
}
