package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// GetSession loads a SessionState row, or nil if none exists yet.
func (s *Store) GetSession(sessionID string) (*SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st SessionState
	var checksJSON, pendingJSON string
	err := s.db.QueryRow(`SELECT session_id, project_path, briefed, context_checks, pending_decisions, last_activity, created_at
		FROM session_state WHERE session_id = ?`, sessionID).
		Scan(&st.SessionID, &st.ProjectPath, &st.Briefed, &checksJSON, &pendingJSON, &st.LastActivity, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	_ = json.Unmarshal([]byte(checksJSON), &st.ContextChecks)
	_ = json.Unmarshal([]byte(pendingJSON), &st.PendingDecisions)
	return &st, nil
}

// CreateSession inserts a brand-new SessionState row (briefed=false).
func (s *Store) CreateSession(sessionID, projectPath string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`INSERT OR IGNORE INTO session_state
		(session_id, project_path, briefed, context_checks, pending_decisions, last_activity, created_at)
		VALUES (?, ?, 0, '[]', '[]', ?, ?)`, sessionID, projectPath, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return &SessionState{SessionID: sessionID, ProjectPath: projectPath, LastActivity: now, CreatedAt: now}, nil
}

// MarkBriefed sets briefed=true and bumps last_activity.
func (s *Store) MarkBriefed(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE session_state SET briefed = 1, last_activity = ? WHERE session_id = ?`, time.Now().UTC(), sessionID)
	return err
}

// AddContextCheck appends a context check, truncated to the last 20 entries
// (insertion-order monotonic, per spec §8).
func (s *Store) AddContextCheck(sessionID, topic string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var checksJSON string
	err := s.db.QueryRow(`SELECT context_checks FROM session_state WHERE session_id = ?`, sessionID).Scan(&checksJSON)
	if err != nil {
		return fmt.Errorf("store: load context checks: %w", err)
	}
	var checks []ContextCheck
	_ = json.Unmarshal([]byte(checksJSON), &checks)
	checks = append(checks, ContextCheck{Topic: topic, Timestamp: at})
	if len(checks) > 20 {
		checks = checks[len(checks)-20:]
	}
	b, _ := json.Marshal(checks)
	_, err = s.db.Exec(`UPDATE session_state SET context_checks = ?, last_activity = ? WHERE session_id = ?`, string(b), at, sessionID)
	return err
}

// AddPendingDecision appends a memory id to pending_decisions.
func (s *Store) AddPendingDecision(sessionID string, memoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutatePendingLocked(sessionID, func(ids []int64) []int64 {
		return append(ids, memoryID)
	})
}

// RemovePendingDecision removes a memory id from pending_decisions.
func (s *Store) RemovePendingDecision(sessionID string, memoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutatePendingLocked(sessionID, func(ids []int64) []int64 {
		out := ids[:0]
		for _, id := range ids {
			if id != memoryID {
				out = append(out, id)
			}
		}
		return out
	})
}

func (s *Store) mutatePendingLocked(sessionID string, mutate func([]int64) []int64) error {
	var pendingJSON string
	err := s.db.QueryRow(`SELECT pending_decisions FROM session_state WHERE session_id = ?`, sessionID).Scan(&pendingJSON)
	if err != nil {
		return fmt.Errorf("store: load pending decisions: %w", err)
	}
	var ids []int64
	_ = json.Unmarshal([]byte(pendingJSON), &ids)
	ids = mutate(ids)
	b, _ := json.Marshal(ids)
	_, err = s.db.Exec(`UPDATE session_state SET pending_decisions = ? WHERE session_id = ?`, string(b), sessionID)
	return err
}

// RecordBypass logs an advisory audit entry when a caller bypasses a
// protocol gate via an operator override.
func (s *Store) RecordBypass(sessionID, projectPath, tool, violation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO bypass_audit (session_id, project_path, tool, violation, bypassed_at)
		VALUES (?, ?, ?, ?, ?)`, sessionID, projectPath, tool, violation, time.Now().UTC())
	return err
}
