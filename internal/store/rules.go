package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func marshalStrSlice(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalStrSlice(s string) []string {
	var v []string
	if s == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

// CreateRule inserts a new Rule row.
func (s *Store) CreateRule(r *Rule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO rules
		(trigger, trigger_keywords, must_do, must_not, ask_first, warnings, priority, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Trigger, r.TriggerKeywords, marshalStrSlice(r.MustDo), marshalStrSlice(r.MustNot),
		marshalStrSlice(r.AskFirst), marshalStrSlice(r.Warnings), r.Priority, r.Enabled, now)
	if err != nil {
		return 0, fmt.Errorf("store: insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	r.CreatedAt = now
	return id, nil
}

func scanRule(row interface{ Scan(dest ...any) error }) (*Rule, error) {
	var r Rule
	var mustDo, mustNot, askFirst, warnings string
	err := row.Scan(&r.ID, &r.Trigger, &r.TriggerKeywords, &mustDo, &mustNot, &askFirst, &warnings, &r.Priority, &r.Enabled, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.MustDo = unmarshalStrSlice(mustDo)
	r.MustNot = unmarshalStrSlice(mustNot)
	r.AskFirst = unmarshalStrSlice(askFirst)
	r.Warnings = unmarshalStrSlice(warnings)
	return &r, nil
}

const ruleSelectCols = `id, trigger, trigger_keywords, must_do, must_not, ask_first, warnings, priority, enabled, created_at`

// GetRule loads a rule by id.
func (s *Store) GetRule(id int64) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+ruleSelectCols+` FROM rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListEnabledRules returns every enabled rule, used to seed the rules
// engine's TF-IDF index.
func (s *Store) ListEnabledRules() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT ` + ruleSelectCols + ` FROM rules WHERE enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("store: list enabled rules: %w", err)
	}
	defer rows.Close()
	var out []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListAllRules returns every rule regardless of enabled state, used for
// duplicate-avoidance ("find similar rules").
func (s *Store) ListAllRules() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT ` + ruleSelectCols + ` FROM rules`)
	if err != nil {
		return nil, fmt.Errorf("store: list all rules: %w", err)
	}
	defer rows.Close()
	var out []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRule rewrites a rule's mutable fields.
func (s *Store) UpdateRule(r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE rules SET trigger = ?, trigger_keywords = ?, must_do = ?, must_not = ?,
		ask_first = ?, warnings = ?, priority = ?, enabled = ? WHERE id = ?`,
		r.Trigger, r.TriggerKeywords, marshalStrSlice(r.MustDo), marshalStrSlice(r.MustNot),
		marshalStrSlice(r.AskFirst), marshalStrSlice(r.Warnings), r.Priority, r.Enabled, r.ID)
	return err
}

// AddWarningToRule appends one warning string to a rule's warnings list.
func (s *Store) AddWarningToRule(id int64, warning string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var warningsJSON string
	if err := s.db.QueryRow(`SELECT warnings FROM rules WHERE id = ?`, id).Scan(&warningsJSON); err != nil {
		return fmt.Errorf("store: load rule warnings: %w", err)
	}
	warnings := unmarshalStrSlice(warningsJSON)
	warnings = append(warnings, warning)
	_, err := s.db.Exec(`UPDATE rules SET warnings = ? WHERE id = ?`, marshalStrSlice(warnings), id)
	return err
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM rules WHERE id = ?`, id)
	return err
}
