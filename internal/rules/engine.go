// Package rules implements the rules engine of spec §4.I: a second TF-IDF
// index, this one over rule trigger text, used to surface must_do/must_not/
// ask_first/warning guidance for a proposed action.
package rules

import (
	"fmt"
	"sync"
	"time"

	"memoryengine/internal/cache"
	"memoryengine/internal/logging"
	"memoryengine/internal/store"
	"memoryengine/internal/tfidf"
	"memoryengine/internal/tokenize"
)

const (
	checkTopK         = 10
	checkThreshold    = 0.15
	similarTopK       = 5
	defaultCacheTTL   = 5 * time.Minute
	defaultCacheSize  = 500
)

// Engine is a project-scoped rules engine.
type Engine struct {
	store *store.Store
	tf    *tfidf.Index
	cache *cache.Cache

	mu           sync.Mutex
	indexBuiltAt time.Time
}

// New builds an Engine over an already-open Store.
func New(st *store.Store) *Engine {
	return &Engine{
		store: st,
		tf:    tfidf.New(),
		cache: cache.New(defaultCacheTTL, defaultCacheSize),
	}
}

// Add tokenizes the trigger for derived keywords, inserts the rule, adds it
// to the index, and invalidates the check cache.
func (e *Engine) Add(in AddRuleInput) (*store.Rule, error) {
	keywords := tokenize.Keywords(tokenize.Tokenize(in.Trigger, nil))
	r := &store.Rule{
		Trigger:         in.Trigger,
		TriggerKeywords: keywords,
		MustDo:          in.MustDo,
		MustNot:         in.MustNot,
		AskFirst:        in.AskFirst,
		Warnings:        in.Warnings,
		Priority:        in.Priority,
		Enabled:         in.Enabled,
	}
	id, err := e.store.CreateRule(r)
	if err != nil {
		return nil, fmt.Errorf("rules: add: %w", err)
	}
	e.mu.Lock()
	e.tf.AddDocument(id, r.Trigger, nil)
	e.indexBuiltAt = time.Now().UTC()
	e.mu.Unlock()
	e.cache.Clear()
	logging.Memory("added rule %d: %.50s", id, r.Trigger)
	return r, nil
}

// Update rewrites a rule's mutable fields, re-indexes its trigger (or drops
// it from the index if the update disabled the rule), and invalidates the
// check cache.
func (e *Engine) Update(r *store.Rule) error {
	if err := e.store.UpdateRule(r); err != nil {
		return fmt.Errorf("rules: update: %w", err)
	}
	e.mu.Lock()
	e.tf.RemoveDocument(r.ID)
	if r.Enabled {
		e.tf.AddDocument(r.ID, r.Trigger, nil)
	}
	e.indexBuiltAt = time.Now().UTC()
	e.mu.Unlock()
	e.cache.Clear()
	return nil
}

// Delete removes a rule, drops it from the index, and invalidates the cache.
func (e *Engine) Delete(id int64) error {
	if err := e.store.DeleteRule(id); err != nil {
		return fmt.Errorf("rules: delete: %w", err)
	}
	e.mu.Lock()
	e.tf.RemoveDocument(id)
	e.indexBuiltAt = time.Now().UTC()
	e.mu.Unlock()
	e.cache.Clear()
	return nil
}

// AddWarning appends a warning to an existing rule and invalidates the
// check cache (the trigger text itself, and so the index, is unaffected).
func (e *Engine) AddWarning(id int64, warning string) error {
	if err := e.store.AddWarningToRule(id, warning); err != nil {
		return fmt.Errorf("rules: add warning: %w", err)
	}
	e.cache.Clear()
	return nil
}

// ensureFresh rebuilds the in-memory index from enabled rules when
// rules_last_modified is newer than the last build, mirroring the memory
// manager's index lifecycle (spec §4.G.1, applied here per spec §4.I).
func (e *Engine) ensureFresh() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, err := e.store.GetMeta("rules_last_modified")
	if err != nil {
		return err
	}
	modified, err := parseMetaTime(raw)
	if err != nil {
		logging.MemoryWarn("rules: could not parse rules_last_modified %q: %v", raw, err)
		modified = time.Now().UTC()
	}
	if !e.indexBuiltAt.IsZero() && !modified.After(e.indexBuiltAt) {
		return nil
	}

	enabled, err := e.store.ListEnabledRules()
	if err != nil {
		return err
	}
	fresh := tfidf.New()
	for _, r := range enabled {
		fresh.AddDocument(r.ID, r.Trigger, nil)
	}
	e.tf = fresh
	e.indexBuiltAt = time.Now().UTC()
	logging.MemoryDebug("rebuilt rules index: %d enabled rules", len(enabled))
	return nil
}

func parseMetaTime(raw string) (time.Time, error) {
	layouts := []string{"2006-01-02 15:04:05", time.RFC3339}
	var firstErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		} else if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
