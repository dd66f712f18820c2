// Package memory implements the memory manager, Component G: create,
// retrieve, rank, update, archive and version memories, on top of the
// durable store, the TF-IDF/vector indices and the hybrid searcher.
package memory

import (
	"time"

	"memoryengine/internal/store"
)

// Scope is where a memory ends up living, per spec §4.G.6.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
)

// ConflictKind classifies a detected conflict, per spec §4.G.5.
type ConflictKind string

const (
	ConflictSimilarFailed     ConflictKind = "similar_failed"
	ConflictExistingWarning   ConflictKind = "existing_warning"
	ConflictPotentialDuplicate ConflictKind = "potential_duplicate"
)

// Conflict is one existing memory that looks related to a new one.
type Conflict struct {
	MemoryID   int64        `json:"memory_id"`
	Kind       ConflictKind `json:"kind"`
	Similarity float64      `json:"similarity"`
	Content    string       `json:"content"`
}

// RememberInput is the Remember operation's full parameter set, spec §4.G.2.
type RememberInput struct {
	Category    store.MemoryCategory
	Content     string
	Rationale   string
	Context     map[string]any
	Tags        []string
	FilePath    string
	ProjectPath string

	// IsPermanent overrides the category-derived default when non-nil.
	IsPermanent *bool
}

// RememberResult is what Remember returns: the created row plus its scope
// and any non-blocking conflicts.
type RememberResult struct {
	Memory    *store.Memory
	Scope     Scope
	Conflicts []Conflict
}

// RecallInput is the Recall operation's full parameter set, spec §4.G.3.
type RecallInput struct {
	Topic       string
	Categories  []store.MemoryCategory
	Limit       int
	FilePath    string
	Tags        []string
	Condensed   bool
	ProjectPath string
}

// MemoryView is a ranked, possibly-condensed memory as returned by Recall.
type MemoryView struct {
	ID         int64          `json:"id"`
	Category   string         `json:"category"`
	Content    string         `json:"content"`
	Rationale  string         `json:"rationale,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Tags       []string       `json:"tags"`
	FilePath   string         `json:"file_path,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	Worked     store.Worked   `json:"worked"`
	Pinned     bool           `json:"pinned"`
	Relevance  float64        `json:"relevance"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	FromGlobal bool           `json:"_from_global,omitempty"`
}

// RecallResult buckets ranked memories by category plural, spec §4.G.3 step 11.
type RecallResult struct {
	Topic     string       `json:"topic"`
	Found     int          `json:"found"`
	Decisions []MemoryView `json:"decisions"`
	Patterns  []MemoryView `json:"patterns"`
	Warnings  []MemoryView `json:"warnings"`
	Learnings []MemoryView `json:"learnings"`
}

// CompactionResult mirrors the tagged outcome of Compact, spec §4.G.7.
type CompactionResult struct {
	Status         string  `json:"status"` // "dry_run" | "compacted" | "error"
	WouldCompact   int     `json:"would_compact,omitempty"`
	CandidateIDs   []int64 `json:"candidate_ids,omitempty"`
	SummaryID      int64   `json:"summary_id,omitempty"`
	CompactedCount int     `json:"compacted_count,omitempty"`
	ArchivedIDs    []int64 `json:"archived_ids,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// CompactionInput is the Compact operation's parameter set, spec §4.G.7.
type CompactionInput struct {
	Summary  string
	Topic    string
	Limit    int
	DryRun   bool
	MinLen   int // minimum summary length; 0 uses the default of 50
}

// DecisionStatsResult is EXPANSION C item 2's read-only analytics view.
type DecisionStatsResult struct {
	TotalMemories     int            `json:"total_memories"`
	ByCategory        map[string]int `json:"by_category"`
	Worked            int            `json:"worked"`
	Failed            int            `json:"failed"`
	Pending           int            `json:"pending"`
	OutcomeTrackedPct float64        `json:"outcome_tracked_pct"`
	TopTags           []TagCount     `json:"top_tags"`
}

// TagCount is one entry of DecisionStatsResult's top-tags list.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
