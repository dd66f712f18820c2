// Package store implements the durable relational store for the memory engine:
// schema, migrations, and CRUD for every table in the data model. It has no
// knowledge of ranking, decay, or protocol semantics — those live in the
// packages built on top of it.
package store

import "time"

// MemoryCategory is the closed set of categories a Memory may belong to.
type MemoryCategory string

const (
	CategoryDecision MemoryCategory = "decision"
	CategoryPattern  MemoryCategory = "pattern"
	CategoryWarning  MemoryCategory = "warning"
	CategoryLearning MemoryCategory = "learning"
)

// ValidCategory reports whether c is one of the four allowed categories.
func ValidCategory(c MemoryCategory) bool {
	switch c {
	case CategoryDecision, CategoryPattern, CategoryWarning, CategoryLearning:
		return true
	}
	return false
}

// IsPermanentCategory reports whether the category is exempt from decay by default.
func IsPermanentCategory(c MemoryCategory) bool {
	return c == CategoryPattern || c == CategoryWarning
}

// Worked is the tri-state outcome of a sealed memory.
type Worked int

const (
	WorkedUnknown Worked = iota
	WorkedTrue
	WorkedFalse
)

// Memory is the central entity of the store.
type Memory struct {
	ID                int64
	Category          MemoryCategory
	Content           string
	Rationale         string
	Context           map[string]any
	Tags              []string
	FilePath          string
	FilePathRelative  string
	Keywords          string
	IsPermanent       bool
	VectorEmbedding   []float32
	Outcome           string
	Worked            Worked
	Pinned            bool
	Archived          bool
	RecallCount       int64
	ProjectPath       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ChangeType enumerates why a MemoryVersion was recorded.
type ChangeType string

const (
	ChangeCreated             ChangeType = "created"
	ChangeContentUpdated      ChangeType = "content_updated"
	ChangeOutcomeRecorded     ChangeType = "outcome_recorded"
	ChangeRelationshipChanged ChangeType = "relationship_changed"
)

// MemoryVersion is an append-only snapshot of a Memory.
type MemoryVersion struct {
	ID                int64
	MemoryID          int64
	Content           string
	Rationale         string
	Context           map[string]any
	Tags              []string
	Outcome           string
	Worked            Worked
	VersionNumber     int
	ChangeType        ChangeType
	ChangeDescription string
	ChangedAt         time.Time
}

// Rule is a decision-tree node consumed by the rules engine.
type Rule struct {
	ID             int64
	Trigger        string
	TriggerKeywords string
	MustDo         []string
	MustNot        []string
	AskFirst       []string
	Warnings       []string
	Priority       int
	Enabled        bool
	CreatedAt      time.Time
}

// RelationshipType is the closed set of directed edge labels between memories.
type RelationshipType string

const (
	RelLedTo        RelationshipType = "led_to"
	RelSupersedes   RelationshipType = "supersedes"
	RelDependsOn    RelationshipType = "depends_on"
	RelConflictsWith RelationshipType = "conflicts_with"
	RelRelatedTo    RelationshipType = "related_to"
)

// ValidRelationship reports whether r is one of the five allowed labels.
func ValidRelationship(r RelationshipType) bool {
	switch r {
	case RelLedTo, RelSupersedes, RelDependsOn, RelConflictsWith, RelRelatedTo:
		return true
	}
	return false
}

// MemoryRelationship is a directed edge between two memories.
type MemoryRelationship struct {
	ID           int64
	SourceID     int64
	TargetID     int64
	Relationship RelationshipType
	Description  string
	Confidence   float64
	CreatedAt    time.Time
}

// ContextCheck is one topic/timestamp pair recorded against a session.
type ContextCheck struct {
	Topic     string
	Timestamp time.Time
}

// SessionState is the per-session protocol record.
type SessionState struct {
	SessionID        string
	ProjectPath      string
	Briefed          bool
	ContextChecks    []ContextCheck
	PendingDecisions []int64
	LastActivity     time.Time
	CreatedAt        time.Time
}

// ProjectLinkRelationship is the closed set of labels for a ProjectLink.
type ProjectLinkRelationship string

const (
	LinkSameProject ProjectLinkRelationship = "same-project"
	LinkUpstream    ProjectLinkRelationship = "upstream"
	LinkDownstream  ProjectLinkRelationship = "downstream"
	LinkRelated     ProjectLinkRelationship = "related"
)

// ProjectLink is an outbound pointer from one project's store to another's.
type ProjectLink struct {
	ID          int64
	SourcePath  string
	LinkedPath  string
	Relationship ProjectLinkRelationship
	Label       string
	CreatedAt   time.Time
}

// EntityType is the closed set of kinds an ExtractedEntity may take.
type EntityType string

const (
	EntityFunction EntityType = "function"
	EntityClass    EntityType = "class"
	EntityFile     EntityType = "file"
	EntityModule   EntityType = "module"
	EntityVariable EntityType = "variable"
	EntityConcept  EntityType = "concept"
)

// ExtractedEntity is a named thing found inside memory text.
type ExtractedEntity struct {
	ID            int64
	ProjectPath   string
	EntityType    EntityType
	Name          string
	QualifiedName string
	MentionCount  int64
	CodeEntityID  *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EntityRefRelationship is the closed set of labels linking a memory to an entity.
type EntityRefRelationship string

const (
	RefMentions   EntityRefRelationship = "mentions"
	RefAbout      EntityRefRelationship = "about"
	RefModifies   EntityRefRelationship = "modifies"
	RefIntroduces EntityRefRelationship = "introduces"
	RefDeprecates EntityRefRelationship = "deprecates"
)

// MemoryEntityRef links a memory to an extracted entity.
type MemoryEntityRef struct {
	ID           int64
	MemoryID     int64
	EntityID     int64
	Relationship EntityRefRelationship
	Context      string
	CreatedAt    time.Time
}

// TriggerType is the closed set of ContextTrigger matching strategies.
type TriggerType string

const (
	TriggerFilePattern TriggerType = "file_pattern"
	TriggerTagMatch    TriggerType = "tag_match"
	TriggerEntityMatch TriggerType = "entity_match"
)

// ContextTrigger is an auto-recall pattern.
type ContextTrigger struct {
	ID              int64
	ProjectPath     string
	TriggerType     TriggerType
	Pattern         string
	RecallTopic     string
	RecallCategories []string
	IsActive        bool
	Priority        int
	TriggerCount    int64
	LastTriggered   *time.Time
	CreatedAt       time.Time
}

// MemoryCommunity is a hierarchical cluster of memories by dominant tag.
type MemoryCommunity struct {
	ID          int64
	ProjectPath string
	Name        string
	Summary     string
	Tags        []string
	MemberCount int
	MemberIDs   []int64
	Level       int
	ParentID    *int64
	Embedding   []float32
	CreatedAt   time.Time
}

// ActiveContextItem pins a memory into a session's hot set (capped at 10).
type ActiveContextItem struct {
	ID         int64
	SessionID  string
	MemoryID   int64
	Priority   int
	PinnedAt   time.Time
}

// FileHash is a supporting row for the external code-indexer collaborator.
type FileHash struct {
	ID          int64
	ProjectPath string
	FilePath    string
	Hash        string
	UpdatedAt   time.Time
}

// CodeEntity is a supporting row for the external code-indexer collaborator.
type CodeEntity struct {
	ID          int64
	ProjectPath string
	FilePath    string
	Kind        string
	Name        string
	StartLine   int
	EndLine     int
	UpdatedAt   time.Time
}

// MemoryCodeRef links a memory to a CodeEntity.
type MemoryCodeRef struct {
	ID           int64
	MemoryID     int64
	CodeEntityID int64
	CreatedAt    time.Time
}
