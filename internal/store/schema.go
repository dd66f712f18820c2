package store

import "fmt"

// initSchema creates every table the data model names, plus the FTS5
// virtual table and the triggers that keep it and the meta timestamps in
// sync. Every statement is CREATE ... IF NOT EXISTS so opening an existing
// database is a no-op beyond the migrations pass in migrations.go.
func (s *Store) initSchema() error {
	statements := []string{
		memoriesTable,
		memoryVersionsTable,
		rulesTable,
		memoryRelationshipsTable,
		sessionStateTable,
		projectLinksTable,
		extractedEntitiesTable,
		memoryEntityRefsTable,
		contextTriggersTable,
		memoryCommunitiesTable,
		activeContextItemsTable,
		fileHashesTable,
		codeEntitiesTable,
		memoryCodeRefsTable,
		metaTable,
		ftsTable,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	if err := s.installTriggers(); err != nil {
		return err
	}
	return s.seedMeta()
}

const memoriesTable = `
CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_path TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	content TEXT NOT NULL,
	rationale TEXT DEFAULT '',
	context TEXT DEFAULT '{}',
	tags TEXT DEFAULT '[]',
	file_path TEXT,
	file_path_relative TEXT,
	keywords TEXT DEFAULT '',
	is_permanent BOOLEAN NOT NULL DEFAULT 0,
	vector_embedding BLOB,
	outcome TEXT DEFAULT '',
	worked INTEGER NOT NULL DEFAULT 0,
	pinned BOOLEAN NOT NULL DEFAULT 0,
	archived BOOLEAN NOT NULL DEFAULT 0,
	recall_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project_path);
CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
CREATE INDEX IF NOT EXISTS idx_memories_archived ON memories(archived);
CREATE INDEX IF NOT EXISTS idx_memories_pinned ON memories(pinned);
CREATE INDEX IF NOT EXISTS idx_memories_file_path ON memories(file_path);
`

const memoryVersionsTable = `
CREATE TABLE IF NOT EXISTS memory_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	rationale TEXT DEFAULT '',
	context TEXT DEFAULT '{}',
	tags TEXT DEFAULT '[]',
	outcome TEXT DEFAULT '',
	worked INTEGER NOT NULL DEFAULT 0,
	version_number INTEGER NOT NULL,
	change_type TEXT NOT NULL,
	change_description TEXT DEFAULT '',
	changed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(memory_id, version_number)
);
CREATE INDEX IF NOT EXISTS idx_memory_versions_memory ON memory_versions(memory_id);
`

const rulesTable = `
CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trigger TEXT NOT NULL,
	trigger_keywords TEXT DEFAULT '',
	must_do TEXT DEFAULT '[]',
	must_not TEXT DEFAULT '[]',
	ask_first TEXT DEFAULT '[]',
	warnings TEXT DEFAULT '[]',
	priority INTEGER NOT NULL DEFAULT 0,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rules(enabled);
CREATE INDEX IF NOT EXISTS idx_rules_priority ON rules(priority);
`

const memoryRelationshipsTable = `
CREATE TABLE IF NOT EXISTS memory_relationships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	target_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	relationship TEXT NOT NULL,
	description TEXT DEFAULT '',
	confidence REAL NOT NULL DEFAULT 1.0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(source_id, target_id, relationship)
);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON memory_relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON memory_relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON memory_relationships(relationship);
`

const sessionStateTable = `
CREATE TABLE IF NOT EXISTS session_state (
	session_id TEXT PRIMARY KEY,
	project_path TEXT NOT NULL,
	briefed BOOLEAN NOT NULL DEFAULT 0,
	context_checks TEXT DEFAULT '[]',
	pending_decisions TEXT DEFAULT '[]',
	last_activity DATETIME DEFAULT CURRENT_TIMESTAMP,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_session_project ON session_state(project_path);

CREATE TABLE IF NOT EXISTS bypass_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	project_path TEXT NOT NULL,
	tool TEXT NOT NULL,
	violation TEXT NOT NULL,
	bypassed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_bypass_session ON bypass_audit(session_id);
`

const projectLinksTable = `
CREATE TABLE IF NOT EXISTS project_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_path TEXT NOT NULL,
	linked_path TEXT NOT NULL,
	relationship TEXT NOT NULL,
	label TEXT DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(source_path, linked_path)
);
`

const extractedEntitiesTable = `
CREATE TABLE IF NOT EXISTS extracted_entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_path TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	name TEXT NOT NULL,
	qualified_name TEXT DEFAULT '',
	mention_count INTEGER NOT NULL DEFAULT 1,
	code_entity_id INTEGER REFERENCES code_entities(id) ON DELETE SET NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_path, entity_type, name)
);
CREATE INDEX IF NOT EXISTS idx_entities_project ON extracted_entities(project_path);
`

const memoryEntityRefsTable = `
CREATE TABLE IF NOT EXISTS memory_entity_refs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	entity_id INTEGER NOT NULL REFERENCES extracted_entities(id) ON DELETE CASCADE,
	relationship TEXT NOT NULL,
	context TEXT DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(memory_id, entity_id, relationship)
);
CREATE INDEX IF NOT EXISTS idx_entity_refs_memory ON memory_entity_refs(memory_id);
CREATE INDEX IF NOT EXISTS idx_entity_refs_entity ON memory_entity_refs(entity_id);
`

const contextTriggersTable = `
CREATE TABLE IF NOT EXISTS context_triggers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_path TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	pattern TEXT NOT NULL,
	recall_topic TEXT NOT NULL,
	recall_categories TEXT DEFAULT '[]',
	is_active BOOLEAN NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0,
	trigger_count INTEGER NOT NULL DEFAULT 0,
	last_triggered DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_triggers_project ON context_triggers(project_path);
CREATE INDEX IF NOT EXISTS idx_triggers_active ON context_triggers(is_active);
`

const memoryCommunitiesTable = `
CREATE TABLE IF NOT EXISTS memory_communities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_path TEXT NOT NULL,
	name TEXT NOT NULL,
	summary TEXT DEFAULT '',
	tags TEXT DEFAULT '[]',
	member_count INTEGER NOT NULL DEFAULT 0,
	member_ids TEXT DEFAULT '[]',
	level INTEGER NOT NULL DEFAULT 0,
	parent_id INTEGER REFERENCES memory_communities(id) ON DELETE SET NULL,
	embedding BLOB,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_communities_project ON memory_communities(project_path);
`

const activeContextItemsTable = `
CREATE TABLE IF NOT EXISTS active_context_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	memory_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL DEFAULT 0,
	pinned_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(session_id, memory_id)
);
CREATE INDEX IF NOT EXISTS idx_active_context_session ON active_context_items(session_id);
`

const fileHashesTable = `
CREATE TABLE IF NOT EXISTS file_hashes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_path TEXT NOT NULL,
	file_path TEXT NOT NULL,
	hash TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_path, file_path)
);
`

const codeEntitiesTable = `
CREATE TABLE IF NOT EXISTS code_entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_path TEXT NOT NULL,
	file_path TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	start_line INTEGER DEFAULT 0,
	end_line INTEGER DEFAULT 0,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_code_entities_project ON code_entities(project_path);
CREATE INDEX IF NOT EXISTS idx_code_entities_file ON code_entities(file_path);
`

const memoryCodeRefsTable = `
CREATE TABLE IF NOT EXISTS memory_code_refs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	code_entity_id INTEGER NOT NULL REFERENCES code_entities(id) ON DELETE CASCADE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(memory_id, code_entity_id)
);
`

const metaTable = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// ftsTable mirrors the memories table by rowid, per the FTS contract in
// spec §6: content, rationale, and tags. The tags column is indexed as the
// memories row stores it, a JSON array string; the tags are not joined into
// a space-separated string.
const ftsTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	content, rationale, tags, content='memories', content_rowid='id'
);
`

func (s *Store) seedMeta() error {
	for _, key := range []string{"memories_last_modified", "rules_last_modified"} {
		_, err := s.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES (?, datetime('now'))`, key)
		if err != nil {
			return fmt.Errorf("store: seed meta %s: %w", key, err)
		}
	}
	return nil
}

// installTriggers creates the six change-timestamp triggers (insert/update/
// delete on memories and rules) plus the three FTS sync triggers on
// memories. All are CREATE TRIGGER IF NOT EXISTS so reopening is idempotent.
func (s *Store) installTriggers() error {
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS trg_memories_ai_meta AFTER INSERT ON memories BEGIN
			UPDATE meta SET value = datetime('now') WHERE key = 'memories_last_modified';
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_memories_au_meta AFTER UPDATE ON memories BEGIN
			UPDATE meta SET value = datetime('now') WHERE key = 'memories_last_modified';
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_memories_ad_meta AFTER DELETE ON memories BEGIN
			UPDATE meta SET value = datetime('now') WHERE key = 'memories_last_modified';
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_rules_ai_meta AFTER INSERT ON rules BEGIN
			UPDATE meta SET value = datetime('now') WHERE key = 'rules_last_modified';
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_rules_au_meta AFTER UPDATE ON rules BEGIN
			UPDATE meta SET value = datetime('now') WHERE key = 'rules_last_modified';
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_rules_ad_meta AFTER DELETE ON rules BEGIN
			UPDATE meta SET value = datetime('now') WHERE key = 'rules_last_modified';
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_memories_ai_fts AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, content, rationale, tags) VALUES (new.id, new.content, new.rationale, new.tags);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_memories_au_fts AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, rationale, tags) VALUES('delete', old.id, old.content, old.rationale, old.tags);
			INSERT INTO memories_fts(rowid, content, rationale, tags) VALUES (new.id, new.content, new.rationale, new.tags);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_memories_ad_fts AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, rationale, tags) VALUES('delete', old.id, old.content, old.rationale, old.tags);
		END;`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return fmt.Errorf("store: install trigger: %w", err)
		}
	}
	return nil
}

// GetMeta reads a key from the meta table.
func (s *Store) GetMeta(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	return v, err
}
