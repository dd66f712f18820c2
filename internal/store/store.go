package store

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"memoryengine/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable relational store for one project. It owns a single
// SQLite connection (serialized writer, WAL readers), the full schema, and
// an optional sqlite-vec virtual table for dense vector search. Embedding
// encoding is the memory manager's concern, not the store's.
type Store struct {
	db         *sql.DB
	mu         sync.RWMutex
	dbPath     string
	vectorDims int
	vectorExt  bool
}

// Open initializes the SQLite database at path, running migrations and
// detecting sqlite-vec availability. path is typically
// <project>/.claude-memory/storage/memory.db.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma failed: %s: %v", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrations: %w", err)
	}

	s.detectVecExtension()
	if s.vectorExt {
		logging.Store("sqlite-vec extension detected")
	} else {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec not available; dense vector search disabled, hybrid searcher falls back to TF-IDF only")
	}

	logging.Store("store opened at %s", path)
	return s, nil
}

// DB exposes the underlying connection for packages (graph, memory, rules)
// that need ad hoc queries this package doesn't wrap.
func (s *Store) DB() *sql.DB { return s.db }

// Lock / RLock / Unlock / RUnlock let the owning packages serialize
// multi-statement operations (e.g. compaction) around this store's single
// connection the same way the durable store's own CRUD methods do.
func (s *Store) Lock()    { s.mu.Lock() }
func (s *Store) Unlock()  { s.mu.Unlock() }
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

// Path returns the on-disk path of the database file.
func (s *Store) Path() string { return s.dbPath }

// VectorExtAvailable reports whether sqlite-vec's vec0 virtual table loaded.
func (s *Store) VectorExtAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorExt
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	logging.Store("closing store at %s", s.dbPath)
	return s.db.Close()
}

func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// CosineSimilarity computes cosine similarity between two equal-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Stats returns row counts for every top-level table, skipping ones absent
// from an older schema.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := []string{
		"memories", "memory_versions", "rules", "memory_relationships",
		"session_state", "project_links", "extracted_entities",
		"memory_entity_refs", "context_triggers", "memory_communities",
		"active_context_items", "file_hashes", "code_entities", "memory_code_refs",
	}
	stats := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&n); err != nil {
			continue
		}
		stats[t] = n
	}
	return stats, nil
}
