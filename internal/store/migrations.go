package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"memoryengine/internal/logging"
)

// CurrentSchemaVersion tracks the schema evolution named in spec §6:
// v1 base tables, v2 vector_embedding + FTS triggers, v3 pinned/archived +
// file_path_relative, v4 recall_count + memory_relationships indexes, v5
// session_state/bypass_audit, v6 code_entities/memory_code_refs/file_hashes.
const CurrentSchemaVersion = 6

// Migration is a column-existence-guarded ALTER TABLE ADD COLUMN.
type Migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []Migration{
	{"memories", "vector_embedding", "BLOB"},
	{"memories", "pinned", "BOOLEAN NOT NULL DEFAULT 0"},
	{"memories", "archived", "BOOLEAN NOT NULL DEFAULT 0"},
	{"memories", "file_path_relative", "TEXT"},
	{"memories", "recall_count", "INTEGER NOT NULL DEFAULT 0"},
	{"memories", "is_permanent", "BOOLEAN NOT NULL DEFAULT 0"},
	{"memories", "project_path", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies every pending column migration, then records the
// current schema version. A column migration never fails the open: a column
// that can't be added (already present in a different form) is logged and
// skipped, matching the teacher's non-fatal migration posture. A stored
// schema version newer than CurrentSchemaVersion is returned as an error.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied, skipped := 0, 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			skipped++
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			skipped++
			continue
		}
		q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(q); err != nil {
			logging.Get(logging.CategoryStore).Warn("migration failed: %s.%s: %v", m.Table, m.Column, err)
			skipped++
			continue
		}
		applied++
	}

	current := GetSchemaVersion(db)
	if current > CurrentSchemaVersion {
		return fmt.Errorf("store: database schema version %d is newer than this binary supports (%d)", current, CurrentSchemaVersion)
	}
	if current < CurrentSchemaVersion {
		if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
			return err
		}
	}

	logging.Store("migrations complete: applied=%d skipped=%d", applied, skipped)
	return nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
	return err == nil && n > 0
}

// GetSchemaVersion returns the applied schema version, inferring one from
// table structure if schema_versions has no rows (a brand-new database).
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var v int
		if err := db.QueryRow(`SELECT version FROM schema_versions ORDER BY applied_at DESC LIMIT 1`).Scan(&v); err == nil {
			return v
		}
	}
	if !tableExists(db, "memories") {
		return 0
	}
	return CurrentSchemaVersion
}

// SetSchemaVersion records a new applied schema version.
func SetSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	)`); err != nil {
		return fmt.Errorf("store: ensure schema_versions: %w", err)
	}
	_, err := db.Exec(`INSERT INTO schema_versions (version, description) VALUES (?, ?)`,
		version, fmt.Sprintf("migrated to schema version %d", version))
	if err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}
	return nil
}

// ComputeContentHash hashes content+rationale for dedup/backfill bookkeeping.
func ComputeContentHash(content, rationale string) string {
	sum := sha256.Sum256([]byte(content + "::" + rationale))
	return hex.EncodeToString(sum[:])
}

// CreateBackup copies the database file aside before a migration pass.
func CreateBackup(dbPath string) (string, error) {
	backupPath := fmt.Sprintf("%s.backup_%s", dbPath, time.Now().Format("20060102_150405"))
	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("store: open for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("store: create backup: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("store: copy backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("store: sync backup: %w", err)
	}
	return backupPath, nil
}

// RestoreBackup overwrites dbPath with the contents of backupPath, used
// when a migration pass fails partway through.
func RestoreBackup(dbPath, backupPath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("store: open backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("store: recreate database: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("store: restore copy: %w", err)
	}
	return dst.Sync()
}
