// Package vectorindex implements the persistent dense vector index
// (sqlite-vec's vec0 virtual table), Component C. The hybrid searcher
// tolerates this package being entirely absent: if sqlite-vec didn't load,
// New returns ErrUnavailable and callers fall back to TF-IDF only.
package vectorindex

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"memoryengine/internal/logging"
)

// ErrUnavailable is returned by New when sqlite-vec's vec0 module is not
// loaded into the SQLite connection.
var ErrUnavailable = errors.New("vectorindex: sqlite-vec extension not available")

// Metadata is the payload stored alongside an embedding, per spec §4.C:
// category, tags, file_path, worked, is_permanent.
type Metadata struct {
	Category    string
	Tags        []string
	FilePath    string
	Worked      int
	IsPermanent bool
}

// Filters is a conjunction of metadata constraints applied to search results.
type Filters struct {
	Categories []string // match if category is any of these (empty = no constraint)
	AnyTags    []string // match if tags intersects this set (empty = no constraint)
	FilePath   string   // exact match (empty = no constraint)
}

// Result is one scored match, descending by score (1 - cosine distance).
type Result struct {
	ID    int64
	Score float64
}

// Index wraps the vec0 virtual table plus a companion metadata table
// (vec0 doesn't carry arbitrary filterable columns across all sqlite-vec
// releases, so filtering is done in Go over the hydrated metadata row).
type Index struct {
	db   *sql.DB
	dims int
}

// New creates (or reopens) the vec0 table at the configured dimensionality.
// It returns ErrUnavailable if the vec0 module isn't registered on db.
func New(db *sql.DB, dims int, available bool) (*Index, error) {
	if !available {
		return nil, ErrUnavailable
	}
	q := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(embedding float[%d] distance_metric=cosine)`, dims)
	if _, err := db.Exec(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vec_memories_meta (
		id INTEGER PRIMARY KEY,
		category TEXT,
		tags TEXT,
		file_path TEXT,
		worked INTEGER,
		is_permanent INTEGER
	)`); err != nil {
		return nil, fmt.Errorf("vectorindex: create metadata table: %w", err)
	}
	return &Index{db: db, dims: dims}, nil
}

func encodeVec(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert inserts or replaces the embedding and metadata for id.
func (idx *Index) Upsert(id int64, embedding []float32, meta Metadata) error {
	if len(embedding) != idx.dims {
		return fmt.Errorf("vectorindex: embedding has %d dims, index expects %d", len(embedding), idx.dims)
	}
	tagsJSON, _ := json.Marshal(meta.Tags)

	if _, err := idx.db.Exec(`DELETE FROM vec_memories WHERE rowid = ?`, id); err != nil {
		logging.Get(logging.CategoryStore).Warn("vectorindex: pre-delete failed for %d: %v", id, err)
	}
	if _, err := idx.db.Exec(`INSERT INTO vec_memories (rowid, embedding) VALUES (?, ?)`, id, encodeVec(embedding)); err != nil {
		return fmt.Errorf("vectorindex: insert embedding: %w", err)
	}
	_, err := idx.db.Exec(`INSERT OR REPLACE INTO vec_memories_meta (id, category, tags, file_path, worked, is_permanent)
		VALUES (?, ?, ?, ?, ?, ?)`, id, meta.Category, string(tagsJSON), meta.FilePath, meta.Worked, meta.IsPermanent)
	if err != nil {
		return fmt.Errorf("vectorindex: upsert metadata: %w", err)
	}
	return nil
}

// Delete removes id's embedding and metadata.
func (idx *Index) Delete(id int64) error {
	if _, err := idx.db.Exec(`DELETE FROM vec_memories WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("vectorindex: delete embedding: %w", err)
	}
	_, err := idx.db.Exec(`DELETE FROM vec_memories_meta WHERE id = ?`, id)
	return err
}

// Count returns the number of indexed embeddings.
func (idx *Index) Count() (int, error) {
	var n int
	err := idx.db.QueryRow(`SELECT COUNT(*) FROM vec_memories`).Scan(&n)
	return n, err
}

// Search runs a KNN query over the vec0 table, over-fetching by 4x to give
// the metadata filter room to discard non-matching rows, then truncates to
// limit. Score is 1 - distance (cosine distance from vec0, so closer to 1
// is more similar).
func (idx *Index) Search(queryVec []float32, limit int, filters Filters) ([]Result, error) {
	if len(queryVec) != idx.dims {
		return nil, fmt.Errorf("vectorindex: query has %d dims, index expects %d", len(queryVec), idx.dims)
	}
	if limit <= 0 {
		limit = 10
	}
	fetchK := limit * 4
	if fetchK < 20 {
		fetchK = 20
	}

	rows, err := idx.db.Query(`SELECT rowid, distance FROM vec_memories WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		encodeVec(queryVec), fetchK)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: knn search: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		id       int64
		distance float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.distance); err != nil {
			continue
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Result
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		if !idx.passesFilters(c.id, filters) {
			continue
		}
		out = append(out, Result{ID: c.id, Score: 1 - c.distance})
	}
	return out, nil
}

func (idx *Index) passesFilters(id int64, f Filters) bool {
	if len(f.Categories) == 0 && len(f.AnyTags) == 0 && f.FilePath == "" {
		return true
	}
	var category, tagsJSON, filePath string
	err := idx.db.QueryRow(`SELECT category, tags, file_path FROM vec_memories_meta WHERE id = ?`, id).
		Scan(&category, &tagsJSON, &filePath)
	if err != nil {
		return false
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.FilePath != "" && f.FilePath != filePath {
		return false
	}
	if len(f.AnyTags) > 0 {
		var tags []string
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
		found := false
		for _, want := range f.AnyTags {
			for _, got := range tags {
				if want == got {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}
