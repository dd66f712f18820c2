package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"memoryengine/internal/cache"
	"memoryengine/internal/embedding"
	"memoryengine/internal/logging"
	"memoryengine/internal/search"
	"memoryengine/internal/store"
	"memoryengine/internal/tfidf"
	"memoryengine/internal/vectorindex"
)

// GlobalProjectPath is the sentinel project_path the scope-classification
// heuristic and the recall merge logic use to prevent re-recursion, per
// spec §4.G.2 step 7 and §4.G.6.
const GlobalProjectPath = "__global__"

const (
	defaultHalfLifeDays = 30.0
	defaultMinFloor     = 0.3
	conflictThreshold   = 0.6
	duplicateThreshold  = 0.8
	defaultRecallPool   = 3
	defaultDiversityCap = 3
)

// Options configures a Manager's behavior. New replaces a zero
// SearchDiversityMaxPerFile with 3, and a zero CacheTTL or CacheMaxSize falls
// back to the cache package's defaults. HybridVectorWeight is used as given
// when within [0,1], so 0 turns off the vector half of the blend.
// GlobalEnabled is not read by New.
type Options struct {
	HybridVectorWeight       float64
	SearchDiversityMaxPerFile int
	CacheTTL                  time.Duration
	CacheMaxSize              int
	GlobalEnabled             bool
}

// Manager is the memory manager for a single project. A second Manager
// rooted at GlobalProjectPath may be attached via SetGlobal to support
// cross-project merging (spec §4.G.2 step 7, §4.G.3 step 9).
type Manager struct {
	store       *store.Store
	tf          *tfidf.Index
	vec         *vectorindex.Index
	searcher    *search.Searcher
	recallCache *cache.Cache
	embed       embedding.Engine
	projectPath string
	diversity   int

	global *Manager

	mu           sync.Mutex
	indexBuiltAt time.Time

	recallGroup singleflight.Group
}

// New builds a Manager over an already-open Store. vec and embed may be
// nil (vector search / embedding disabled; the hybrid searcher degrades to
// TF-IDF only).
func New(st *store.Store, vec *vectorindex.Index, embed embedding.Engine, projectPath string, opts Options) *Manager {
	if opts.SearchDiversityMaxPerFile <= 0 {
		opts.SearchDiversityMaxPerFile = defaultDiversityCap
	}
	tf := tfidf.New()
	m := &Manager{
		store:       st,
		tf:          tf,
		vec:         vec,
		searcher:    search.New(tf, vec, opts.HybridVectorWeight),
		recallCache: cache.New(opts.CacheTTL, opts.CacheMaxSize),
		embed:       embed,
		projectPath: projectPath,
		diversity:   opts.SearchDiversityMaxPerFile,
	}
	return m
}

// SetGlobal attaches the global store's Manager for cross-project merging.
// A Manager whose own projectPath is already GlobalProjectPath ignores this
// (the global store never recurses into itself, spec §4.G.6).
func (m *Manager) SetGlobal(global *Manager) {
	if m.projectPath == GlobalProjectPath {
		return
	}
	m.global = global
}

// ensureFresh rebuilds the in-memory TF-IDF index from the durable store
// when memories_last_modified is newer than the last build, per spec
// §4.G.1. The dense vector index lives in SQLite itself and needs no
// in-process rebuild.
func (m *Manager) ensureFresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureFreshLocked()
}

func (m *Manager) ensureFreshLocked() error {
	raw, err := m.store.GetMeta("memories_last_modified")
	if err != nil {
		return err
	}
	modified, err := parseMetaTime(raw)
	if err != nil {
		logging.MemoryWarn("could not parse memories_last_modified %q: %v", raw, err)
		modified = time.Now().UTC()
	}
	if !m.indexBuiltAt.IsZero() && !modified.After(m.indexBuiltAt) {
		return nil
	}
	return m.rebuildLocked()
}

// currentSearcher returns the live Searcher under lock, so a concurrent
// rebuild's atomic swap (spec §5) never hands a caller a half-rebuilt pair
// of index and searcher.
func (m *Manager) currentSearcher() *search.Searcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searcher
}

func (m *Manager) rebuildLocked() error {
	timer := logging.StartTimer(logging.CategoryMemory, "rebuild TF-IDF index")
	defer timer.Stop()

	memories, err := m.store.ListNonArchived(m.projectPath)
	if err != nil {
		return err
	}
	fresh := tfidf.New()
	for _, mem := range memories {
		fresh.AddDocument(mem.ID, mem.Content+" "+mem.Rationale, mem.Tags)
	}
	m.tf = fresh
	m.searcher = search.New(m.tf, m.vec, m.searcher.Weight())
	m.indexBuiltAt = time.Now().UTC()
	logging.MemoryDebug("rebuilt TF-IDF index for %s: %d documents", m.projectPath, len(memories))
	return nil
}

// invalidateLocal adds doc directly to the live index (no full rebuild) and
// clears the recall cache, per spec §4.G.1's "local writes invalidate the
// index directly".
func (m *Manager) invalidateLocal(id int64, text string, tags []string) {
	m.mu.Lock()
	m.tf.AddDocument(id, text, tags)
	m.indexBuiltAt = time.Now().UTC()
	m.mu.Unlock()
	m.recallCache.Clear()
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

// Close is a no-op: the Manager releases none of the store, vector index or
// embedding engine it was given.
func (m *Manager) Close() {}

// newEmbedContext is a small helper so callers consistently bound embedding
// calls; embedding backends make network/subprocess calls (spec §5's
// "every network fetch" suspension point).
func newEmbedContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, 30*time.Second)
}
