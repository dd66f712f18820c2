// Package registry implements the project-context registry of spec §4.K:
// a process-wide map from project_path to a bundle of per-project
// subsystems (store, memory manager, rules engine, protocol gate), evicted
// LRU-style once more than max_project_contexts are open at once.
package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"memoryengine/internal/config"
	"memoryengine/internal/embedding"
	"memoryengine/internal/logging"
	"memoryengine/internal/memory"
	"memoryengine/internal/protocol"
	"memoryengine/internal/rules"
	"memoryengine/internal/store"
	"memoryengine/internal/vectorindex"
)

// ProjectContext bundles one project's open subsystems.
type ProjectContext struct {
	ProjectPath string
	Store       *store.Store
	Memory      *memory.Manager
	Rules       *rules.Engine
	Gate        *protocol.Gate

	touchedAt time.Time
}

// Registry is the process-wide project_path -> ProjectContext map.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*ProjectContext
	maxSize  int
	global   *memory.Manager
}

// New builds an empty Registry. maxSize <= 0 uses the spec default of 10.
func New(maxSize int) *Registry {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &Registry{contexts: make(map[string]*ProjectContext), maxSize: maxSize}
}

// SetGlobal attaches the shared global-store memory manager that every
// per-project Manager merges recall results from (spec §4.G.6).
func (r *Registry) SetGlobal(global *memory.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = global
}

// Get returns the ProjectContext for projectPath, opening and wiring it
// on first use, and evicting the least-recently-touched context if doing
// so would exceed maxSize. Map access is fully serialized: two concurrent
// callers for the same new project never race on construction.
func (r *Registry) Get(projectPath string, cfg *config.Config) (*ProjectContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pc, ok := r.contexts[projectPath]; ok {
		pc.touchedAt = time.Now().UTC()
		return pc, nil
	}

	pc, err := r.open(projectPath, cfg)
	if err != nil {
		return nil, err
	}
	r.contexts[projectPath] = pc

	if len(r.contexts) > r.maxSize {
		if err := r.evictLRULocked(); err != nil {
			logging.MemoryWarn("registry: eviction error: %v", err)
		}
	}
	return pc, nil
}

// Release touches projectPath's LRU timestamp. Actual disposal happens on
// eviction or process exit, never here.
func (r *Registry) Release(projectPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pc, ok := r.contexts[projectPath]; ok {
		pc.touchedAt = time.Now().UTC()
	}
}

func (r *Registry) open(projectPath string, cfg *config.Config) (*ProjectContext, error) {
	dbPath := filepath.Join(storageDirFor(projectPath, cfg), "memory.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("registry: open store for %s: %w", projectPath, err)
	}

	var vec *vectorindex.Index
	if v, vecErr := vectorindex.New(st.DB(), embedding.DefaultDimensions, st.VectorExtAvailable()); vecErr == nil {
		vec = v
	} else {
		logging.MemoryWarn("registry: vector index unavailable for %s: %v", projectPath, vecErr)
	}

	embedCfg := embedding.DefaultConfig()
	embedCfg.Provider = cfg.EmbeddingProvider
	embedCfg.OllamaModel = cfg.EmbeddingModel
	embed, err := embedding.NewEngine(embedCfg)
	if err != nil {
		logging.MemoryWarn("registry: embedding engine unavailable for %s: %v", projectPath, err)
		embed = nil
	}

	mgr := memory.New(st, vec, embed, projectPath, memory.Options{
		HybridVectorWeight:        cfg.HybridVectorWeight,
		SearchDiversityMaxPerFile: cfg.SearchDiversityMaxPerFile,
		GlobalEnabled:             cfg.GlobalEnabled,
	})
	if r.global != nil {
		mgr.SetGlobal(r.global)
	}

	return &ProjectContext{
		ProjectPath: projectPath,
		Store:       st,
		Memory:      mgr,
		Rules:       rules.New(st),
		Gate:        protocol.New(st, projectPath, []byte(cfg.TokenSecret)).WithPendingThreshold(cfg.PendingDecisionThreshold()),
		touchedAt:   time.Now().UTC(),
	}, nil
}

// storageDirFor resolves the per-project storage directory: cfg.StoragePath
// if the operator pinned one explicitly (single-project deployments), else
// <projectPath>/.claude-memory/storage so a shared Config can register many
// distinct projects without their stores colliding.
func storageDirFor(projectPath string, cfg *config.Config) string {
	if cfg.StoragePath != "" {
		return cfg.StoragePath
	}
	return filepath.Join(projectPath, ".claude-memory", "storage")
}

// evictLRULocked disposes of the least-recently-touched context. Callers
// must hold r.mu.
func (r *Registry) evictLRULocked() error {
	var oldestPath string
	var oldestAt time.Time
	for path, pc := range r.contexts {
		if oldestPath == "" || pc.touchedAt.Before(oldestAt) {
			oldestPath, oldestAt = path, pc.touchedAt
		}
	}
	if oldestPath == "" {
		return nil
	}
	pc := r.contexts[oldestPath]
	delete(r.contexts, oldestPath)
	logging.Memory("registry: evicting project context %s", oldestPath)
	return disposeContext(pc)
}

// CloseAll disposes every open context, in parallel bounded by an
// errgroup, collecting the first error encountered.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	contexts := make([]*ProjectContext, 0, len(r.contexts))
	for _, pc := range r.contexts {
		contexts = append(contexts, pc)
	}
	r.contexts = make(map[string]*ProjectContext)
	r.mu.Unlock()

	g, _ := errgroup.WithContext(context.Background())
	for _, pc := range contexts {
		pc := pc
		g.Go(func() error { return disposeContext(pc) })
	}
	return g.Wait()
}

func disposeContext(pc *ProjectContext) error {
	pc.Memory.Close()
	return pc.Store.Close()
}
