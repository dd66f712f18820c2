// Package engine wires together the per-process explicit handle of spec
// §9: the project-context registry, the optional global store, and the
// configuration everything else derives from. Nothing here is a
// process-global singleton; every operation takes an *Engine.
package engine

import (
	"fmt"
	"path/filepath"

	"memoryengine/internal/config"
	"memoryengine/internal/embedding"
	"memoryengine/internal/memory"
	"memoryengine/internal/registry"
	"memoryengine/internal/store"
	"memoryengine/internal/vectorindex"
)

// Engine is the small, explicit handle every operation is given: the
// project registry, the shared global-store memory manager (nil if
// global memory is disabled), and the configuration used to open new
// project contexts.
type Engine struct {
	Config   *config.Config
	Registry *registry.Registry

	globalStore *store.Store
	globalMgr   *memory.Manager
}

// New loads cfg (or defaults, if path doesn't exist), opens the global
// store if enabled, and builds the project registry.
func New(configPath string) (*Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("engine: load config: %w", err)
	}

	e := &Engine{
		Config:   cfg,
		Registry: registry.New(cfg.MaxProjectContexts),
	}

	if cfg.GlobalEnabled {
		if err := e.openGlobal(cfg); err != nil {
			return nil, err
		}
		e.Registry.SetGlobal(e.globalMgr)
	}

	return e, nil
}

func (e *Engine) openGlobal(cfg *config.Config) error {
	globalPath := cfg.GlobalPath
	if globalPath == "" {
		return fmt.Errorf("engine: global_enabled is true but global_path is empty")
	}
	st, err := store.Open(filepath.Join(globalPath, "memory.db"))
	if err != nil {
		return fmt.Errorf("engine: open global store: %w", err)
	}
	e.globalStore = st

	var vec *vectorindex.Index
	if v, vecErr := vectorindex.New(st.DB(), embedding.DefaultDimensions, st.VectorExtAvailable()); vecErr == nil {
		vec = v
	}

	embedCfg := embedding.DefaultConfig()
	embedCfg.Provider = cfg.EmbeddingProvider
	embedCfg.OllamaModel = cfg.EmbeddingModel
	embed, err := embedding.NewEngine(embedCfg)
	if err != nil {
		embed = nil
	}

	e.globalMgr = memory.New(st, vec, embed, memory.GlobalProjectPath, memory.Options{
		HybridVectorWeight:        cfg.HybridVectorWeight,
		SearchDiversityMaxPerFile: cfg.SearchDiversityMaxPerFile,
	})
	return nil
}

// Project returns the ProjectContext for projectPath, opening it if this
// is the first request for it this process.
func (e *Engine) Project(projectPath string) (*registry.ProjectContext, error) {
	pc, err := e.Registry.Get(projectPath, e.Config)
	if err != nil {
		return nil, fmt.Errorf("engine: project context for %s: %w", projectPath, err)
	}
	return pc, nil
}

// Close disposes every open project context and the global store.
func (e *Engine) Close() error {
	err := e.Registry.CloseAll()
	if e.globalMgr != nil {
		e.globalMgr.Close()
	}
	if e.globalStore != nil {
		if closeErr := e.globalStore.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
