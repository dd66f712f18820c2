package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValues(t *testing.T) {
	c := DefaultConfig()
	if c.MaxProjectContexts != 10 {
		t.Errorf("MaxProjectContexts = %d, want 10", c.MaxProjectContexts)
	}
	if c.HybridVectorWeight != 0.3 {
		t.Errorf("HybridVectorWeight = %v, want 0.3", c.HybridVectorWeight)
	}
	if c.EmbeddingModel != "all-MiniLM-L6-v2" {
		t.Errorf("EmbeddingModel = %q, want all-MiniLM-L6-v2", c.EmbeddingModel)
	}
}

func TestLoadMissingFileReturnsDefaultsPlusGeneratedSecret(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxProjectContexts != 10 {
		t.Errorf("expected default MaxProjectContexts, got %d", cfg.MaxProjectContexts)
	}
	if cfg.TokenSecret == "" {
		t.Error("expected a generated TokenSecret")
	}
}

func TestLoadParsesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "project_root: /tmp/myproj\nhybrid_vector_weight: 0.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ProjectRoot != "/tmp/myproj" {
		t.Errorf("ProjectRoot = %q, want /tmp/myproj", cfg.ProjectRoot)
	}
	if cfg.HybridVectorWeight != 0.5 {
		t.Errorf("HybridVectorWeight = %v, want 0.5", cfg.HybridVectorWeight)
	}
}

func TestEnvOverridesWinOverFileAndDefaults(t *testing.T) {
	t.Setenv("CLAUDE_MEMORY_MAX_PROJECT_CONTEXTS", "25")
	t.Setenv("CLAUDE_MEMORY_EMBEDDING_MODEL", "custom-model")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxProjectContexts != 25 {
		t.Errorf("MaxProjectContexts = %d, want 25 from env", cfg.MaxProjectContexts)
	}
	if cfg.EmbeddingModel != "custom-model" {
		t.Errorf("EmbeddingModel = %q, want custom-model from env", cfg.EmbeddingModel)
	}
}

func TestStorageDirPrefersExplicitOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectRoot = "/home/user/project"
	cfg.StoragePath = "/custom/storage"
	if got := cfg.StorageDir(); got != "/custom/storage" {
		t.Errorf("StorageDir() = %q, want /custom/storage", got)
	}

	cfg.StoragePath = ""
	if got := cfg.StorageDir(); got != filepath.Join("/home/user/project", ".claude-memory", "storage") {
		t.Errorf("StorageDir() = %q, want derived path", got)
	}
}
