package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState() {
	CloseAll()
	CloseAudit()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	configLoaded = false
	config = loggingConfig{}
}

func TestAllCategoriesLog(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".claude-memory")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true, "store": true, "embedding": true, "cache": true,
				"memory": true, "graph": true, "rules": true, "protocol": true,
				"registry": true, "entities": true, "search": true
			}
		}
	}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode enabled")
	}

	categories := []Category{
		CategoryBoot, CategoryStore, CategoryEmbedding, CategoryCache,
		CategoryMemory, CategoryGraph, CategoryRules, CategoryProtocol,
		CategoryRegistry, CategoryEntities, CategorySearch,
	}
	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("category %s should be enabled", cat)
		}
		l := Get(cat)
		l.Info("info %s", cat)
		l.Debug("debug %s", cat)
		l.Warn("warn %s", cat)
		l.Error("error %s", cat)
	}

	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, ".claude-memory", "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	for _, cat := range categories {
		found := false
		for _, e := range entries {
			if strings.Contains(e.Name(), string(cat)+".log") {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no log file found for category %s", cat)
		}
	}
}

func TestDebugModeDisabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_disabled")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".claude-memory")
	os.MkdirAll(configDir, 0755)
	os.WriteFile(filepath.Join(configDir, "config.json"),
		[]byte(`{"logging": {"level": "debug", "debug_mode": false}}`), 0644)

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsDebugMode() {
		t.Fatal("expected debug mode disabled")
	}
	if IsCategoryEnabled(CategoryBoot) {
		t.Error("boot should be disabled in production mode")
	}

	Boot("should not be logged")
	CloseAll()

	if _, err := os.Stat(filepath.Join(tempDir, ".claude-memory", "logs")); err == nil {
		entries, _ := os.ReadDir(filepath.Join(tempDir, ".claude-memory", "logs"))
		if len(entries) > 0 {
			t.Errorf("expected no log files in production mode, found %d", len(entries))
		}
	}
}

func TestCategoryToggle(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_category")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".claude-memory")
	os.MkdirAll(configDir, 0755)
	os.WriteFile(filepath.Join(configDir, "config.json"), []byte(`{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {"boot": true, "cache": false}
		}
	}`), 0644)

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryBoot) {
		t.Error("boot should be enabled")
	}
	if IsCategoryEnabled(CategoryCache) {
		t.Error("cache should be disabled")
	}
	if !IsCategoryEnabled(CategoryMemory) {
		t.Error("memory (not in config) should default to enabled")
	}

	CloseAll()
}

func TestTimerLogging(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_timer")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".claude-memory")
	os.MkdirAll(configDir, 0755)
	os.WriteFile(filepath.Join(configDir, "config.json"), []byte(`{"logging": {"level": "debug", "debug_mode": true}}`), 0644)

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	timer := StartTimer(CategoryStore, "test-op")
	time.Sleep(time.Millisecond)
	if elapsed := timer.Stop(); elapsed <= 0 {
		t.Error("expected non-zero elapsed duration")
	}

	CloseAll()
}
