// Package config loads engine configuration: built-in defaults, overridden
// by a YAML file at <project>/.claude-memory/config.yaml, overridden in
// turn by CLAUDE_MEMORY_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"memoryengine/internal/logging"
)

// Config holds all engine configuration (spec §6).
type Config struct {
	ProjectRoot string `yaml:"project_root"`
	StoragePath string `yaml:"storage_path"` // absolute override; "" derives from ProjectRoot

	LogLevel string `yaml:"log_level"`

	MaxProjectContexts             int     `yaml:"max_project_contexts"`
	ContextTTLSeconds              int     `yaml:"context_ttl_seconds"`
	PendingDecisionThresholdHours  int     `yaml:"pending_decision_threshold_hours"`
	HybridVectorWeight             float64 `yaml:"hybrid_vector_weight"`
	SearchDiversityMaxPerFile      int     `yaml:"search_diversity_max_per_file"`

	EmbeddingModel    string `yaml:"embedding_model"`
	EmbeddingProvider string `yaml:"embedding_provider"`

	GlobalEnabled      bool   `yaml:"global_enabled"`
	GlobalPath         string `yaml:"global_path"`
	GlobalWriteEnabled bool   `yaml:"global_write_enabled"`

	TokenSecret string `yaml:"token_secret"`
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:                      "info",
		MaxProjectContexts:            10,
		ContextTTLSeconds:             300,
		PendingDecisionThresholdHours: 24,
		HybridVectorWeight:            0.3,
		SearchDiversityMaxPerFile:     3,
		EmbeddingModel:                "all-MiniLM-L6-v2",
		EmbeddingProvider:             "ollama",
		GlobalEnabled:                 false,
		GlobalWriteEnabled:            false,
	}
}

// Load reads defaults, then path (if it exists), then environment
// overrides. A missing file is not an error: it's the documented "pure
// defaults + env" path.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		logging.Boot("config loaded from %s", path)
	case os.IsNotExist(err):
		logging.Boot("config file not found at %s, using defaults + environment", path)
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if cfg.TokenSecret == "" {
		secret, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("config: generate token secret: %w", err)
		}
		cfg.TokenSecret = secret
		logging.BootDebug("no TOKEN_SECRET configured, generated a process-lifetime secret")
	}

	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

const envPrefix = "CLAUDE_MEMORY_"

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envPrefix + "PROJECT_ROOT"); v != "" {
		c.ProjectRoot = v
	}
	if v := os.Getenv(envPrefix + "STORAGE_PATH"); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v, ok := envInt(envPrefix + "MAX_PROJECT_CONTEXTS"); ok {
		c.MaxProjectContexts = v
	}
	if v, ok := envInt(envPrefix + "CONTEXT_TTL_SECONDS"); ok {
		c.ContextTTLSeconds = v
	}
	if v, ok := envInt(envPrefix + "PENDING_DECISION_THRESHOLD_HOURS"); ok {
		c.PendingDecisionThresholdHours = v
	}
	if v, ok := envFloat(envPrefix + "HYBRID_VECTOR_WEIGHT"); ok {
		c.HybridVectorWeight = v
	}
	if v, ok := envInt(envPrefix + "SEARCH_DIVERSITY_MAX_PER_FILE"); ok {
		c.SearchDiversityMaxPerFile = v
	}
	if v := os.Getenv(envPrefix + "EMBEDDING_MODEL"); v != "" {
		c.EmbeddingModel = v
	}
	if v, ok := envBool(envPrefix + "GLOBAL_ENABLED"); ok {
		c.GlobalEnabled = v
	}
	if v := os.Getenv(envPrefix + "GLOBAL_PATH"); v != "" {
		c.GlobalPath = v
	}
	if v, ok := envBool(envPrefix + "GLOBAL_WRITE_ENABLED"); ok {
		c.GlobalWriteEnabled = v
	}
	if v := os.Getenv(envPrefix + "TOKEN_SECRET"); v != "" {
		c.TokenSecret = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.BootWarn("config: ignoring invalid int for %s: %q", key, v)
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logging.BootWarn("config: ignoring invalid float for %s: %q", key, v)
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.BootWarn("config: ignoring invalid bool for %s: %q", key, v)
		return false, false
	}
	return b, true
}

// ContextTTL returns ContextTTLSeconds as a Duration.
func (c *Config) ContextTTL() time.Duration {
	return time.Duration(c.ContextTTLSeconds) * time.Second
}

// PendingDecisionThreshold returns PendingDecisionThresholdHours as a Duration.
func (c *Config) PendingDecisionThreshold() time.Duration {
	return time.Duration(c.PendingDecisionThresholdHours) * time.Hour
}

// StorageDir resolves the durable store's directory: StoragePath if set,
// else <ProjectRoot>/.claude-memory/storage.
func (c *Config) StorageDir() string {
	if c.StoragePath != "" {
		return c.StoragePath
	}
	return filepath.Join(c.ProjectRoot, ".claude-memory", "storage")
}
