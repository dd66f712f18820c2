// Package embedding generates the dense vectors behind the hybrid
// searcher's vector half. Supports two backends: a local Ollama server and
// Google's GenAI API. Both are normalized to a single configured
// dimensionality (384 by default) so the rest of the system never has to
// know which backend produced a vector.
package embedding

import (
	"context"
	"fmt"
	"math"

	"memoryengine/internal/logging"
)

// DefaultDimensions is the vector width the durable store and the dense
// vector index are built around.
const DefaultDimensions = 384

// Engine generates vector embeddings for text, normalized to Dimensions().
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality this engine's vectors are
	// normalized to.
	Dimensions() int

	// Name identifies the backend, for logging and stats.
	Name() string
}

// HealthChecker is an optional interface for engines that can verify
// service availability ahead of a batch operation.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds embedding engine configuration, populated from
// EMBEDDING_MODEL / EMBEDDING_PROVIDER and friends (spec §6 config table).
type Config struct {
	Provider string `yaml:"provider"` // "ollama" or "genai"

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
	TaskType    string `yaml:"task_type"`

	// Dimensions is the normalized output width; all backends are
	// truncated or zero-padded to this length. 0 means DefaultDimensions.
	Dimensions int `yaml:"dimensions"`
}

// DefaultConfig returns the all-MiniLM-L6-v2-equivalent local default:
// Ollama, truncated/padded to 384 dims.
func DefaultConfig() Config {
	return Config{
		Provider:       "ollama",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "all-minilm",
		GenAIModel:     "gemini-embedding-001",
		TaskType:       "SEMANTIC_SIMILARITY",
		Dimensions:     DefaultDimensions,
	}
}

// NewEngine builds an Engine from cfg, wrapping the chosen backend in a
// dimension normalizer.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	logging.Embedding("creating embedding engine: provider=%s dims=%d", cfg.Provider, dims)

	var inner Engine
	var err error
	switch cfg.Provider {
	case "ollama":
		inner, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		taskType := cfg.TaskType
		if taskType == "" {
			taskType = GetOptimalTaskType("", false)
		}
		inner, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, taskType)
	default:
		return nil, fmt.Errorf("embedding: unsupported provider %q (use ollama or genai)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &normalizedEngine{inner: inner, dims: dims}, nil
}

// normalizedEngine truncates or zero-pads an inner engine's native
// dimensionality to a fixed width, so callers (the store, the vector index)
// only ever deal in one dimension regardless of backend.
type normalizedEngine struct {
	inner Engine
	dims  int
}

func (e *normalizedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return resize(v, e.dims), nil
}

func (e *normalizedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := e.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vs))
	for i, v := range vs {
		out[i] = resize(v, e.dims)
	}
	return out, nil
}

func (e *normalizedEngine) Dimensions() int { return e.dims }
func (e *normalizedEngine) Name() string    { return e.inner.Name() }

func (e *normalizedEngine) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func resize(v []float32, dims int) []float32 {
	if len(v) == dims {
		return v
	}
	out := make([]float32, dims)
	copy(out, v) // shorter source zero-pads the tail; longer source truncates
	return out
}

// CosineSimilarity computes the cosine similarity between two equal-length
// vectors, in [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding: vector length mismatch: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
