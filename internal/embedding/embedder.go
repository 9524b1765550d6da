// Package embedding provides the similarity embedding capability on langchaingo.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/joseph-ayodele/folder-renamer/internal/common"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrDisabled is returned by NewFromConfig when no provider is configured.
var ErrDisabled = errors.New("embeddings disabled")

// LangchainEmbedder wraps a langchaingo embedder with dimension validation.
type LangchainEmbedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
	logger    *slog.Logger
}

// New wraps an existing langchaingo embedder. dimension 0 accepts any length.
func New(model embeddings.Embedder, modelName string, dimension int, logger *slog.Logger) *LangchainEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangchainEmbedder{model: model, dimension: dimension, modelName: modelName, logger: logger}
}

// NewFromConfig builds the configured provider. It returns ErrDisabled when the
// provider is "none" or empty.
func NewFromConfig(cfg *common.Config, logger *slog.Logger) (*LangchainEmbedder, error) {
	ec := cfg.Embeddings
	var model embeddings.Embedder

	switch strings.ToLower(ec.Provider) {
	case "", "none":
		return nil, ErrDisabled
	case "ollama":
		llm, err := ollama.New(
			ollama.WithModel(ec.Model),
			ollama.WithServerURL(ec.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
	case "openai":
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.LLM.APIKey),
			openai.WithEmbeddingModel(ec.Model),
		}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}
	return New(model, ec.Model, ec.Dimension, logger), nil
}

// Embed generates an embedding vector for text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Warn("embedding.failed", "model", e.modelName, "text_len", len(text),
			"duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("no embedding returned")
	}
	v := vectors[0]
	if e.dimension > 0 && len(v) != e.dimension {
		return nil, fmt.Errorf("dimension mismatch: got %d, want %d", len(v), e.dimension)
	}
	e.logger.Debug("embedding.ok", "model", e.modelName, "text_len", len(text),
		"duration_ms", time.Since(start).Milliseconds())
	return v, nil
}

// Model returns the embedding model name.
func (e *LangchainEmbedder) Model() string { return e.modelName }
