// Package providers maps "provider:model" identifiers to concrete model
// implementations and caches model metadata with asynchronous refresh.
package providers

import (
	"context"

	"github.com/deepnoodle-ai/strand/llm"
)

// ModelType distinguishes language models from embedding models.
type ModelType string

const (
	ModelTypeLanguage  ModelType = "language"
	ModelTypeEmbedding ModelType = "embedding"
)

// ModelInfo describes one model offered by a provider. Cost fields are
// per-token in USD; zero means unknown.
type ModelInfo struct {
	Provider           string    `json:"provider"`
	Name               string    `json:"name"`
	Type               ModelType `json:"type"`
	ContextTokens      int       `json:"context_tokens,omitempty"`
	InputCostPerToken  float64   `json:"input_cost_per_token,omitempty"`
	OutputCostPerToken float64   `json:"output_cost_per_token,omitempty"`
}

// Provider is a logical backend exposing language and embedding models. A
// provider may spread requests across multiple pooled configs internally.
type Provider interface {
	// LanguageModel returns the named language model, or an error naming
	// the models this provider does offer.
	LanguageModel(name string) (llm.LLM, error)

	// TextEmbeddingModel returns the named embedding model.
	TextEmbeddingModel(name string) (llm.EmbeddingLLM, error)

	// ListModels enumerates the provider's models. Called asynchronously
	// by the registry to maintain its metadata cache.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
