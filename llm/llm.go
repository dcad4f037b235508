// Package llm defines the message, content, and model abstractions shared by
// every generation engine and provider adapter in Strand.
package llm

import "context"

// LLM is a language model that can generate a complete response.
type LLM interface {
	// Name identifies the provider implementation.
	Name() string

	// Generate a response by passing a conversation.
	Generate(ctx context.Context, opts ...Option) (*Response, error)
}

// StreamingLLM is a language model that can stream a response.
type StreamingLLM interface {
	LLM

	// Stream a response by passing a conversation.
	Stream(ctx context.Context, opts ...Option) (StreamIterator, error)
}

// EmbeddingLLM is a model that converts text to embedding vectors.
type EmbeddingLLM interface {
	// Name identifies the provider implementation.
	Name() string

	// BatchSize returns the maximum number of inputs accepted per call.
	// Zero means unlimited.
	BatchSize() int

	// Embed converts the given values to vectors.
	Embed(ctx context.Context, values []string, opts ...EmbedOption) (*EmbedResponse, error)
}

// EmbedConfig holds configuration for one embedding call.
type EmbedConfig struct {
	Model      string
	Dimensions int
}

// EmbedOption configures an embedding call.
type EmbedOption func(*EmbedConfig)

// Apply applies the given options to the config.
func (c *EmbedConfig) Apply(opts ...EmbedOption) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithEmbedModel sets the embedding model name.
func WithEmbedModel(model string) EmbedOption {
	return func(config *EmbedConfig) {
		config.Model = model
	}
}

// WithDimensions sets the requested output dimensionality.
func WithDimensions(dimensions int) EmbedOption {
	return func(config *EmbedConfig) {
		config.Dimensions = dimensions
	}
}

// EmbedResponse carries embedding vectors in input order.
type EmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Model      string      `json:"model,omitempty"`
	Usage      Usage       `json:"usage"`
}
