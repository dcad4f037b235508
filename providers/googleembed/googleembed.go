// Package googleembed adapts the Google AI embedding API to the
// llm.EmbeddingLLM interface.
package googleembed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/providers"
	"github.com/deepnoodle-ai/strand/retry"
	"google.golang.org/genai"
)

var (
	DefaultModel      = "text-embedding-004"
	DefaultTaskType   = "RETRIEVAL_DOCUMENT"
	DefaultMaxRetries = 3
	DefaultRetryWait  = 200 * time.Millisecond
)

// Provider offers Google AI embedding models. It implements
// providers.Provider; language model lookups always fail since this adapter
// only covers embeddings.
type Provider struct {
	apiKey     string
	projectID  string
	location   string
	taskType   string
	maxRetries int
	retryWait  time.Duration

	mu     sync.Mutex
	client *genai.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithAPIKey sets the API key, overriding the environment.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) { p.apiKey = apiKey }
}

// WithProject sets the Google Cloud project and location for Vertex AI.
func WithProject(projectID, location string) Option {
	return func(p *Provider) {
		p.projectID = projectID
		p.location = location
	}
}

// WithTaskType sets the embedding task type. Valid values include
// "RETRIEVAL_QUERY", "RETRIEVAL_DOCUMENT", "SEMANTIC_SIMILARITY",
// "CLASSIFICATION", and "CLUSTERING".
func WithTaskType(taskType string) Option {
	return func(p *Provider) { p.taskType = taskType }
}

// WithMaxRetries sets the retry limit for failed requests.
func WithMaxRetries(maxRetries int) Option {
	return func(p *Provider) { p.maxRetries = maxRetries }
}

// WithClient sets a pre-configured genai client.
func WithClient(client *genai.Client) Option {
	return func(p *Provider) { p.client = client }
}

// New creates a Google embedding provider. The API key falls back to the
// GEMINI_API_KEY and GOOGLE_API_KEY environment variables.
func New(opts ...Option) *Provider {
	p := &Provider{
		taskType:   DefaultTaskType,
		maxRetries: DefaultMaxRetries,
		retryWait:  DefaultRetryWait,
	}
	if value := os.Getenv("GEMINI_API_KEY"); value != "" {
		p.apiKey = value
	} else if value := os.Getenv("GOOGLE_API_KEY"); value != "" {
		p.apiKey = value
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LanguageModel always fails; this adapter only provides embeddings.
func (p *Provider) LanguageModel(name string) (llm.LLM, error) {
	return nil, errors.New("language models are not supported by this provider")
}

// TextEmbeddingModel returns the named embedding model.
func (p *Provider) TextEmbeddingModel(name string) (llm.EmbeddingLLM, error) {
	if name == "" {
		name = DefaultModel
	}
	return &EmbeddingModel{provider: p, model: name}, nil
}

// ListModels returns the known embedding models. The Google embedding API
// has no catalog endpoint, so this is a static list.
func (p *Provider) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	return []providers.ModelInfo{
		{Name: "text-embedding-004", Type: providers.ModelTypeEmbedding},
		{Name: "gemini-embedding-001", Type: providers.ModelTypeEmbedding},
	}, nil
}

func (p *Provider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:   p.apiKey,
		Project:  p.projectID,
		Location: p.location,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %w", err)
	}
	p.client = client
	return client, nil
}

// EmbeddingModel is an llm.EmbeddingLLM over the EmbedContent API.
type EmbeddingModel struct {
	provider *Provider
	model    string
}

func (m *EmbeddingModel) Name() string {
	return m.model
}

// BatchSize is 1: the EmbedContent API processes one input per call.
func (m *EmbeddingModel) BatchSize() int {
	return 1
}

// Embed converts the given values to vectors, one API call per value. The
// API does not report token counts, so usage is estimated at roughly four
// characters per token.
func (m *EmbeddingModel) Embed(ctx context.Context, values []string, opts ...llm.EmbedOption) (*llm.EmbedResponse, error) {
	config := &llm.EmbedConfig{Model: m.model}
	config.Apply(opts...)

	client, err := m.provider.getClient(ctx)
	if err != nil {
		return nil, err
	}

	embedConfig := &genai.EmbedContentConfig{TaskType: m.provider.taskType}
	if config.Dimensions > 0 {
		dimensions := int32(config.Dimensions)
		embedConfig.OutputDimensionality = &dimensions
	}

	embeddings := make([][]float64, 0, len(values))
	var estimatedTokens int
	for _, value := range values {
		var result *genai.EmbedContentResponse
		err := retry.Do(ctx, func() error {
			var err error
			result, err = client.Models.EmbedContent(ctx, config.Model, genai.Text(value), embedConfig)
			if err != nil {
				return fmt.Errorf("embed content failed: %w", err)
			}
			return nil
		}, retry.WithMaxRetries(m.provider.maxRetries), retry.WithBaseWait(m.provider.retryWait))
		if err != nil {
			return nil, err
		}
		if len(result.Embeddings) == 0 {
			return nil, errors.New("no embeddings returned from API")
		}

		vector := make([]float64, len(result.Embeddings[0].Values))
		for i, v := range result.Embeddings[0].Values {
			vector[i] = float64(v)
		}
		embeddings = append(embeddings, vector)
		estimatedTokens += (len(value) + 3) / 4
	}

	return &llm.EmbedResponse{
		Embeddings: embeddings,
		Model:      config.Model,
		Usage: llm.Usage{
			InputTokens: estimatedTokens,
			TotalTokens: estimatedTokens,
		},
	}, nil
}
