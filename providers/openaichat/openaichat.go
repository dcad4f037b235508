// Package openaichat adapts the OpenAI Chat Completions API (and any
// OpenAI-compatible endpoint) to the llm model interfaces. Each request
// leases a backend config from a pool, so one logical provider can spread
// load across multiple keys and endpoints.
package openaichat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/pool"
	"github.com/deepnoodle-ai/strand/providers"
	"github.com/deepnoodle-ai/strand/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultEmbeddingBatchSize is the largest input batch accepted by the
// OpenAI embeddings endpoint.
const DefaultEmbeddingBatchSize = 2048

// Provider offers chat and embedding models backed by a config pool.
type Provider struct {
	pool     *pool.Pool
	strategy []pool.Strategy
}

// Option configures a Provider.
type Option func(*Provider)

// WithStrategy overrides the pool's default selection strategy for this
// provider's requests.
func WithStrategy(s pool.Strategy) Option {
	return func(p *Provider) { p.strategy = []pool.Strategy{s} }
}

// New creates a provider over the given config pool.
func New(configs *pool.Pool, opts ...Option) *Provider {
	p := &Provider{pool: configs}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LanguageModel returns a chat model for the given model name. Names are not
// validated here; unknown models fail at request time.
func (p *Provider) LanguageModel(name string) (llm.LLM, error) {
	return &ChatModel{provider: p, model: name}, nil
}

// TextEmbeddingModel returns an embedding model for the given model name.
func (p *Provider) TextEmbeddingModel(name string) (llm.EmbeddingLLM, error) {
	return &EmbeddingModel{provider: p, model: name}, nil
}

// ListModels queries the backend's model catalog.
func (p *Provider) ListModels(ctx context.Context) ([]providers.ModelInfo, error) {
	handle, client, err := p.acquire()
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	infos := make([]providers.ModelInfo, 0, len(page.Data))
	for _, model := range page.Data {
		infos = append(infos, providers.ModelInfo{
			Name: model.ID,
			Type: modelTypeOf(model.ID),
		})
	}
	return infos, nil
}

func modelTypeOf(id string) providers.ModelType {
	if strings.Contains(id, "embedding") || strings.Contains(id, "embed-") {
		return providers.ModelTypeEmbedding
	}
	return providers.ModelTypeLanguage
}

// acquire leases a pool config and builds a client for it. The handle must
// be released when the request completes.
func (p *Provider) acquire() (*pool.Handle, openai.Client, error) {
	handle, err := p.pool.Get(p.strategy...)
	if err != nil {
		return nil, openai.Client{}, err
	}
	return handle, clientFor(handle.Config), nil
}

// clientFor builds a client for one backend config. SDK-level retries are
// disabled; retry policy lives in the adapter so it can honor the config's
// MaxRetries.
func clientFor(cfg pool.Config) openai.Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout),
		}))
	}
	return openai.NewClient(opts...)
}

// configMaxRetries resolves a config's retry budget. Zero means the config
// left it unset and the retry package default applies.
func configMaxRetries(cfg pool.Config) int {
	if cfg.MaxRetries > 0 {
		return cfg.MaxRetries
	}
	return retry.DefaultMaxRetries
}

// translateError maps SDK errors onto the provider error taxonomy so the
// retry layer can distinguish transient failures from permanent ones.
func translateError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return providers.NewError(apierr.StatusCode, apierr.Message)
	}
	return err
}
