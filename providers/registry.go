package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/log"
)

const defaultRefreshTimeout = 30 * time.Second

// Registry resolves "provider:model" references to model objects and keeps a
// cache of model metadata per provider. Metadata refreshes run in the
// background so lookups never block on the network.
type Registry struct {
	mu             sync.RWMutex
	providers      map[string]Provider
	order          []string
	models         map[string][]ModelInfo
	logger         log.Logger
	refreshTimeout time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for refresh events.
func WithLogger(logger log.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithRefreshTimeout bounds each background model-list refresh.
func WithRefreshTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.refreshTimeout = d }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		providers:      map[string]Provider{},
		models:         map[string][]ModelInfo{},
		logger:         log.NewNullLogger(),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a provider under the given ID and kicks off a background
// refresh of its model list. Registering the same ID again replaces the
// provider.
func (r *Registry) Register(id string, provider Provider) {
	r.mu.Lock()
	if _, exists := r.providers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.providers[id] = provider
	r.mu.Unlock()

	go r.refresh(id, provider)
}

// LanguageModel resolves a "provider:model" reference to a language model.
func (r *Registry) LanguageModel(ref string) (llm.LLM, error) {
	providerID, modelName, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	provider, err := r.lookup(providerID)
	if err != nil {
		return nil, err
	}
	model, err := provider.LanguageModel(modelName)
	if err != nil {
		return nil, r.unknownModelError(providerID, modelName, ModelTypeLanguage, err)
	}
	return model, nil
}

// TextEmbeddingModel resolves a "provider:model" reference to an embedding
// model.
func (r *Registry) TextEmbeddingModel(ref string) (llm.EmbeddingLLM, error) {
	providerID, modelName, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	provider, err := r.lookup(providerID)
	if err != nil {
		return nil, err
	}
	model, err := provider.TextEmbeddingModel(modelName)
	if err != nil {
		return nil, r.unknownModelError(providerID, modelName, ModelTypeEmbedding, err)
	}
	return model, nil
}

// Providers returns the registered provider IDs in registration order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Models returns the cached model metadata plus a channel that delivers one
// refreshed snapshot once every provider has been re-queried. The cached
// snapshot may be stale or empty; callers needing freshness receive the
// refreshed one, callers needing immediate data use the snapshot. Refresh
// failures keep the cached entries for the failing provider.
func (r *Registry) Models() ([]ModelInfo, <-chan []ModelInfo) {
	snapshot := r.snapshotModels()

	refreshed := make(chan []ModelInfo, 1)
	go func() {
		defer close(refreshed)
		r.mu.RLock()
		providers := make(map[string]Provider, len(r.providers))
		for id, p := range r.providers {
			providers[id] = p
		}
		r.mu.RUnlock()

		var wg sync.WaitGroup
		for id, p := range providers {
			wg.Add(1)
			go func(id string, p Provider) {
				defer wg.Done()
				r.refresh(id, p)
			}(id, p)
		}
		wg.Wait()
		refreshed <- r.snapshotModels()
	}()
	return snapshot, refreshed
}

func (r *Registry) snapshotModels() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModelInfo
	for _, id := range r.order {
		out = append(out, r.models[id]...)
	}
	return out
}

// refresh re-queries one provider's model list and replaces its cache entry.
// Errors leave the existing entry in place.
func (r *Registry) refresh(id string, provider Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), r.refreshTimeout)
	defer cancel()

	models, err := provider.ListModels(ctx)
	if err != nil {
		r.logger.Debug("model list refresh failed",
			"provider", id, "error", err)
		return
	}
	for i := range models {
		models[i].Provider = id
	}
	r.mu.Lock()
	r.models[id] = models
	r.mu.Unlock()
}

func (r *Registry) lookup(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[id]
	if !ok {
		known := make([]string, len(r.order))
		copy(known, r.order)
		sort.Strings(known)
		return nil, fmt.Errorf("unknown provider %q (known providers: %s)",
			id, strings.Join(known, ", "))
	}
	return provider, nil
}

// unknownModelError augments a provider's model lookup failure with the
// model names currently cached for that provider and type.
func (r *Registry) unknownModelError(providerID, modelName string, t ModelType, cause error) error {
	r.mu.RLock()
	var known []string
	for _, info := range r.models[providerID] {
		if info.Type == t {
			known = append(known, info.Name)
		}
	}
	r.mu.RUnlock()
	if len(known) == 0 {
		return fmt.Errorf("unknown model %q for provider %q: %w",
			modelName, providerID, cause)
	}
	sort.Strings(known)
	return fmt.Errorf("unknown model %q for provider %q (known models: %s): %w",
		modelName, providerID, strings.Join(known, ", "), cause)
}

// splitRef splits a "provider:model" reference on the first colon. Model
// names may themselves contain colons.
func splitRef(ref string) (providerID, modelName string, err error) {
	idx := strings.Index(ref, ":")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("invalid model reference %q: expected \"provider:model\"", ref)
	}
	return ref[:idx], ref[idx+1:], nil
}
