package openaichat

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/retry"
	"github.com/openai/openai-go"
)

// EmbeddingModel is a pool-backed llm.EmbeddingLLM over the embeddings API.
type EmbeddingModel struct {
	provider *Provider
	model    string
}

func (m *EmbeddingModel) Name() string {
	return m.model
}

func (m *EmbeddingModel) BatchSize() int {
	return DefaultEmbeddingBatchSize
}

// Embed converts the given values to vectors, preserving input order.
func (m *EmbeddingModel) Embed(ctx context.Context, values []string, opts ...llm.EmbedOption) (*llm.EmbedResponse, error) {
	config := &llm.EmbedConfig{Model: m.model}
	config.Apply(opts...)

	handle, client, err := m.provider.acquire()
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	params := openai.EmbeddingNewParams{
		Model: config.Model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: values,
		},
	}
	if config.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(config.Dimensions))
	}

	var response *llm.EmbedResponse
	err = retry.Do(ctx, func() error {
		result, err := client.Embeddings.New(ctx, params)
		if err != nil {
			return translateError(err)
		}
		if len(result.Data) != len(values) {
			return retry.MarkPermanent(fmt.Errorf(
				"expected %d embeddings, got %d", len(values), len(result.Data)))
		}
		embeddings := make([][]float64, len(values))
		for _, item := range result.Data {
			if int(item.Index) >= len(values) {
				return retry.MarkPermanent(fmt.Errorf(
					"unexpected embedding index %d", item.Index))
			}
			embeddings[item.Index] = item.Embedding
		}
		response = &llm.EmbedResponse{
			Embeddings: embeddings,
			Model:      result.Model,
			Usage: llm.Usage{
				InputTokens: int(result.Usage.PromptTokens),
				TotalTokens: int(result.Usage.TotalTokens),
			},
		}
		return nil
	}, retry.WithMaxRetries(configMaxRetries(handle.Config)))
	if err != nil {
		return nil, err
	}
	return response, nil
}
