package strand

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/strand/limiter"
	"github.com/deepnoodle-ai/strand/llm"
)

// DefaultEmbedConcurrency bounds how many embedding batches run at once.
const DefaultEmbedConcurrency = 4

// EmbedManyResult is the outcome of an EmbedMany call. Embeddings are in
// input order.
type EmbedManyResult struct {
	Embeddings [][]float64 `json:"embeddings"`
	Model      string      `json:"model"`
	Usage      llm.Usage   `json:"usage"`
}

// EmbedManyOption configures an EmbedMany call.
type EmbedManyOption func(*embedManyOptions)

type embedManyOptions struct {
	concurrency int
	embedOpts   []llm.EmbedOption
}

// WithEmbedConcurrency bounds concurrent batch requests.
func WithEmbedConcurrency(n int) EmbedManyOption {
	return func(o *embedManyOptions) { o.concurrency = n }
}

// WithEmbedOptions passes model-level options through to each batch call.
func WithEmbedOptions(opts ...llm.EmbedOption) EmbedManyOption {
	return func(o *embedManyOptions) { o.embedOpts = opts }
}

// EmbedMany embeds a slice of values, splitting the input into batches no
// larger than the model's batch size and running batches concurrently.
// Results are merged in input order with usage accumulated additively. Any
// batch failure fails the whole call.
func EmbedMany(ctx context.Context, model llm.EmbeddingLLM, values []string, opts ...EmbedManyOption) (*EmbedManyResult, error) {
	options := &embedManyOptions{concurrency: DefaultEmbedConcurrency}
	for _, opt := range opts {
		opt(options)
	}
	if len(values) == 0 {
		return &EmbedManyResult{}, nil
	}

	batchSize := model.BatchSize()
	if batchSize <= 0 {
		batchSize = len(values)
	}
	batches := chunkStrings(values, batchSize)

	l := limiter.New(options.concurrency)
	futures := make([]*limiter.Future[*llm.EmbedResponse], len(batches))
	for i, batch := range batches {
		futures[i] = limiter.Submit(l, func() (*llm.EmbedResponse, error) {
			return model.Embed(ctx, batch, options.embedOpts...)
		})
	}

	result := &EmbedManyResult{}
	for i, future := range futures {
		response, err := future.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d failed: %w", i, err)
		}
		result.Embeddings = append(result.Embeddings, response.Embeddings...)
		result.Usage.Add(&response.Usage)
		if response.Model != "" {
			result.Model = response.Model
		}
	}
	return result, nil
}

// chunkStrings splits values into slices of at most size elements.
func chunkStrings(values []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
