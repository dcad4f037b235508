// Package strand is a lightweight framework for building LLM applications.
// It layers multi-step text generation, streaming, and tool-call
// orchestration on top of the llm package's model interfaces, with provider
// pooling, retry, and concurrency control handled by the pool, retry, and
// limiter packages.
package strand
