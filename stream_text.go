package strand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deepnoodle-ai/strand/llm"
)

// StreamTextResult exposes a running streaming generation. Stream views are
// created lazily: a view never requested receives nothing and costs nothing,
// and each view observes parts published after its creation. The deferred
// accessors (Text, Usage, FinishReason, ...) are one-shot promises that all
// settle together when the producer finishes.
type StreamTextResult struct {
	id     string
	fan    *fanout
	cancel context.CancelFunc

	text         *Promise[string]
	reasoning    *Promise[string]
	usage        *Promise[llm.Usage]
	finishReason *Promise[llm.FinishReason]
	toolCalls    *Promise[[]*llm.ToolUseContent]
	toolResults  *Promise[[]*llm.ToolResultContent]
	steps        *Promise[[]*Step]
	metadata     *Promise[*ResponseMetadata]
	sources      *Promise[[]*llm.Source]
}

// ID identifies this generation in log output.
func (r *StreamTextResult) ID() string { return r.id }

// FullStream returns a view of every stream part.
func (r *StreamTextResult) FullStream() <-chan StreamPart {
	return r.fan.subscribe()
}

// TextStream returns a view carrying only text deltas.
func (r *StreamTextResult) TextStream() <-chan string {
	parts := r.fan.subscribe()
	out := make(chan string, streamBufferSize)
	go func() {
		defer close(out)
		for part := range parts {
			if part.Type == StreamPartTypeTextDelta {
				out <- part.TextDelta
			}
		}
	}()
	return out
}

// MessageStream returns a view of the stream as mergeable message chunks.
func (r *StreamTextResult) MessageStream() <-chan *llm.MessageChunk {
	parts := r.fan.subscribe()
	out := make(chan *llm.MessageChunk, streamBufferSize)
	go func() {
		defer close(out)
		for part := range parts {
			if chunk := partToChunk(part); chunk != nil {
				out <- chunk
			}
		}
	}()
	return out
}

func partToChunk(part StreamPart) *llm.MessageChunk {
	switch part.Type {
	case StreamPartTypeTextDelta:
		return &llm.MessageChunk{
			Message: llm.Message{
				Role:    llm.Assistant,
				Content: []llm.Content{&llm.TextContent{Text: part.TextDelta}},
			},
			Chunk: true,
		}
	case StreamPartTypeReasoning:
		return &llm.MessageChunk{
			Message: llm.Message{
				Role:    llm.Assistant,
				Content: []llm.Content{&llm.ThinkingContent{Thinking: part.Reasoning}},
			},
			Chunk: true,
		}
	case StreamPartTypeToolCall:
		return &llm.MessageChunk{
			Message: llm.Message{
				Role:    llm.Assistant,
				Content: []llm.Content{part.ToolCall},
			},
			Chunk: true,
		}
	case StreamPartTypeToolResult:
		return &llm.MessageChunk{
			Message: llm.Message{
				Role:    llm.ToolRole,
				Content: []llm.Content{part.ToolResult},
			},
			Chunk: true,
		}
	default:
		return nil
	}
}

// Text resolves to the final accumulated text.
func (r *StreamTextResult) Text() *Promise[string] { return r.text }

// Reasoning resolves to the accumulated model reasoning.
func (r *StreamTextResult) Reasoning() *Promise[string] { return r.reasoning }

// Usage resolves to the total token usage across all steps.
func (r *StreamTextResult) Usage() *Promise[llm.Usage] { return r.usage }

// FinishReason resolves to the reason the generation ended.
func (r *StreamTextResult) FinishReason() *Promise[llm.FinishReason] { return r.finishReason }

// ToolCalls resolves to every tool call requested across all steps.
func (r *StreamTextResult) ToolCalls() *Promise[[]*llm.ToolUseContent] { return r.toolCalls }

// ToolResults resolves to every tool result across all steps.
func (r *StreamTextResult) ToolResults() *Promise[[]*llm.ToolResultContent] { return r.toolResults }

// Steps resolves to the per-step records.
func (r *StreamTextResult) Steps() *Promise[[]*Step] { return r.steps }

// Metadata resolves to the most recent response metadata.
func (r *StreamTextResult) Metadata() *Promise[*ResponseMetadata] { return r.metadata }

// Sources resolves to the citations collected across all steps.
func (r *StreamTextResult) Sources() *Promise[[]*llm.Source] { return r.sources }

// Close aborts the producer. Promises settle with whatever progress was made.
func (r *StreamTextResult) Close() error {
	r.cancel()
	return nil
}

// StreamText starts a multi-step streaming generation. Stream parts flow to
// the views as the model produces them; tool calls execute synchronously
// between steps with their results fed back to the model, the same step
// policy as GenerateText. The returned error covers setup problems only;
// failures during streaming surface as an error part and reject the
// promises.
func StreamText(ctx context.Context, model llm.StreamingLLM, opts ...Option) (*StreamTextResult, error) {
	options := applyOptions(opts)
	messages, err := options.buildMessages()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	result := &StreamTextResult{
		id:           llm.NewID(),
		fan:          newFanout(),
		cancel:       cancel,
		text:         NewPromise[string](),
		reasoning:    NewPromise[string](),
		usage:        NewPromise[llm.Usage](),
		finishReason: NewPromise[llm.FinishReason](),
		toolCalls:    NewPromise[[]*llm.ToolUseContent](),
		toolResults:  NewPromise[[]*llm.ToolResultContent](),
		steps:        NewPromise[[]*Step](),
		metadata:     NewPromise[*ResponseMetadata](),
		sources:      NewPromise[[]*llm.Source](),
	}
	s := &streamer{
		model:    model,
		options:  options,
		toolset:  toolsetOf(options.Tools),
		fan:      result.fan,
		result:   result,
		messages: messages,
	}
	go s.run(ctx)
	return result, nil
}

// streamer owns all mutable state of one StreamText call. It runs in a
// single goroutine; consumers only see published parts and settled promises.
type streamer struct {
	model   llm.StreamingLLM
	options *Options
	toolset map[string]llm.Tool
	fan     *fanout
	result  *StreamTextResult

	messages     []*llm.Message
	finalText    string
	reasoning    strings.Builder
	usage        llm.Usage
	steps        []*Step
	toolCalls    []*llm.ToolUseContent
	toolResults  []*llm.ToolResultContent
	sources      []*llm.Source
	metadata     *ResponseMetadata
	finishReason llm.FinishReason
	lastKind     StreamPartType
}

func (s *streamer) run(ctx context.Context) {
	err := s.produce(ctx)
	if err != nil && !isCancellation(err) {
		// Consumers see prior progress plus the failure before the
		// stream ends.
		_ = s.publish(ctx, StreamPart{Type: StreamPartTypeError, Err: err})
	}
	s.fan.close()
	s.settle(err)
}

func (s *streamer) produce(ctx context.Context) error {
	stepType := StepTypeInitial
	for len(s.steps) < s.options.MaxSteps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.publish(ctx, StreamPart{Type: StreamPartTypeStepStart, StepType: stepType}); err != nil {
			return err
		}

		step, err := s.streamStep(ctx, stepType)
		if err != nil {
			return err
		}
		s.steps = append(s.steps, step)
		s.usage.Add(&step.Usage)
		s.finishReason = step.FinishReason
		if stepType == StepTypeContinue {
			s.finalText += step.Text
		} else {
			s.finalText = step.Text
		}

		if err := s.publish(ctx, StreamPart{Type: StreamPartTypeStepFinish, Step: step}); err != nil {
			return err
		}

		if len(step.ToolCalls) > 0 {
			results, returnDirect := ExecuteTools(ctx, step.ToolCalls, s.toolset)
			step.ToolResults = results
			s.toolCalls = append(s.toolCalls, step.ToolCalls...)
			s.toolResults = append(s.toolResults, results...)
			for _, result := range results {
				if err := s.publishContent(ctx, StreamPart{Type: StreamPartTypeToolResult, ToolResult: result}); err != nil {
					return err
				}
			}
			s.messages = append(s.messages, llm.NewToolResultMessage(results...))
			if returnDirect {
				break
			}
			stepType = StepTypeToolResult
			continue
		}

		if step.FinishReason == llm.FinishReasonLength {
			stepType = StepTypeContinue
			continue
		}
		break
	}

	usage := s.usage
	return s.publish(ctx, StreamPart{
		Type:         StreamPartTypeFinish,
		FinishReason: s.finishReason,
		Usage:        &usage,
	})
}

// streamStep runs one model turn: it consumes the model's event stream,
// publishes normalized parts, and appends the assistant message to the
// conversation.
func (s *streamer) streamStep(ctx context.Context, stepType StepType) (*Step, error) {
	iterator, err := s.model.Stream(ctx, s.options.llmOptions(s.messages)...)
	if err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	defer iterator.Close()

	var (
		stepText strings.Builder
		builders []*toolCallBuilder
		byID     = map[string]*toolCallBuilder{}
		usage    llm.Usage
		reason   = llm.FinishReasonUnknown
	)

	for iterator.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		event := iterator.Event()
		switch event.Type {
		case llm.EventTypeTextDelta:
			stepText.WriteString(event.TextDelta)
			if err := s.publishContent(ctx, StreamPart{Type: StreamPartTypeTextDelta, TextDelta: event.TextDelta}); err != nil {
				return nil, err
			}
		case llm.EventTypeReasoningDelta:
			s.reasoning.WriteString(event.Reasoning)
			if err := s.publishContent(ctx, StreamPart{Type: StreamPartTypeReasoning, Reasoning: event.Reasoning}); err != nil {
				return nil, err
			}
		case llm.EventTypeSource:
			s.sources = append(s.sources, event.Source)
			if err := s.publishContent(ctx, StreamPart{Type: StreamPartTypeSource, Source: event.Source}); err != nil {
				return nil, err
			}
		case llm.EventTypeToolCallStart:
			if event.ToolCall == nil {
				return nil, &llm.StreamProtocolError{Message: "tool-call-start event without tool call"}
			}
			builder := &toolCallBuilder{id: event.ToolCall.ID, name: event.ToolCall.Name}
			builder.args.WriteString(event.ToolCall.ArgsDelta)
			builders = append(builders, builder)
			if builder.id != "" {
				byID[builder.id] = builder
			}
		case llm.EventTypeToolCallDelta:
			if event.ToolCall == nil {
				return nil, &llm.StreamProtocolError{Message: "tool-call-delta event without tool call"}
			}
			builder := byID[event.ToolCall.ID]
			if builder == nil {
				if len(builders) == 0 {
					return nil, &llm.StreamProtocolError{Message: "tool-call-delta before tool-call-start"}
				}
				builder = builders[len(builders)-1]
			}
			builder.args.WriteString(event.ToolCall.ArgsDelta)
		case llm.EventTypeResponseMetadata:
			if event.Response != nil {
				s.metadata = &ResponseMetadata{
					ID:        event.Response.ID,
					Model:     event.Response.Model,
					Timestamp: event.Response.Timestamp,
				}
			}
		case llm.EventTypeFinish:
			if event.FinishReason != "" {
				reason = event.FinishReason
			}
			if event.Usage != nil {
				usage.Add(event.Usage)
			}
		default:
			return nil, &llm.StreamProtocolError{
				Message: fmt.Sprintf("unrecognized event type %q", event.Type),
			}
		}
	}
	if err := iterator.Err(); err != nil {
		return nil, err
	}

	toolCalls := make([]*llm.ToolUseContent, 0, len(builders))
	for _, builder := range builders {
		call := builder.build()
		toolCalls = append(toolCalls, call)
		if err := s.publishContent(ctx, StreamPart{Type: StreamPartTypeToolCall, ToolCall: call}); err != nil {
			return nil, err
		}
	}

	var content []llm.Content
	if text := stepText.String(); text != "" {
		content = append(content, &llm.TextContent{Text: text})
	}
	for _, call := range toolCalls {
		content = append(content, call)
	}
	if len(content) > 0 {
		s.messages = append(s.messages, llm.NewMessage(llm.Assistant, content))
	}

	if len(toolCalls) > 0 && reason == llm.FinishReasonUnknown {
		reason = llm.FinishReasonToolUse
	}
	return &Step{
		Type:         stepType,
		Text:         stepText.String(),
		ToolCalls:    toolCalls,
		Usage:        usage,
		FinishReason: reason,
	}, nil
}

// publishContent publishes a content-carrying part, preceded by a
// response-metadata part whenever the content kind changes.
func (s *streamer) publishContent(ctx context.Context, part StreamPart) error {
	if part.Type != s.lastKind {
		metadata := &ResponseMetadata{Timestamp: time.Now(), Kind: part.Type}
		if s.metadata != nil {
			metadata.ID = s.metadata.ID
			metadata.Model = s.metadata.Model
		}
		if err := s.publish(ctx, StreamPart{Type: StreamPartTypeResponseMetadata, Metadata: metadata}); err != nil {
			return err
		}
		s.lastKind = part.Type
	}
	return s.publish(ctx, part)
}

func (s *streamer) publish(ctx context.Context, part StreamPart) error {
	return s.fan.publish(ctx, part)
}

// settle delivers the terminal state to all promises at once. Cancellation
// resolves with partial progress and a cancelled finish reason; any other
// failure is published as an error part and rejects every promise.
func (s *streamer) settle(err error) {
	r := s.result
	if err != nil && !isCancellation(err) {
		s.options.Logger.Error("stream failed",
			"generation_id", s.result.id, "error", err)
		r.text.Reject(err)
		r.reasoning.Reject(err)
		r.usage.Reject(err)
		r.finishReason.Reject(err)
		r.toolCalls.Reject(err)
		r.toolResults.Reject(err)
		r.steps.Reject(err)
		r.metadata.Reject(err)
		r.sources.Reject(err)
		return
	}

	reason := s.finishReason
	if err != nil {
		reason = llm.FinishReasonCancelled
	}
	r.text.Resolve(s.finalText)
	r.reasoning.Resolve(s.reasoning.String())
	r.usage.Resolve(s.usage)
	r.finishReason.Resolve(reason)
	r.toolCalls.Resolve(s.toolCalls)
	r.toolResults.Resolve(s.toolResults)
	r.steps.Resolve(s.steps)
	r.metadata.Resolve(s.metadata)
	r.sources.Resolve(s.sources)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// toolCallBuilder accumulates a streamed tool call's argument fragments.
type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

func (b *toolCallBuilder) build() *llm.ToolUseContent {
	args := b.args.String()
	if args == "" {
		args = "{}"
	}
	return &llm.ToolUseContent{
		ID:    b.id,
		Name:  b.name,
		Input: json.RawMessage(args),
	}
}
