package strand

import (
	"context"
	"sync"
	"time"

	"github.com/deepnoodle-ai/strand/llm"
)

// streamBufferSize bounds each stream view's channel. A consumer that stops
// reading eventually backpressures the producer.
const streamBufferSize = 64

// StreamPartType identifies a part in a text stream.
type StreamPartType string

const (
	StreamPartTypeTextDelta        StreamPartType = "text-delta"
	StreamPartTypeReasoning        StreamPartType = "reasoning"
	StreamPartTypeSource           StreamPartType = "source"
	StreamPartTypeToolCall         StreamPartType = "tool-call"
	StreamPartTypeToolResult       StreamPartType = "tool-result"
	StreamPartTypeStepStart        StreamPartType = "step-start"
	StreamPartTypeStepFinish       StreamPartType = "step-finish"
	StreamPartTypeFinish           StreamPartType = "finish"
	StreamPartTypeError            StreamPartType = "error"
	StreamPartTypeResponseMetadata StreamPartType = "response-metadata"
)

// StreamPart is one element of the normalized stream produced by StreamText.
// Exactly the fields relevant to Type are set.
type StreamPart struct {
	Type         StreamPartType         `json:"type"`
	TextDelta    string                 `json:"text_delta,omitempty"`
	Reasoning    string                 `json:"reasoning,omitempty"`
	Source       *llm.Source            `json:"source,omitempty"`
	ToolCall     *llm.ToolUseContent    `json:"tool_call,omitempty"`
	ToolResult   *llm.ToolResultContent `json:"tool_result,omitempty"`
	StepType     StepType               `json:"step_type,omitempty"`
	Step         *Step                  `json:"step,omitempty"`
	FinishReason llm.FinishReason       `json:"finish_reason,omitempty"`
	Usage        *llm.Usage             `json:"usage,omitempty"`
	Metadata     *ResponseMetadata      `json:"metadata,omitempty"`
	Err          error                  `json:"-"`
}

// ResponseMetadata announces the response identity and the kind of content
// that follows. One is emitted before the first part of each new content
// kind.
type ResponseMetadata struct {
	ID        string         `json:"id,omitempty"`
	Model     string         `json:"model,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      StreamPartType `json:"kind,omitempty"`
}

// fanout broadcasts stream parts to lazily created subscriber channels.
// Views that were never requested cost nothing; subscribed views receive
// every part published after their subscription.
type fanout struct {
	mu     sync.Mutex
	subs   []chan StreamPart
	closed bool
}

func newFanout() *fanout {
	return &fanout{}
}

// subscribe registers a new view. Subscribing after close returns a closed
// channel.
func (f *fanout) subscribe() chan StreamPart {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan StreamPart, streamBufferSize)
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, ch)
	return ch
}

// publish delivers a part to every subscriber, blocking on full channels
// until the context ends.
func (f *fanout) publish(ctx context.Context, part StreamPart) error {
	f.mu.Lock()
	subs := make([]chan StreamPart, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- part:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// close ends every subscriber channel. Idempotent.
func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}
