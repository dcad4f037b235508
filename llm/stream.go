package llm

import (
	"fmt"
	"time"
)

// EventType identifies a provider-level streaming event. This is the chunk
// contract every streaming model implementation must emit; the streaming
// engine normalizes these into its own part union.
type EventType string

const (
	// EventTypeTextDelta carries an increment of answer text.
	EventTypeTextDelta EventType = "text-delta"

	// EventTypeReasoningDelta carries an increment of model reasoning.
	EventTypeReasoningDelta EventType = "reasoning-delta"

	// EventTypeSource carries a citation or grounding source.
	EventTypeSource EventType = "source"

	// EventTypeToolCallStart opens a tool call; arguments may follow as
	// deltas.
	EventTypeToolCallStart EventType = "tool-call-start"

	// EventTypeToolCallDelta carries a fragment of tool call arguments.
	EventTypeToolCallDelta EventType = "tool-call-delta"

	// EventTypeResponseMetadata carries response identity (id, model).
	EventTypeResponseMetadata EventType = "response-metadata"

	// EventTypeFinish closes the model turn with a finish reason and usage.
	EventTypeFinish EventType = "finish"
)

func (e EventType) String() string {
	return string(e)
}

// Event is a single streaming event from a model.
type Event struct {
	Type         EventType      `json:"type"`
	TextDelta    string         `json:"text_delta,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Source       *Source        `json:"source,omitempty"`
	ToolCall     *ToolCallDelta `json:"tool_call,omitempty"`
	Response     *ResponseInfo  `json:"response,omitempty"`
	FinishReason FinishReason   `json:"finish_reason,omitempty"`
	Usage        *Usage         `json:"usage,omitempty"`
}

// ToolCallDelta is a fragment of a tool call arriving on a stream. ID and
// Name are set on the start event; ArgsDelta accumulates across delta events.
type ToolCallDelta struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	ArgsDelta string `json:"args_delta,omitempty"`
}

// Source is a citation attached to generated content.
type Source struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// ResponseInfo identifies the response a stream belongs to.
type ResponseInfo struct {
	ID        string    `json:"id,omitempty"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// StreamIterator iterates over streaming events from a model.
type StreamIterator interface {
	// Next advances to the next event. It returns false when the stream is
	// complete or an error occurs.
	Next() bool

	// Event returns the current event.
	Event() *Event

	// Err returns any error that occurred while reading from the stream.
	Err() error

	// Close releases resources associated with the stream.
	Close() error
}

// StreamProtocolError indicates a malformed chunk was received from a model.
// It terminates the stream it occurs on.
type StreamProtocolError struct {
	Message string
	Cause   error
}

func (e *StreamProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream protocol error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("stream protocol error: %s", e.Message)
}

func (e *StreamProtocolError) Unwrap() error {
	return e.Cause
}
