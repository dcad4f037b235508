package openaichat

import (
	"sync"
	"time"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// StreamIterator adapts the SDK's chat completion chunk stream to the llm
// event contract. One chunk may yield several events, so decoded events
// queue up and drain one per Next call.
type StreamIterator struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	release func()

	current      *llm.Event
	queue        []*llm.Event
	err          error
	metadataSent bool
	started      map[int64]bool
	finishReason llm.FinishReason
	usage        *llm.Usage
	finishSent   bool
	closeOnce    sync.Once
}

func (s *StreamIterator) Next() bool {
	if len(s.queue) > 0 {
		s.current = s.queue[0]
		s.queue = s.queue[1:]
		return true
	}
	for s.stream.Next() {
		events := s.decodeChunk(s.stream.Current())
		if len(events) > 0 {
			s.current = events[0]
			s.queue = append(s.queue, events[1:]...)
			return true
		}
	}
	if err := s.stream.Err(); err != nil {
		s.err = translateError(err)
		s.Close()
		return false
	}
	if !s.finishSent {
		s.finishSent = true
		reason := s.finishReason
		if reason == "" {
			reason = llm.FinishReasonUnknown
		}
		s.current = &llm.Event{
			Type:         llm.EventTypeFinish,
			FinishReason: reason,
			Usage:        s.usage,
		}
		return true
	}
	s.Close()
	return false
}

func (s *StreamIterator) Event() *llm.Event {
	return s.current
}

func (s *StreamIterator) Err() error {
	return s.err
}

// Close ends the stream and returns the leased pool config.
func (s *StreamIterator) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.stream.Close()
		s.release()
	})
	return err
}

func (s *StreamIterator) decodeChunk(chunk openai.ChatCompletionChunk) []*llm.Event {
	var events []*llm.Event

	if !s.metadataSent && chunk.ID != "" {
		s.metadataSent = true
		events = append(events, &llm.Event{
			Type: llm.EventTypeResponseMetadata,
			Response: &llm.ResponseInfo{
				ID:        chunk.ID,
				Model:     chunk.Model,
				Timestamp: time.Unix(chunk.Created, 0),
			},
		})
	}

	// The final usage chunk has no choices.
	if chunk.Usage.TotalTokens > 0 {
		s.usage = &llm.Usage{
			InputTokens:  int(chunk.Usage.PromptTokens),
			OutputTokens: int(chunk.Usage.CompletionTokens),
			TotalTokens:  int(chunk.Usage.TotalTokens),
		}
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			events = append(events, &llm.Event{
				Type:      llm.EventTypeTextDelta,
				TextDelta: choice.Delta.Content,
			})
		}
		for _, call := range choice.Delta.ToolCalls {
			events = append(events, s.decodeToolCallDelta(call))
		}
		if choice.FinishReason != "" {
			s.finishReason = decodeFinishReason(string(choice.FinishReason))
		}
	}
	return events
}

func (s *StreamIterator) decodeToolCallDelta(call openai.ChatCompletionChunkChoiceDeltaToolCall) *llm.Event {
	if s.started == nil {
		s.started = map[int64]bool{}
	}
	delta := &llm.ToolCallDelta{
		ID:        call.ID,
		Name:      call.Function.Name,
		ArgsDelta: call.Function.Arguments,
	}
	if !s.started[call.Index] {
		s.started[call.Index] = true
		return &llm.Event{Type: llm.EventTypeToolCallStart, ToolCall: delta}
	}
	return &llm.Event{Type: llm.EventTypeToolCallDelta, ToolCall: delta}
}
