package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MergeError indicates that two values could not be combined, typically
// because their types diverged between chunks.
type MergeError struct {
	Path    string
	Message string
}

func (e *MergeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("merge failed: %s", e.Message)
	}
	return fmt.Sprintf("merge failed at %s: %s", e.Path, e.Message)
}

func newMergeError(path, format string, args ...any) *MergeError {
	return &MergeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// MergeChunks folds a sequence of stream chunks into one logical message.
// All chunks must share one role. Merging is idempotent: merging the result
// with no further chunks yields identical content.
func MergeChunks(chunks []*MessageChunk) (*Message, error) {
	if len(chunks) == 0 {
		return nil, newMergeError("", "no chunks to merge")
	}
	merged := cloneMessage(&chunks[0].Message)
	for _, chunk := range chunks[1:] {
		if err := MergeMessages(merged, &chunk.Message); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// MergeMessages merges src into dst in place. Messages of different roles
// cannot be merged.
func MergeMessages(dst *Message, src *Message) error {
	if dst.Role != "" && src.Role != "" && dst.Role != src.Role {
		return newMergeError("role", "cannot merge %q into %q", src.Role, dst.Role)
	}
	if dst.Role == "" {
		dst.Role = src.Role
	}
	if dst.ID == "" {
		dst.ID = src.ID
	}
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if src.Metadata != nil {
		if dst.Metadata == nil {
			dst.Metadata = map[string]any{}
		}
		merged, err := mergeValue("metadata", dst.Metadata, copyValue(src.Metadata))
		if err != nil {
			return err
		}
		dst.Metadata = merged.(map[string]any)
	}
	for _, part := range src.Content {
		if err := appendContent(dst, part); err != nil {
			return err
		}
	}
	return nil
}

// appendContent adds one content block to the message, merging it into the
// last block when the two are concatenable.
func appendContent(dst *Message, part Content) error {
	if len(dst.Content) == 0 {
		dst.Content = append(dst.Content, cloneContent(part))
		return nil
	}
	last := dst.Content[len(dst.Content)-1]

	switch incoming := part.(type) {
	case *TextContent:
		if text, ok := last.(*TextContent); ok {
			text.Text += incoming.Text
			return nil
		}
	case *ToolUseContent:
		if call, ok := last.(*ToolUseContent); ok {
			if incoming.ID == "" || call.ID == incoming.ID {
				merged, err := mergeToolInput(call.Input, incoming.Input)
				if err != nil {
					return err
				}
				call.Input = merged
				if call.Name == "" {
					call.Name = incoming.Name
				}
				return nil
			}
		}
	case *ToolResultContent:
		if result, ok := last.(*ToolResultContent); ok && result.ToolUseID == incoming.ToolUseID {
			merged, err := mergeValue("result", result.Result, copyValue(incoming.Result))
			if err != nil {
				return err
			}
			result.Result = merged
			result.IsError = result.IsError || incoming.IsError
			return nil
		}
	case *ThinkingContent:
		if thinking, ok := last.(*ThinkingContent); ok {
			thinking.Thinking += incoming.Thinking
			if thinking.Signature == "" {
				thinking.Signature = incoming.Signature
			}
			return nil
		}
	}
	dst.Content = append(dst.Content, cloneContent(part))
	return nil
}

// mergeToolInput combines two tool argument payloads. Complete JSON objects
// deep-merge; anything else is treated as fragments of one JSON document and
// concatenated.
func mergeToolInput(a, b json.RawMessage) (json.RawMessage, error) {
	if len(a) == 0 {
		return b, nil
	}
	if len(b) == 0 {
		return a, nil
	}
	var objA, objB map[string]any
	if json.Unmarshal(a, &objA) == nil && json.Unmarshal(b, &objB) == nil {
		merged, err := mergeValue("input", objA, objB)
		if err != nil {
			return nil, err
		}
		return json.Marshal(merged)
	}
	var buf bytes.Buffer
	buf.Write(a)
	buf.Write(b)
	return buf.Bytes(), nil
}

// mergeValue combines two values of matching type: strings concatenate,
// slices merge element-wise by index with extras appended, maps recurse, and
// other scalars take the incoming value. Mismatched types are an error.
func mergeValue(path string, a, b any) (any, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	switch valA := a.(type) {
	case string:
		valB, ok := b.(string)
		if !ok {
			return nil, newMergeError(path, "cannot combine string with %T", b)
		}
		return valA + valB, nil
	case map[string]any:
		valB, ok := b.(map[string]any)
		if !ok {
			return nil, newMergeError(path, "cannot combine object with %T", b)
		}
		for key, value := range valB {
			merged, err := mergeValue(path+"."+key, valA[key], value)
			if err != nil {
				return nil, err
			}
			valA[key] = merged
		}
		return valA, nil
	case []any:
		valB, ok := b.([]any)
		if !ok {
			return nil, newMergeError(path, "cannot combine array with %T", b)
		}
		for i, value := range valB {
			if i < len(valA) {
				merged, err := mergeValue(fmt.Sprintf("%s[%d]", path, i), valA[i], value)
				if err != nil {
					return nil, err
				}
				valA[i] = merged
			} else {
				valA = append(valA, value)
			}
		}
		return valA, nil
	default:
		if fmt.Sprintf("%T", a) != fmt.Sprintf("%T", b) {
			return nil, newMergeError(path, "cannot combine %T with %T", a, b)
		}
		return b, nil
	}
}

func cloneMessage(m *Message) *Message {
	clone := &Message{
		ID:   m.ID,
		Role: m.Role,
		Name: m.Name,
	}
	if m.Metadata != nil {
		clone.Metadata = copyValue(m.Metadata).(map[string]any)
	}
	for _, part := range m.Content {
		clone.Content = append(clone.Content, cloneContent(part))
	}
	return clone
}

func cloneContent(part Content) Content {
	switch c := part.(type) {
	case *TextContent:
		clone := *c
		return &clone
	case *ImageContent:
		clone := *c
		return &clone
	case *AudioContent:
		clone := *c
		return &clone
	case *FileContent:
		clone := *c
		return &clone
	case *ToolUseContent:
		clone := *c
		clone.Input = append(json.RawMessage(nil), c.Input...)
		return &clone
	case *ToolResultContent:
		clone := *c
		clone.Result = copyValue(c.Result)
		return &clone
	case *ThinkingContent:
		clone := *c
		return &clone
	default:
		return part
	}
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(v))
		for key, item := range v {
			copied[key] = copyValue(item)
		}
		return copied
	case []any:
		copied := make([]any, len(v))
		for i, item := range v {
			copied[i] = copyValue(item)
		}
		return copied
	default:
		return v
	}
}
