package llm

import (
	"encoding/json"
	"fmt"
)

// ContentType indicates the type of a content block in a message.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeImage      ContentType = "image"
	ContentTypeAudio      ContentType = "audio"
	ContentTypeFile       ContentType = "file"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
	ContentTypeThinking   ContentType = "thinking"
)

func (c ContentType) String() string {
	return string(c)
}

// Content is a single block of content in a message. A message may contain
// multiple content blocks of varying types.
type Content interface {
	Type() ContentType
}

//// TextContent ///////////////////////////////////////////////////////////////

type TextContent struct {
	Text string `json:"text"`
}

func (c *TextContent) Type() ContentType {
	return ContentTypeText
}

func (c *TextContent) MarshalJSON() ([]byte, error) {
	type alias TextContent
	return marshalTagged(ContentTypeText, (*alias)(c))
}

//// ImageContent //////////////////////////////////////////////////////////////

// ImageContent carries image data, either inline (base64) or by URL.
type ImageContent struct {
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

func (c *ImageContent) Type() ContentType {
	return ContentTypeImage
}

func (c *ImageContent) MarshalJSON() ([]byte, error) {
	type alias ImageContent
	return marshalTagged(ContentTypeImage, (*alias)(c))
}

//// AudioContent //////////////////////////////////////////////////////////////

type AudioContent struct {
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

func (c *AudioContent) Type() ContentType {
	return ContentTypeAudio
}

func (c *AudioContent) MarshalJSON() ([]byte, error) {
	type alias AudioContent
	return marshalTagged(ContentTypeAudio, (*alias)(c))
}

//// FileContent ///////////////////////////////////////////////////////////////

type FileContent struct {
	Name      string `json:"name,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

func (c *FileContent) Type() ContentType {
	return ContentTypeFile
}

func (c *FileContent) MarshalJSON() ([]byte, error) {
	type alias FileContent
	return marshalTagged(ContentTypeFile, (*alias)(c))
}

//// ToolUseContent ////////////////////////////////////////////////////////////

// ToolUseContent is a tool call issued by the model. Input carries the raw
// JSON arguments, which may be a partial fragment while streaming.
type ToolUseContent struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

func (c *ToolUseContent) Type() ContentType {
	return ContentTypeToolUse
}

func (c *ToolUseContent) MarshalJSON() ([]byte, error) {
	type alias ToolUseContent
	return marshalTagged(ContentTypeToolUse, (*alias)(c))
}

//// ToolResultContent /////////////////////////////////////////////////////////

// ToolResultContent carries the result of one tool call back to the model.
type ToolResultContent struct {
	ToolUseID string `json:"tool_use_id"`
	Name      string `json:"name,omitempty"`
	Result    any    `json:"result,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

func (c *ToolResultContent) Type() ContentType {
	return ContentTypeToolResult
}

func (c *ToolResultContent) MarshalJSON() ([]byte, error) {
	type alias ToolResultContent
	return marshalTagged(ContentTypeToolResult, (*alias)(c))
}

//// ThinkingContent ///////////////////////////////////////////////////////////

// ThinkingContent carries model reasoning that is not part of the answer.
type ThinkingContent struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

func (c *ThinkingContent) Type() ContentType {
	return ContentTypeThinking
}

func (c *ThinkingContent) MarshalJSON() ([]byte, error) {
	type alias ThinkingContent
	return marshalTagged(ContentTypeThinking, (*alias)(c))
}

////////////////////////////////////////////////////////////////////////////////

func marshalTagged(contentType ContentType, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["type"] = json.RawMessage(fmt.Sprintf("%q", contentType))
	return json.Marshal(m)
}

// unmarshalContent decodes one tagged content block.
func unmarshalContent(data []byte) (Content, error) {
	var header struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("invalid content block: %w", err)
	}
	var content Content
	switch header.Type {
	case ContentTypeText:
		content = &TextContent{}
	case ContentTypeImage:
		content = &ImageContent{}
	case ContentTypeAudio:
		content = &AudioContent{}
	case ContentTypeFile:
		content = &FileContent{}
	case ContentTypeToolUse:
		content = &ToolUseContent{}
	case ContentTypeToolResult:
		content = &ToolResultContent{}
	case ContentTypeThinking:
		content = &ThinkingContent{}
	default:
		return nil, fmt.Errorf("unknown content type: %q", header.Type)
	}
	if err := json.Unmarshal(data, content); err != nil {
		return nil, err
	}
	return content, nil
}
