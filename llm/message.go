package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role indicates the role of a message in a conversation.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
	ToolRole  Role = "tool"
)

func (r Role) String() string {
	return string(r)
}

// Message containing content passed to or from an LLM.
//
// Content is a list of typed blocks. On the wire, a message whose content is
// a single plain text block is encoded as a bare string; heterogeneous
// content is encoded as an array of tagged blocks. Both forms decode into the
// same Message.
type Message struct {
	ID       string         `json:"id,omitempty"`
	Role     Role           `json:"role"`
	Name     string         `json:"name,omitempty"`
	Content  []Content      `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the last text content in the message.
func (m *Message) Text() string {
	for i := len(m.Content) - 1; i >= 0; i-- {
		if text, ok := m.Content[i].(*TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// CompleteText returns a concatenation of all text content in the message,
// separated by two newlines.
func (m *Message) CompleteText() string {
	var parts []string
	for _, content := range m.Content {
		if text, ok := content.(*TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ToolCalls returns all tool use blocks in the message.
func (m *Message) ToolCalls() []*ToolUseContent {
	var calls []*ToolUseContent
	for _, content := range m.Content {
		if call, ok := content.(*ToolUseContent); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// WithText appends a text content block to the message.
func (m *Message) WithText(text string) *Message {
	m.Content = append(m.Content, &TextContent{Text: text})
	return m
}

// Validate checks the role/content invariants: tool messages carry only tool
// results, and assistant messages carry only text, thinking, or tool use.
func (m *Message) Validate() error {
	switch m.Role {
	case ToolRole:
		for _, content := range m.Content {
			if content.Type() != ContentTypeToolResult {
				return fmt.Errorf("tool message may only contain tool results, got %q", content.Type())
			}
		}
	case Assistant:
		for _, content := range m.Content {
			switch content.Type() {
			case ContentTypeText, ContentTypeThinking, ContentTypeToolUse:
			default:
				return fmt.Errorf("assistant message may not contain %q content", content.Type())
			}
		}
	}
	return nil
}

func (m *Message) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID       string          `json:"id,omitempty"`
		Role     Role            `json:"role"`
		Name     string          `json:"name,omitempty"`
		Content  json.RawMessage `json:"content"`
		Metadata map[string]any  `json:"metadata,omitempty"`
	}
	content, err := marshalMessageContent(m.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(alias{
		ID:       m.ID,
		Role:     m.Role,
		Name:     m.Name,
		Content:  content,
		Metadata: m.Metadata,
	})
}

// marshalMessageContent collapses a lone plain text block to a bare string.
// Array form is used only when the content is heterogeneous.
func marshalMessageContent(content []Content) (json.RawMessage, error) {
	if len(content) == 1 {
		if text, ok := content[0].(*TextContent); ok {
			return json.Marshal(text.Text)
		}
	}
	return json.Marshal(content)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID       string          `json:"id,omitempty"`
		Role     Role            `json:"role"`
		Name     string          `json:"name,omitempty"`
		Content  json.RawMessage `json:"content"`
		Metadata map[string]any  `json:"metadata,omitempty"`
	}
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	content, err := unmarshalMessageContent(raw.Content)
	if err != nil {
		return err
	}
	m.ID = raw.ID
	m.Role = raw.Role
	m.Name = raw.Name
	m.Content = content
	m.Metadata = raw.Metadata
	return nil
}

func unmarshalMessageContent(data json.RawMessage) ([]Content, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, err
		}
		return []Content{&TextContent{Text: text}}, nil
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("message content must be a string or array: %w", err)
	}
	content := make([]Content, 0, len(blocks))
	for _, block := range blocks {
		c, err := unmarshalContent(block)
		if err != nil {
			return nil, err
		}
		content = append(content, c)
	}
	return content, nil
}

// MessageChunk is a partial message produced while streaming. Chunks of
// matching role are concatenable with MergeChunks.
type MessageChunk struct {
	Message
	Chunk bool `json:"chunk"`
}

func (c *MessageChunk) MarshalJSON() ([]byte, error) {
	data, err := c.Message.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["chunk"] = json.RawMessage("true")
	return json.Marshal(m)
}

func (c *MessageChunk) UnmarshalJSON(data []byte) error {
	if err := c.Message.UnmarshalJSON(data); err != nil {
		return err
	}
	var flag struct {
		Chunk bool `json:"chunk"`
	}
	if err := json.Unmarshal(data, &flag); err != nil {
		return err
	}
	c.Chunk = flag.Chunk
	return nil
}

// NewMessage creates a new message with the given role and content blocks.
func NewMessage(role Role, content []Content) *Message {
	return &Message{Role: role, Content: content}
}

// NewUserTextMessage creates a new user message with a single text block.
func NewUserTextMessage(text string) *Message {
	return &Message{Role: User, Content: []Content{&TextContent{Text: text}}}
}

// NewAssistantTextMessage creates a new assistant message with a single text
// block.
func NewAssistantTextMessage(text string) *Message {
	return &Message{Role: Assistant, Content: []Content{&TextContent{Text: text}}}
}

// NewSystemMessage creates a new system message with a single text block.
func NewSystemMessage(text string) *Message {
	return &Message{Role: System, Content: []Content{&TextContent{Text: text}}}
}

// NewToolResultMessage creates a new tool message carrying the results of
// tool calls back to the model.
func NewToolResultMessage(results ...*ToolResultContent) *Message {
	content := make([]Content, len(results))
	for i, result := range results {
		content[i] = result
	}
	return &Message{Role: ToolRole, Content: content}
}
