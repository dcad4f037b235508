package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageContentStringForm(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &msg)
	require.NoError(t, err)
	require.Equal(t, User, msg.Role)
	require.Len(t, msg.Content, 1)
	require.Equal(t, "hello", msg.Text())

	// A lone text block marshals back to the bare string form
	data, err := json.Marshal(&msg)
	require.NoError(t, err)
	require.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))
}

func TestMessageContentArrayForm(t *testing.T) {
	raw := `{"role":"assistant","content":[
		{"type":"text","text":"checking the weather"},
		{"type":"tool_use","id":"call_1","name":"weather","input":{"city":"Berlin"}}
	]}`
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	require.Len(t, msg.Content, 2)
	require.Equal(t, "checking the weather", msg.Text())

	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "weather", calls[0].Name)
	require.JSONEq(t, `{"city":"Berlin"}`, string(calls[0].Input))

	// Heterogeneous content stays in array form
	data, err := json.Marshal(&msg)
	require.NoError(t, err)
	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Content, 2)
}

func TestMessageUnknownContentType(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"role":"user","content":[{"type":"video"}]}`), &msg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown content type")
}

func TestMessageValidate(t *testing.T) {
	toolMsg := NewToolResultMessage(&ToolResultContent{ToolUseID: "call_1", Result: "ok"})
	require.NoError(t, toolMsg.Validate())

	badToolMsg := &Message{Role: ToolRole, Content: []Content{&TextContent{Text: "nope"}}}
	require.Error(t, badToolMsg.Validate())

	assistantMsg := &Message{Role: Assistant, Content: []Content{
		&ThinkingContent{Thinking: "hmm"},
		&TextContent{Text: "answer"},
		&ToolUseContent{ID: "call_1", Name: "weather"},
	}}
	require.NoError(t, assistantMsg.Validate())

	badAssistantMsg := &Message{Role: Assistant, Content: []Content{
		&ToolResultContent{ToolUseID: "call_1"},
	}}
	require.Error(t, badAssistantMsg.Validate())
}

func TestMessageChunkJSON(t *testing.T) {
	chunk := &MessageChunk{
		Message: Message{Role: Assistant, Content: []Content{&TextContent{Text: "par"}}},
		Chunk:   true,
	}
	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	require.JSONEq(t, `{"role":"assistant","content":"par","chunk":true}`, string(data))

	var decoded MessageChunk
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, decoded.Chunk)
	require.Equal(t, "par", decoded.Text())
}

func TestCompleteText(t *testing.T) {
	msg := &Message{Role: Assistant, Content: []Content{
		&TextContent{Text: "one"},
		&ToolUseContent{ID: "x", Name: "t"},
		&TextContent{Text: "two"},
	}}
	require.Equal(t, "two", msg.Text())
	require.Equal(t, "one\n\ntwo", msg.CompleteText())
}
