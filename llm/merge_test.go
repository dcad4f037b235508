package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func textChunk(role Role, text string) *MessageChunk {
	return &MessageChunk{
		Message: Message{Role: role, Content: []Content{&TextContent{Text: text}}},
		Chunk:   true,
	}
}

func TestMergeTextChunks(t *testing.T) {
	merged, err := MergeChunks([]*MessageChunk{
		textChunk(Assistant, "Hel"),
		textChunk(Assistant, "lo "),
		textChunk(Assistant, "world"),
	})
	require.NoError(t, err)
	require.Len(t, merged.Content, 1)
	require.Equal(t, "Hello world", merged.Text())

	// Single text content collapses to string form on the wire
	data, err := json.Marshal(merged)
	require.NoError(t, err)
	require.JSONEq(t, `{"role":"assistant","content":"Hello world"}`, string(data))
}

func TestMergeIdempotence(t *testing.T) {
	chunks := []*MessageChunk{
		textChunk(Assistant, "alpha "),
		textChunk(Assistant, "beta"),
	}
	merged, err := MergeChunks(chunks)
	require.NoError(t, err)

	// Re-merging the result with no further chunks yields identical content
	again, err := MergeChunks([]*MessageChunk{{Message: *merged, Chunk: true}})
	require.NoError(t, err)
	require.Equal(t, merged.CompleteText(), again.CompleteText())
	require.Len(t, again.Content, len(merged.Content))
}

func TestMergeRoleMismatch(t *testing.T) {
	_, err := MergeChunks([]*MessageChunk{
		textChunk(Assistant, "a"),
		textChunk(User, "b"),
	})
	require.Error(t, err)
	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
}

func TestMergeToolCallFragments(t *testing.T) {
	chunks := []*MessageChunk{
		{Message: Message{Role: Assistant, Content: []Content{
			&ToolUseContent{ID: "call_1", Name: "weather", Input: json.RawMessage(`{"city":`)},
		}}, Chunk: true},
		{Message: Message{Role: Assistant, Content: []Content{
			&ToolUseContent{ID: "call_1", Input: json.RawMessage(`"Berlin"}`)},
		}}, Chunk: true},
	}
	merged, err := MergeChunks(chunks)
	require.NoError(t, err)
	require.Len(t, merged.Content, 1)
	call := merged.ToolCalls()[0]
	require.Equal(t, "weather", call.Name)
	require.JSONEq(t, `{"city":"Berlin"}`, string(call.Input))
}

func TestMergeToolCallObjects(t *testing.T) {
	chunks := []*MessageChunk{
		{Message: Message{Role: Assistant, Content: []Content{
			&ToolUseContent{ID: "call_1", Name: "weather", Input: json.RawMessage(`{"city":"Ber"}`)},
		}}, Chunk: true},
		{Message: Message{Role: Assistant, Content: []Content{
			&ToolUseContent{ID: "call_1", Input: json.RawMessage(`{"city":"lin","units":"celsius"}`)},
		}}, Chunk: true},
	}
	merged, err := MergeChunks(chunks)
	require.NoError(t, err)
	call := merged.ToolCalls()[0]
	require.JSONEq(t, `{"city":"Berlin","units":"celsius"}`, string(call.Input))
}

func TestMergeToolResults(t *testing.T) {
	chunks := []*MessageChunk{
		{Message: Message{Role: ToolRole, Content: []Content{
			&ToolResultContent{ToolUseID: "call_1", Result: "partial "},
		}}, Chunk: true},
		{Message: Message{Role: ToolRole, Content: []Content{
			&ToolResultContent{ToolUseID: "call_1", Result: "output", IsError: true},
		}}, Chunk: true},
		{Message: Message{Role: ToolRole, Content: []Content{
			&ToolResultContent{ToolUseID: "call_2", Result: "other"},
		}}, Chunk: true},
	}
	merged, err := MergeChunks(chunks)
	require.NoError(t, err)
	require.Len(t, merged.Content, 2)

	first := merged.Content[0].(*ToolResultContent)
	require.Equal(t, "partial output", first.Result)
	require.True(t, first.IsError)

	second := merged.Content[1].(*ToolResultContent)
	require.Equal(t, "call_2", second.ToolUseID)
	require.False(t, second.IsError)
}

func TestMergeSeparatedTextBlocks(t *testing.T) {
	// Text blocks separated by a different content type do not merge
	chunks := []*MessageChunk{
		{Message: Message{Role: Assistant, Content: []Content{&TextContent{Text: "before"}}}, Chunk: true},
		{Message: Message{Role: Assistant, Content: []Content{&ToolUseContent{ID: "c1", Name: "t"}}}, Chunk: true},
		{Message: Message{Role: Assistant, Content: []Content{&TextContent{Text: "after"}}}, Chunk: true},
	}
	merged, err := MergeChunks(chunks)
	require.NoError(t, err)
	require.Len(t, merged.Content, 3)
}

func TestMergeMetadata(t *testing.T) {
	chunks := []*MessageChunk{
		{Message: Message{Role: Assistant, Metadata: map[string]any{
			"trace": "abc",
			"tags":  []any{"x"},
			"inner": map[string]any{"text": "foo"},
		}}, Chunk: true},
		{Message: Message{Role: Assistant, Metadata: map[string]any{
			"trace": "def",
			"tags":  []any{"y", "z"},
			"inner": map[string]any{"text": "bar"},
		}}, Chunk: true},
	}
	merged, err := MergeChunks(chunks)
	require.NoError(t, err)
	require.Equal(t, "abcdef", merged.Metadata["trace"])
	require.Equal(t, []any{"xy", "z"}, merged.Metadata["tags"])
	inner := merged.Metadata["inner"].(map[string]any)
	require.Equal(t, "foobar", inner["text"])
}

func TestMergeMetadataTypeMismatch(t *testing.T) {
	chunks := []*MessageChunk{
		{Message: Message{Role: Assistant, Metadata: map[string]any{"value": "text"}}, Chunk: true},
		{Message: Message{Role: Assistant, Metadata: map[string]any{"value": float64(1)}}, Chunk: true},
	}
	_, err := MergeChunks(chunks)
	require.Error(t, err)
	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
	require.Contains(t, mergeErr.Path, "value")
}

func TestMergeNoChunks(t *testing.T) {
	_, err := MergeChunks(nil)
	require.Error(t, err)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	first := textChunk(Assistant, "aaa")
	second := textChunk(Assistant, "bbb")
	_, err := MergeChunks([]*MessageChunk{first, second})
	require.NoError(t, err)
	require.Equal(t, "aaa", first.Text())
	require.Equal(t, "bbb", second.Text())
}
