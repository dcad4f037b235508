package mcptool

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/strand/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func TestConnectValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *ServerConfig
		wantErr string
	}{
		{
			name:    "http without url",
			config:  &ServerConfig{Name: "srv", Type: "http"},
			wantErr: "url is required",
		},
		{
			name:    "stdio without command",
			config:  &ServerConfig{Name: "srv", Type: "stdio"},
			wantErr: "command is required",
		},
		{
			name:    "unknown type",
			config:  &ServerConfig{Name: "srv", Type: "carrier-pigeon"},
			wantErr: `unsupported mcp server type: "carrier-pigeon"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.config)
			err := client.Connect(context.Background())
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
			require.False(t, client.IsConnected())
		})
	}
}

func TestNotConnected(t *testing.T) {
	client := NewClient(&ServerConfig{Name: "srv", Type: "http", URL: "http://localhost:1"})

	_, err := client.ListTools(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = client.CallTool(context.Background(), "echo", nil)
	require.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, client.Close())
}

func TestFilterTools(t *testing.T) {
	tools := []mcp.Tool{
		{Name: "read_file"},
		{Name: "write_file"},
		{Name: "list_dir"},
	}

	open := NewClient(&ServerConfig{Name: "srv"})
	require.Equal(t, tools, open.filterTools(tools))

	restricted := NewClient(&ServerConfig{
		Name:         "srv",
		AllowedTools: []string{"read_file", "list_dir"},
	})
	filtered := restricted.filterTools(tools)
	require.Len(t, filtered, 2)
	require.Equal(t, "read_file", filtered[0].Name)
	require.Equal(t, "list_dir", filtered[1].Name)
}

func TestToolNameAndDescription(t *testing.T) {
	client := NewClient(&ServerConfig{Name: "files", Type: "http", URL: "http://localhost:1"})

	tool := NewTool(client, mcp.Tool{Name: "read_file", Description: "Reads a file"}, "files")
	require.Equal(t, "read_file", tool.Name())
	require.Equal(t, "Reads a file", tool.Description())

	bare := NewTool(client, mcp.Tool{Name: "read_file"}, "files")
	require.Equal(t, "MCP tool read_file from server files", bare.Description())
}

func TestToolSchemaConversion(t *testing.T) {
	client := NewClient(&ServerConfig{Name: "files"})
	tool := NewTool(client, mcp.Tool{
		Name: "search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]any{
					"type": "integer",
				},
				"tags": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"mode": map[string]any{
					"type": "string",
					"enum": []any{"exact", "fuzzy"},
				},
			},
			Required: []string{"query"},
		},
	}, "files")

	s := tool.Schema()
	require.Equal(t, schema.Object, s.Type)
	require.Equal(t, []string{"query"}, s.Required)
	require.Len(t, s.Properties, 4)
	require.Equal(t, schema.String, s.Properties["query"].Type)
	require.Equal(t, "Search query", s.Properties["query"].Description)
	require.Equal(t, schema.Integer, s.Properties["limit"].Type)
	require.Equal(t, schema.Array, s.Properties["tags"].Type)
	require.Equal(t, schema.String, s.Properties["tags"].Items.Type)
	require.Equal(t, []string{"exact", "fuzzy"}, s.Properties["mode"].Enum)
}

func TestToolSchemaEmpty(t *testing.T) {
	client := NewClient(&ServerConfig{Name: "files"})
	tool := NewTool(client, mcp.Tool{Name: "ping"}, "files")

	s := tool.Schema()
	require.Equal(t, schema.Object, s.Type)
	require.Empty(t, s.Properties)
}

func TestToolCallInvalidInput(t *testing.T) {
	client := NewClient(&ServerConfig{Name: "files"})
	tool := NewTool(client, mcp.Tool{Name: "search"}, "files")

	result, err := tool.Call(context.Background(), []byte(`not json`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Result, "failed to unmarshal tool input")
}

func TestToolCallNotConnected(t *testing.T) {
	client := NewClient(&ServerConfig{Name: "files", Type: "http", URL: "http://localhost:1"})
	tool := NewTool(client, mcp.Tool{Name: "search"}, "files")

	result, err := tool.Call(context.Background(), []byte(`{"query":"go"}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Result, "mcp tool call failed")
}

func TestConvertResult(t *testing.T) {
	result, err := convertResult(&mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "line one"},
			mcp.TextContent{Type: "text", Text: "line two"},
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "line one\nline two", result.Result)
}

func TestConvertResultError(t *testing.T) {
	result, err := convertResult(&mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "no such file"},
		},
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, "no such file", result.Result)
}

func TestConvertResultNonText(t *testing.T) {
	result, err := convertResult(&mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.ImageContent{Type: "image", MIMEType: "image/png", Data: "aGk="},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Image content (image/png)", result.Result)
}

func TestConvertResultNil(t *testing.T) {
	result, err := convertResult(nil)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
