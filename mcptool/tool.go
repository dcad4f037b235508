package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool adapts an MCP tool to the llm.Tool interface.
type Tool struct {
	client     *Client
	info       mcp.Tool
	serverName string
}

var _ llm.Tool = &Tool{}

// NewTool wraps one MCP tool definition from the given server.
func NewTool(client *Client, info mcp.Tool, serverName string) *Tool {
	return &Tool{
		client:     client,
		info:       info,
		serverName: serverName,
	}
}

func (t *Tool) Name() string {
	return t.info.Name
}

func (t *Tool) Description() string {
	if t.info.Description != "" {
		return t.info.Description
	}
	return fmt.Sprintf("MCP tool %s from server %s", t.info.Name, t.serverName)
}

// Schema converts the MCP input schema to the schema package's format.
func (t *Tool) Schema() *schema.Schema {
	if t.info.InputSchema.Type == "" {
		return &schema.Schema{
			Type:       schema.Object,
			Properties: map[string]*schema.Property{},
		}
	}
	s := &schema.Schema{
		Type:     schema.SchemaType(t.info.InputSchema.Type),
		Required: t.info.InputSchema.Required,
	}
	if t.info.InputSchema.Properties != nil {
		s.Properties = make(map[string]*schema.Property, len(t.info.InputSchema.Properties))
		for key, prop := range t.info.InputSchema.Properties {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[key] = convertProperty(propMap)
			}
		}
	}
	return s
}

// Call executes the MCP tool with JSON-encoded arguments.
func (t *Tool) Call(ctx context.Context, input json.RawMessage) (*llm.ToolResult, error) {
	arguments := make(map[string]any)
	if len(input) > 0 && string(input) != `""` {
		if err := json.Unmarshal(input, &arguments); err != nil {
			return llm.NewToolResultError(fmt.Sprintf("failed to unmarshal tool input: %v", err)), nil
		}
	}
	result, err := t.client.CallTool(ctx, t.info.Name, arguments)
	if err != nil {
		return llm.NewToolResultError(fmt.Sprintf("mcp tool call failed: %v", err)), nil
	}
	return convertResult(result)
}

func convertProperty(raw map[string]any) *schema.Property {
	prop := &schema.Property{}
	if schemaType, ok := raw["type"].(string); ok {
		prop.Type = schema.SchemaType(schemaType)
	}
	if description, ok := raw["description"].(string); ok {
		prop.Description = description
	}
	if properties, ok := raw["properties"].(map[string]any); ok {
		prop.Properties = make(map[string]*schema.Property, len(properties))
		for key, value := range properties {
			if valueMap, ok := value.(map[string]any); ok {
				prop.Properties[key] = convertProperty(valueMap)
			}
		}
	}
	if required, ok := raw["required"].([]any); ok {
		for _, entry := range required {
			if name, ok := entry.(string); ok {
				prop.Required = append(prop.Required, name)
			}
		}
	}
	if items, ok := raw["items"].(map[string]any); ok {
		prop.Items = convertProperty(items)
	}
	if enum, ok := raw["enum"].([]any); ok {
		for _, value := range enum {
			if str, ok := value.(string); ok {
				prop.Enum = append(prop.Enum, str)
			}
		}
	}
	if additional, ok := raw["additionalProperties"].(bool); ok {
		prop.AdditionalProperties = &additional
	}
	return prop
}

// convertResult flattens MCP result content into a tool result. Text items
// pass through; binary items are described rather than inlined.
func convertResult(result *mcp.CallToolResult) (*llm.ToolResult, error) {
	if result == nil {
		return llm.NewToolResultError("mcp tool returned nil result"), nil
	}
	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("Image content (%s)", c.MIMEType))
		case mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("Audio content (%s)", c.MIMEType))
		case mcp.EmbeddedResource:
			switch resource := c.Resource.(type) {
			case mcp.TextResourceContents:
				parts = append(parts, resource.Text)
			case mcp.BlobResourceContents:
				parts = append(parts, fmt.Sprintf("Binary resource: %s (%s)", resource.URI, resource.MIMEType))
			default:
				parts = append(parts, "Embedded resource (unknown type)")
			}
		default:
			return nil, fmt.Errorf("unknown mcp content type: %T", content)
		}
	}
	return &llm.ToolResult{
		Result:  strings.Join(parts, "\n"),
		IsError: result.IsError,
	}, nil
}
