// Package mcptool connects to Model Context Protocol servers and exposes
// their tools through the llm.Tool interface, so MCP tools can be passed to
// GenerateText and StreamText like any locally defined tool.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/deepnoodle-ai/strand/log"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	// ErrNotConnected is returned when using a client before Connect.
	ErrNotConnected = errors.New("mcp client not connected")

	// ErrInitializationFailed is returned when the MCP handshake fails.
	ErrInitializationFailed = errors.New("mcp client initialization failed")
)

const initializeTimeout = 30 * time.Second

// ServerConfig describes how to reach one MCP server.
type ServerConfig struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"` // "stdio" or "http"
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`

	// AllowedTools restricts which server tools are exposed. Empty means all.
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

// Client wraps an MCP server connection and lists its tools.
type Client struct {
	config    *ServerConfig
	logger    log.Logger
	mu        sync.Mutex
	client    *client.Client
	connected bool
	tools     []mcp.Tool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used by the client.
func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the given server. Call Connect before use.
func NewClient(config *ServerConfig, opts ...ClientOption) *Client {
	c := &Client{
		config: config,
		logger: log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the transport and performs the MCP handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	var err error
	switch c.config.Type {
	case "http":
		if c.config.URL == "" {
			return fmt.Errorf("url is required for http mcp server")
		}
		c.client, err = client.NewStreamableHttpClient(c.config.URL)
	case "stdio":
		if c.config.Command == "" {
			return fmt.Errorf("command is required for stdio mcp server")
		}
		args := make([]string, len(c.config.Args))
		for i, arg := range c.config.Args {
			args[i] = os.ExpandEnv(arg)
		}
		env := make([]string, 0, len(c.config.Env))
		for key, value := range c.config.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, os.ExpandEnv(value)))
		}
		c.client, err = client.NewStdioMCPClient(c.config.Command, env, args...)
	default:
		return fmt.Errorf("unsupported mcp server type: %q", c.config.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to create mcp client for server %s: %w", c.config.Name, err)
	}

	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mcp client for server %s: %w", c.config.Name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()
	if _, err := c.client.Initialize(initCtx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "strand",
				Version: "1.0.0",
			},
		},
	}); err != nil {
		return fmt.Errorf("%w: server %s: %v", ErrInitializationFailed, c.config.Name, err)
	}

	c.connected = true
	c.logger.Debug("mcp client connected", "server", c.config.Name, "type", c.config.Type)
	return nil
}

// IsConnected reports whether Connect has completed.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ListTools retrieves the server's tools, filtered by AllowedTools.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("list tools failed for server %s: %w", c.config.Name, ErrNotConnected)
	}
	response, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools failed for server %s: %w", c.config.Name, err)
	}
	tools := c.filterTools(response.Tools)
	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
	return tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("call tool %q failed for server %s: %w", name, c.config.Name, ErrNotConnected)
	}
	response, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call tool %q failed for server %s: %w", name, c.config.Name, err)
	}
	return response, nil
}

// Tools lists the server's tools adapted to the llm.Tool interface.
func (c *Client) Tools(ctx context.Context) ([]*Tool, error) {
	infos, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]*Tool, 0, len(infos))
	for _, info := range infos {
		tools = append(tools, NewTool(c, info, c.config.Name))
	}
	return tools, nil
}

// Close shuts down the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil || !c.connected {
		return nil
	}
	c.connected = false
	return c.client.Close()
}

func (c *Client) filterTools(tools []mcp.Tool) []mcp.Tool {
	if len(c.config.AllowedTools) == 0 {
		return tools
	}
	allowed := make(map[string]bool, len(c.config.AllowedTools))
	for _, name := range c.config.AllowedTools {
		allowed[name] = true
	}
	var filtered []mcp.Tool
	for _, tool := range tools {
		if allowed[tool.Name] {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}
