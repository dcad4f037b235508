package llm

import (
	"context"
	"encoding/json"

	"github.com/deepnoodle-ai/strand/schema"
)

// Tool is a capability the model may invoke during generation.
type Tool interface {
	// Name of the tool, as announced to the model.
	Name() string

	// Description of the tool, as announced to the model.
	Description() string

	// Schema describing the tool's input parameters.
	Schema() *schema.Schema

	// Call invokes the tool with JSON-encoded arguments.
	Call(ctx context.Context, input json.RawMessage) (*ToolResult, error)
}

// DirectReturner is implemented by tools whose result ends the generation
// immediately, bypassing further model turns.
type DirectReturner interface {
	ReturnsDirect() bool
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Result  any  `json:"result,omitempty"`
	IsError bool `json:"is_error,omitempty"`
}

// NewToolResult returns a successful tool result.
func NewToolResult(result any) *ToolResult {
	return &ToolResult{Result: result}
}

// NewToolResultError returns a failed tool result.
func NewToolResultError(result any) *ToolResult {
	return &ToolResult{Result: result, IsError: true}
}

// ToolChoice controls how the model may use tools.
type ToolChoice struct {
	Type ToolChoiceType `json:"type"`
	Name string         `json:"name,omitempty"`
}

type ToolChoiceType string

const (
	ToolChoiceTypeAuto ToolChoiceType = "auto"
	ToolChoiceTypeAny  ToolChoiceType = "any"
	ToolChoiceTypeNone ToolChoiceType = "none"
	ToolChoiceTypeTool ToolChoiceType = "tool"
)

var (
	ToolChoiceAuto = ToolChoice{Type: ToolChoiceTypeAuto}
	ToolChoiceAny  = ToolChoice{Type: ToolChoiceTypeAny}
	ToolChoiceNone = ToolChoice{Type: ToolChoiceTypeNone}
)

// FuncTool adapts a plain function to the Tool interface.
type FuncTool struct {
	name         string
	description  string
	schema       *schema.Schema
	returnDirect bool
	fn           func(ctx context.Context, input json.RawMessage) (*ToolResult, error)
}

var (
	_ Tool           = &FuncTool{}
	_ DirectReturner = &FuncTool{}
)

// FuncToolOption configures a FuncTool.
type FuncToolOption func(*FuncTool)

// WithReturnDirect marks the tool's result as final: the generation loop
// stops after the tool runs instead of taking another model turn.
func WithReturnDirect() FuncToolOption {
	return func(t *FuncTool) {
		t.returnDirect = true
	}
}

// NewFuncTool creates a tool from a function.
func NewFuncTool(
	name, description string,
	inputSchema *schema.Schema,
	fn func(ctx context.Context, input json.RawMessage) (*ToolResult, error),
	opts ...FuncToolOption,
) *FuncTool {
	t := &FuncTool{
		name:        name,
		description: description,
		schema:      inputSchema,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *FuncTool) Name() string {
	return t.name
}

func (t *FuncTool) Description() string {
	return t.description
}

func (t *FuncTool) Schema() *schema.Schema {
	return t.schema
}

func (t *FuncTool) ReturnsDirect() bool {
	return t.returnDirect
}

func (t *FuncTool) Call(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	return t.fn(ctx, input)
}

// ReturnsDirect reports whether a tool declares its results final.
func ReturnsDirect(tool Tool) bool {
	if direct, ok := tool.(DirectReturner); ok {
		return direct.ReturnsDirect()
	}
	return false
}
