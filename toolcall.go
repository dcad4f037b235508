package strand

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deepnoodle-ai/strand/llm"
	"golang.org/x/sync/errgroup"
)

// ExceptionToolName is the sentinel tool name used when a requested call
// cannot be executed: unknown tool, malformed arguments, or a schema
// validation failure. The failure travels back to the model as a tool
// result instead of failing the generation.
const ExceptionToolName = "_exception"

// ParseToolCall normalizes a model-requested tool call against the available
// toolset. Empty argument strings are treated as an empty object. Unknown
// tools and invalid arguments produce a sentinel call named _exception
// carrying the failure message; this function never returns an error.
func ParseToolCall(call *llm.ToolUseContent, toolset map[string]llm.Tool) *llm.ToolUseContent {
	input := call.Input
	if len(input) == 0 || string(input) == `""` {
		input = json.RawMessage(`{}`)
	}

	tool, ok := toolset[call.Name]
	if !ok {
		return exceptionCall(call, fmt.Sprintf("unknown tool %q", call.Name))
	}

	var args any
	if err := json.Unmarshal(input, &args); err != nil {
		return exceptionCall(call, fmt.Sprintf("invalid tool arguments: %v", err))
	}
	if s := tool.Schema(); s != nil {
		if err := s.Validate(args); err != nil {
			return exceptionCall(call, fmt.Sprintf("tool arguments failed validation: %v", err))
		}
	}
	return &llm.ToolUseContent{ID: call.ID, Name: call.Name, Input: input}
}

func exceptionCall(call *llm.ToolUseContent, message string) *llm.ToolUseContent {
	payload, _ := json.Marshal(map[string]string{
		"tool":  call.Name,
		"error": message,
	})
	return &llm.ToolUseContent{ID: call.ID, Name: ExceptionToolName, Input: payload}
}

// ExecuteTools runs the given tool calls concurrently and returns their
// results in call order. Tool failures and panics become error results, never
// propagated errors. The second return is true when any executed tool
// declares that its result should be returned directly to the caller.
func ExecuteTools(ctx context.Context, calls []*llm.ToolUseContent, toolset map[string]llm.Tool) ([]*llm.ToolResultContent, bool) {
	results := make([]*llm.ToolResultContent, len(calls))
	returnDirect := make([]bool, len(calls))

	g, ctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i], returnDirect[i] = executeTool(ctx, call, toolset)
			return nil
		})
	}
	// Goroutines never return errors; failures are captured as results.
	_ = g.Wait()

	direct := false
	for _, d := range returnDirect {
		direct = direct || d
	}
	return results, direct
}

func executeTool(ctx context.Context, call *llm.ToolUseContent, toolset map[string]llm.Tool) (result *llm.ToolResultContent, returnDirect bool) {
	parsed := ParseToolCall(call, toolset)
	if parsed.Name == ExceptionToolName {
		return &llm.ToolResultContent{
			ToolUseID: call.ID,
			Name:      call.Name,
			Result:    string(parsed.Input),
			IsError:   true,
		}, false
	}

	tool := toolset[parsed.Name]
	defer func() {
		if r := recover(); r != nil {
			result = &llm.ToolResultContent{
				ToolUseID: call.ID,
				Name:      call.Name,
				Result:    fmt.Sprintf("tool panicked: %v", r),
				IsError:   true,
			}
			returnDirect = false
		}
	}()

	out, err := tool.Call(ctx, parsed.Input)
	if err != nil {
		return &llm.ToolResultContent{
			ToolUseID: call.ID,
			Name:      call.Name,
			Result:    err.Error(),
			IsError:   true,
		}, false
	}
	return &llm.ToolResultContent{
		ToolUseID: call.ID,
		Name:      call.Name,
		Result:    out.Result,
		IsError:   out.IsError,
	}, llm.ReturnsDirect(tool)
}

// toolsetOf indexes tools by name.
func toolsetOf(tools []llm.Tool) map[string]llm.Tool {
	if len(tools) == 0 {
		return nil
	}
	toolset := make(map[string]llm.Tool, len(tools))
	for _, tool := range tools {
		toolset[tool.Name()] = tool
	}
	return toolset
}
