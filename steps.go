package strand

import "github.com/deepnoodle-ai/strand/llm"

// StepType labels why a generation step ran.
type StepType string

const (
	// StepTypeInitial is the first model call of an operation.
	StepTypeInitial StepType = "initial"

	// StepTypeContinue follows a step that stopped at the token limit
	// without requesting tools; its text appends to the running text.
	StepTypeContinue StepType = "continue"

	// StepTypeToolResult follows a step whose tool calls have all been
	// executed; the model sees the results and responds again.
	StepTypeToolResult StepType = "tool-result"
)

// Step records one model round-trip within a generation.
type Step struct {
	Type         StepType                 `json:"type"`
	Text         string                   `json:"text,omitempty"`
	ToolCalls    []*llm.ToolUseContent    `json:"tool_calls,omitempty"`
	ToolResults  []*llm.ToolResultContent `json:"tool_results,omitempty"`
	Usage        llm.Usage                `json:"usage"`
	FinishReason llm.FinishReason         `json:"finish_reason,omitempty"`
	Response     *llm.Response            `json:"-"`
}
