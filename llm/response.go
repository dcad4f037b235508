package llm

// FinishReason indicates why a model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolUse       FinishReason = "tool_use"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonError         FinishReason = "error"
	FinishReasonCancelled     FinishReason = "cancelled"
	FinishReasonUnknown       FinishReason = "unknown"
)

func (r FinishReason) String() string {
	return string(r)
}

// Response from a model generation call.
type Response struct {
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	Role         Role           `json:"role"`
	Message      *Message       `json:"message"`
	FinishReason FinishReason   `json:"finish_reason"`
	Usage        Usage          `json:"usage"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Text returns the text of the response message.
func (r *Response) Text() string {
	if r.Message == nil {
		return ""
	}
	return r.Message.Text()
}

// ToolCalls returns the tool calls made in the response, if any.
func (r *Response) ToolCalls() []*ToolUseContent {
	if r.Message == nil {
		return nil
	}
	return r.Message.ToolCalls()
}
