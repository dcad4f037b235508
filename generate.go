package strand

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/schema"
)

// GenerateResult is the outcome of a GenerateText call.
type GenerateResult struct {
	ID           string                   `json:"id"`
	Text         string                   `json:"text"`
	Message      *llm.Message             `json:"message"`
	Steps        []*Step                  `json:"steps"`
	ToolCalls    []*llm.ToolUseContent    `json:"tool_calls,omitempty"`
	ToolResults  []*llm.ToolResultContent `json:"tool_results,omitempty"`
	FinishReason llm.FinishReason         `json:"finish_reason"`
	Usage        llm.Usage                `json:"usage"`
}

// GenerateText runs a multi-step generation against the given model:
// the model is called with the full conversation, requested tool calls are
// executed and fed back, and token-limited responses are continued, until
// the model finishes or the step budget runs out. Model failures propagate
// immediately; retry policy belongs to the provider adapter, not here.
func GenerateText(ctx context.Context, model llm.LLM, opts ...Option) (*GenerateResult, error) {
	options := applyOptions(opts)
	messages, err := options.buildMessages()
	if err != nil {
		return nil, err
	}
	toolset := toolsetOf(options.Tools)

	result := &GenerateResult{ID: llm.NewID()}
	logger := options.Logger.With("generation_id", result.ID)
	stepType := StepTypeInitial

	for len(result.Steps) < options.MaxSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		response, err := model.Generate(ctx, options.llmOptions(messages)...)
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}
		if response.Message == nil {
			return nil, fmt.Errorf("model %q returned a response with no message", model.Name())
		}
		result.Usage.Add(&response.Usage)
		result.Message = response.Message
		result.FinishReason = response.FinishReason

		toolCalls := response.ToolCalls()
		step := &Step{
			Type:         stepType,
			Text:         response.Text(),
			ToolCalls:    toolCalls,
			Usage:        response.Usage,
			FinishReason: response.FinishReason,
			Response:     response,
		}
		result.Steps = append(result.Steps, step)

		if stepType == StepTypeContinue {
			result.Text += response.Text()
		} else {
			result.Text = response.Text()
		}

		messages = append(messages, response.Message)

		if len(toolCalls) > 0 {
			toolResults, returnDirect := ExecuteTools(ctx, toolCalls, toolset)
			step.ToolResults = toolResults
			result.ToolCalls = append(result.ToolCalls, toolCalls...)
			result.ToolResults = append(result.ToolResults, toolResults...)
			messages = append(messages, llm.NewToolResultMessage(toolResults...))
			if returnDirect {
				logger.Debug("tool requested direct return",
					"steps", len(result.Steps))
				return result, nil
			}
			stepType = StepTypeToolResult
			continue
		}

		if response.FinishReason == llm.FinishReasonLength {
			stepType = StepTypeContinue
			continue
		}
		return result, nil
	}

	logger.Debug("generation reached max steps",
		"max_steps", options.MaxSteps)
	return result, nil
}

// GenerateObjectResult is the outcome of a GenerateObject call.
type GenerateObjectResult struct {
	// Object is the parsed and validated JSON value.
	Object any `json:"object"`

	// Raw is the JSON text the object was parsed from.
	Raw json.RawMessage `json:"raw"`

	// Generation carries the underlying text generation details.
	Generation *GenerateResult `json:"generation"`
}

// GenerateObject asks the model for JSON conforming to the given schema and
// validates the final response against it. A response that cannot be parsed
// or that fails validation is a fatal *schema.ValidationError; unlike tool
// argument failures there is no further model turn to recover in.
func GenerateObject(ctx context.Context, model llm.LLM, outputSchema *schema.Schema, opts ...Option) (*GenerateObjectResult, error) {
	schemaJSON, err := json.Marshal(outputSchema)
	if err != nil {
		return nil, fmt.Errorf("error marshaling schema: %w", err)
	}

	options := applyOptions(opts)
	instruction := fmt.Sprintf(
		"Respond with a single JSON object matching this JSON schema. Output only the JSON, with no surrounding text.\n\n%s",
		schemaJSON)
	if options.SystemPrompt != "" {
		instruction = options.SystemPrompt + "\n\n" + instruction
	}
	opts = append(opts, WithSystemPrompt(instruction))

	result, err := GenerateText(ctx, model, opts...)
	if err != nil {
		return nil, err
	}

	raw := extractJSON(result.Text)
	var object any
	if err := json.Unmarshal([]byte(raw), &object); err != nil {
		return nil, &schema.ValidationError{
			Path:    "$",
			Message: fmt.Sprintf("response is not valid JSON: %v", err),
		}
	}
	if err := outputSchema.Validate(object); err != nil {
		return nil, err
	}
	return &GenerateObjectResult{
		Object:     object,
		Raw:        json.RawMessage(raw),
		Generation: result,
	}, nil
}

// extractJSON strips markdown code fences and surrounding prose from a model
// response, returning the JSON payload.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx != -1 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return text
	}
	var end int
	if text[start] == '{' {
		end = strings.LastIndex(text, "}")
	} else {
		end = strings.LastIndex(text, "]")
	}
	if end <= start {
		return text
	}
	return text[start : end+1]
}
