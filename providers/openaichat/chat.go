package openaichat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/retry"
	"github.com/openai/openai-go"
)

// ChatModel is a pool-backed llm.StreamingLLM over the Chat Completions API.
type ChatModel struct {
	provider *Provider
	model    string
}

func (m *ChatModel) Name() string {
	return m.model
}

// Generate makes a non-streaming chat completion request. The request leases
// a pool config and retries per that config's MaxRetries.
func (m *ChatModel) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	handle, client, err := m.provider.acquire()
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	params, err := buildParams(m.model, config)
	if err != nil {
		return nil, err
	}

	var response *llm.Response
	err = retry.Do(ctx, func() error {
		completion, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return translateError(err)
		}
		decoded, err := decodeResponse(completion)
		if err != nil {
			return retry.MarkPermanent(err)
		}
		response = decoded
		return nil
	}, retry.WithMaxRetries(configMaxRetries(handle.Config)))
	if err != nil {
		return nil, err
	}
	return response, nil
}

// Stream makes a streaming chat completion request. The pool config stays
// leased until the returned iterator is closed.
func (m *ChatModel) Stream(ctx context.Context, opts ...llm.Option) (llm.StreamIterator, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	handle, client, err := m.provider.acquire()
	if err != nil {
		return nil, err
	}

	params, err := buildParams(m.model, config)
	if err != nil {
		handle.Release()
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)
	return &StreamIterator{stream: stream, release: handle.Release}, nil
}

// buildParams translates a generation config into request parameters.
func buildParams(model string, config *llm.Config) (openai.ChatCompletionNewParams, error) {
	messages, err := encodeMessages(config)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if config.Temperature != nil {
		params.Temperature = openai.Float(*config.Temperature)
	}
	if config.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*config.MaxTokens))
	}
	if len(config.Tools) > 0 {
		tools, err := encodeTools(config.Tools)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Tools = tools
	}
	if choice := encodeToolChoice(config.ToolChoice); choice != nil {
		params.ToolChoice = *choice
	}
	return params, nil
}

func encodeMessages(config *llm.Config) ([]openai.ChatCompletionMessageParamUnion, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if config.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(config.SystemPrompt))
	}
	for _, message := range config.Messages {
		encoded, err := encodeMessage(message)
		if err != nil {
			return nil, err
		}
		messages = append(messages, encoded...)
	}
	return messages, nil
}

func encodeMessage(message *llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	switch message.Role {
	case llm.System:
		return []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(message.Text()),
		}, nil
	case llm.User:
		return []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(message.Text()),
		}, nil
	case llm.Assistant:
		return encodeAssistantMessage(message)
	case llm.ToolRole:
		return encodeToolResultMessage(message)
	default:
		return nil, fmt.Errorf("unsupported message role %q", message.Role)
	}
}

func encodeAssistantMessage(message *llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, content := range message.Content {
		if call, ok := content.(*llm.ToolUseContent); ok {
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   call.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(call.Input),
				},
			})
		}
	}
	if len(toolCalls) == 0 {
		return []openai.ChatCompletionMessageParamUnion{
			openai.AssistantMessage(message.Text()),
		}, nil
	}
	assistant := &openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}
	return []openai.ChatCompletionMessageParamUnion{
		{OfAssistant: assistant},
	}, nil
}

func encodeToolResultMessage(message *llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, content := range message.Content {
		result, ok := content.(*llm.ToolResultContent)
		if !ok {
			return nil, fmt.Errorf("tool message contains non-result content %T", content)
		}
		text, err := stringifyResult(result.Result)
		if err != nil {
			return nil, err
		}
		messages = append(messages, openai.ToolMessage(text, result.ToolUseID))
	}
	return messages, nil
}

func stringifyResult(result any) (string, error) {
	switch value := result.(type) {
	case string:
		return value, nil
	case nil:
		return "", nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("error encoding tool result: %w", err)
		}
		return string(data), nil
	}
}

func encodeTools(tools []llm.Tool) ([]openai.ChatCompletionToolParam, error) {
	encoded := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		parameters, err := schemaParameters(tool)
		if err != nil {
			return nil, err
		}
		encoded[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name(),
				Description: openai.String(tool.Description()),
				Parameters:  parameters,
			},
		}
	}
	return encoded, nil
}

func schemaParameters(tool llm.Tool) (openai.FunctionParameters, error) {
	s := tool.Schema()
	if s == nil {
		return openai.FunctionParameters{"type": "object"}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("error encoding schema for tool %q: %w", tool.Name(), err)
	}
	var parameters map[string]any
	if err := json.Unmarshal(data, &parameters); err != nil {
		return nil, fmt.Errorf("error encoding schema for tool %q: %w", tool.Name(), err)
	}
	return openai.FunctionParameters(parameters), nil
}

func encodeToolChoice(choice llm.ToolChoice) *openai.ChatCompletionToolChoiceOptionUnionParam {
	switch choice.Type {
	case llm.ToolChoiceTypeAuto:
		return &openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	case llm.ToolChoiceTypeAny:
		return &openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
	case llm.ToolChoiceTypeNone:
		return &openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	case llm.ToolChoiceTypeTool:
		return &openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: choice.Name,
				},
			},
		}
	default:
		return nil
	}
}

func decodeResponse(completion *openai.ChatCompletion) (*llm.Response, error) {
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}
	choice := completion.Choices[0]

	var content []llm.Content
	if choice.Message.Content != "" {
		content = append(content, &llm.TextContent{Text: choice.Message.Content})
	}
	for _, call := range choice.Message.ToolCalls {
		content = append(content, &llm.ToolUseContent{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}
	return &llm.Response{
		ID:           completion.ID,
		Model:        completion.Model,
		Role:         llm.Assistant,
		Message:      llm.NewMessage(llm.Assistant, content),
		FinishReason: decodeFinishReason(string(choice.FinishReason)),
		Usage: llm.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}, nil
}

func decodeFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "stop":
		return llm.FinishReasonStop
	case "length":
		return llm.FinishReasonLength
	case "tool_calls", "function_call":
		return llm.FinishReasonToolUse
	case "content_filter":
		return llm.FinishReasonContentFilter
	case "":
		return llm.FinishReasonUnknown
	default:
		return llm.FinishReasonUnknown
	}
}
