package strand

import (
	"errors"

	"github.com/deepnoodle-ai/strand/llm"
	"github.com/deepnoodle-ai/strand/log"
)

// DefaultMaxSteps bounds the number of model round-trips in one generation.
const DefaultMaxSteps = 8

// Options configures a GenerateText or StreamText call.
type Options struct {
	Prompt       string
	SystemPrompt string
	Messages     []*llm.Message
	Tools        []llm.Tool
	ToolChoice   llm.ToolChoice
	MaxTokens    *int
	Temperature  *float64
	MaxSteps     int
	Logger       log.Logger
}

// Option configures generation behavior.
type Option func(*Options)

// WithPrompt appends a user message with the given text.
func WithPrompt(prompt string) Option {
	return func(o *Options) { o.Prompt = prompt }
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Options) { o.SystemPrompt = prompt }
}

// WithMessages sets the conversation history.
func WithMessages(messages ...*llm.Message) Option {
	return func(o *Options) { o.Messages = messages }
}

// WithTools sets the tools offered to the model.
func WithTools(tools ...llm.Tool) Option {
	return func(o *Options) { o.Tools = tools }
}

// WithToolChoice controls how the model selects tools.
func WithToolChoice(choice llm.ToolChoice) Option {
	return func(o *Options) { o.ToolChoice = choice }
}

// WithMaxTokens caps generated tokens per step.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = &n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

// WithMaxSteps bounds the model round-trips in one call.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithLogger sets the logger for generation events.
func WithLogger(logger log.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func applyOptions(opts []Option) *Options {
	options := &Options{
		MaxSteps: DefaultMaxSteps,
		Logger:   log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// buildMessages assembles the initial conversation from the configured
// history and prompt.
func (o *Options) buildMessages() ([]*llm.Message, error) {
	messages := make([]*llm.Message, 0, len(o.Messages)+1)
	messages = append(messages, o.Messages...)
	if o.Prompt != "" {
		messages = append(messages, llm.NewUserTextMessage(o.Prompt))
	}
	if len(messages) == 0 {
		return nil, errors.New("no messages provided")
	}
	return messages, nil
}

// llmOptions translates the generation options into model call options for
// the given conversation state.
func (o *Options) llmOptions(messages []*llm.Message) []llm.Option {
	opts := []llm.Option{llm.WithMessages(messages...)}
	if o.SystemPrompt != "" {
		opts = append(opts, llm.WithSystemPrompt(o.SystemPrompt))
	}
	if len(o.Tools) > 0 {
		opts = append(opts, llm.WithTools(o.Tools...))
	}
	if o.ToolChoice.Type != "" {
		opts = append(opts, llm.WithToolChoice(o.ToolChoice))
	}
	if o.MaxTokens != nil {
		opts = append(opts, llm.WithMaxTokens(*o.MaxTokens))
	}
	if o.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*o.Temperature))
	}
	if o.Logger != nil {
		opts = append(opts, llm.WithLogger(o.Logger))
	}
	return opts
}
