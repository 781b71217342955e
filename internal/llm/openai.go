package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is a Client backed by the OpenAI chat completions API.
type OpenAI struct {
	api         openai.Client
	model       string
	temperature float64
}

// NewOpenAI creates an OpenAI chat client. baseURL may be empty.
func NewOpenAI(apiKey, baseURL, model string, temperature float64) *OpenAI {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{api: openai.NewClient(opts...), model: model, temperature: temperature}
}

// Complete sends one chat completion request.
func (c *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", emptyReply("openai")
	}
	return resp.Choices[0].Message.Content, nil
}
