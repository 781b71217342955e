package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI embeds through the OpenAI embeddings endpoint or any compatible server.
type OpenAI struct {
	api      openai.Client
	model    string
	maxChars int
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	apiKey   string
	baseURL  string
	maxChars int
}

// WithOpenAIKey sets the API key.
func WithOpenAIKey(key string) OpenAIOption {
	return func(c *openAIConfig) { c.apiKey = key }
}

// WithOpenAIBaseURL points the client at a compatible server.
func WithOpenAIBaseURL(u string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = u }
}

// WithOpenAIMaxChars truncates every input to n runes.
func WithOpenAIMaxChars(n int) OpenAIOption {
	return func(c *openAIConfig) { c.maxChars = n }
}

// NewOpenAI creates an OpenAI embedding provider for model.
func NewOpenAI(model string, opts ...OpenAIOption) *OpenAI {
	var cfg openAIConfig
	for _, o := range opts {
		o(&cfg)
	}
	var reqOpts []option.RequestOption
	if cfg.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &OpenAI{api: openai.NewClient(reqOpts...), model: model, maxChars: cfg.maxChars}
}

// Model returns the configured model name.
func (e *OpenAI) Model() string { return e.model }

// Embed embeds texts in one request.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = Truncate(t, e.maxChars)
	}
	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: openai: %w", err)
	}
	if err := checkCount(len(texts), len(resp.Data)); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}
