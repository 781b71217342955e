package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// Ollama embeds through the Ollama /api/embed endpoint.
type Ollama struct {
	client   *api.Client
	model    string
	maxChars int
}

// NewOllama creates an embedder targeting the given Ollama instance.
func NewOllama(baseURL, model string, maxChars int) (*Ollama, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("embedding: parse ollama url: %w", err)
	}
	client := api.NewClient(u, &http.Client{Timeout: 120 * time.Second})
	return &Ollama{client: client, model: model, maxChars: maxChars}, nil
}

// Model returns the configured model name.
func (e *Ollama) Model() string { return e.model }

// Embed sends a batch of texts to Ollama and returns their embeddings.
func (e *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = Truncate(t, e.maxChars)
	}
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("embedding: ollama: %w", err)
	}
	if err := checkCount(len(texts), len(resp.Embeddings)); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
