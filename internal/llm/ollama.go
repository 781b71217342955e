package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Ollama is a Client backed by the Ollama chat endpoint.
type Ollama struct {
	client      *api.Client
	model       string
	temperature float64
}

// NewOllama creates an Ollama chat client.
func NewOllama(baseURL, model string, temperature float64) (*Ollama, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("llm: parse ollama url: %w", err)
	}
	return &Ollama{
		client:      api.NewClient(u, &http.Client{Timeout: 5 * time.Minute}),
		model:       model,
		temperature: temperature,
	}, nil
}

// Complete sends one non-streaming chat request.
func (c *Ollama) Complete(ctx context.Context, system, user string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": c.temperature},
	}
	var sb strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: ollama: %w", err)
	}
	if sb.Len() == 0 {
		return "", emptyReply("ollama")
	}
	return sb.String(), nil
}
