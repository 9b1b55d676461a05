package ai

import (
	"context"
	"fmt"
	"strings"
)

// OllamaGenerator wraps OllamaClient with a fixed model for text generation
// using the Ollama /api/chat endpoint.
type OllamaGenerator struct {
	client *OllamaClient
	model  string
}

// NewOllamaGenerator builds an Ollama-based TextGenerator.
func NewOllamaGenerator(client *OllamaClient, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

// GenerateText implements TextGenerator using Ollama /api/chat.
func (g *OllamaGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (string, error) {
	model := strings.TrimSpace(g.model)
	if model == "" {
		return "", fmt.Errorf("ollama generation model required")
	}
	o := collect(opts)

	messages := make([]ollamaChatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: userPrompt})

	reqBody := ollamaChatRequest{Model: model, Messages: messages}
	if o.json {
		reqBody.Format = "json"
	}
	if o.maxOutputTokens > 0 || o.temperature != nil {
		reqBody.Options = &ollamaOptions{NumPredict: o.maxOutputTokens, Temperature: o.temperature}
	}

	var resp ollamaChatResponse
	if err := g.client.doJSON(ctx, "/api/chat", reqBody, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Message.Content, nil
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  *ollamaOptions      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}
