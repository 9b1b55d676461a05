package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAICompatGenerator calls any OpenAI-compatible /v1/chat/completions endpoint.
// Works with OpenAI, vLLM, LiteLLM, LocalAI, OpenRouter and self-hosted models.
type OpenAICompatGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatGenerator builds an OpenAI-compatible TextGenerator.
// baseURL should include the /v1 prefix, e.g. "http://localhost:8000/v1".
// apiKey can be empty for local models that do not require authentication.
func NewOpenAICompatGenerator(baseURL, apiKey, model string) *OpenAICompatGenerator {
	return &OpenAICompatGenerator{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// GenerateText implements TextGenerator using the OpenAI chat completions API.
func (g *OpenAICompatGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("openai-compat generation model required")
	}
	o := collect(opts)
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: userPrompt})

	reqBody := oaiChatRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   o.maxOutputTokens,
		Temperature: o.temperature,
	}
	if o.json {
		reqBody.ResponseFormat = &oaiResponseFormat{Type: "json_object"}
	}

	var chatResp oaiChatResponse
	if err := postOpenAI(ctx, g.httpClient, g.baseURL+"/chat/completions", g.apiKey, reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func postOpenAI(ctx context.Context, hc *http.Client, url, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("openai-compat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var errResp oaiErrorResponse
		_ = json.Unmarshal(raw, &errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Provider: "openai-compat", StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai-compat decode: %w", err)
	}
	return nil
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiChatRequest struct {
	Model          string             `json:"model"`
	Messages       []oaiMessage       `json:"messages"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	Temperature    *float64           `json:"temperature,omitempty"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
