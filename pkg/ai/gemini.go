package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GeminiOption customizes a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithGeminiBaseURL points the client at a different endpoint (tests, proxies).
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(c *GeminiClient) {
		if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithGeminiHTTPClient replaces the default HTTP client.
func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(c *GeminiClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewGeminiClient constructs a client with the provided API key. Audio
// uploads are large, so the default timeout is generous.
func NewGeminiClient(apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	c := &GeminiClient{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateText returns the generated response for a prompt.
func (c *GeminiClient) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string, opts ...Option) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: userPrompt}}}},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	reqBody.GenerationConfig = generationConfigFrom(collect(opts))
	return c.generate(ctx, model, reqBody)
}

// GenerateFromAudio sends the recording inline followed by the prompt.
func (c *GeminiClient) GenerateFromAudio(ctx context.Context, model string, audio Audio, prompt string, opts ...Option) (string, error) {
	if len(audio.Data) == 0 {
		return "", fmt.Errorf("gemini audio payload is empty")
	}
	mimeType := strings.TrimSpace(audio.MIMEType)
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	reqBody := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(audio.Data)}},
				{Text: prompt},
			},
		}},
		GenerationConfig: generationConfigFrom(collect(opts)),
	}
	return c.generate(ctx, model, reqBody)
}

func (c *GeminiClient) generate(ctx context.Context, model string, reqBody generateRequest) (string, error) {
	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, normalizeModel(model))
	if err := c.doJSON(ctx, url, reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func generationConfigFrom(o options) *generationConfig {
	if o.maxOutputTokens <= 0 && !o.json && o.temperature == nil {
		return nil
	}
	cfg := &generationConfig{MaxOutputTokens: o.maxOutputTokens, Temperature: o.temperature}
	if o.json {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

// doJSON posts payload with the key in a header so it never appears in
// logged URLs or transport errors.
func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var errResp errorResponse
		_ = json.Unmarshal(raw, &errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &APIError{Provider: "gemini", StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gemini decode: %w", err)
	}
	return nil
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
