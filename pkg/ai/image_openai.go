package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultImageModel   = "dall-e-3"
	defaultImageSize    = "1024x1024"
	defaultImageQuality = "standard"
)

// OpenAIImageGenerator calls an OpenAI-compatible /v1/images/generations endpoint.
type OpenAIImageGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	quality    string
	httpClient *http.Client
}

// NewOpenAIImageGenerator builds an ImageGenerator. Empty model, size and
// quality fall back to dall-e-3, 1024x1024 and standard.
func NewOpenAIImageGenerator(baseURL, apiKey, model, size, quality string) *OpenAIImageGenerator {
	g := &OpenAIImageGenerator{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		size:       strings.TrimSpace(size),
		quality:    strings.TrimSpace(quality),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	if g.model == "" {
		g.model = defaultImageModel
	}
	if g.size == "" {
		g.size = defaultImageSize
	}
	if g.quality == "" {
		g.quality = defaultImageQuality
	}
	return g
}

// GenerateImage implements ImageGenerator and returns the hosted image URL.
func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("image prompt required")
	}
	reqBody := oaiImageRequest{
		Model:   g.model,
		Prompt:  prompt,
		N:       1,
		Size:    g.size,
		Quality: g.quality,
	}
	var resp oaiImageResponse
	if err := postOpenAI(ctx, g.httpClient, g.baseURL+"/images/generations", g.apiKey, reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Data[0].URL, nil
}

type oaiImageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

type oaiImageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}
