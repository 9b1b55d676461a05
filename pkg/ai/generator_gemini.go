package ai

import "context"

// GeminiGenerator wraps GeminiClient with a fixed model. It serves both text
// and audio prompts.
type GeminiGenerator struct {
	client *GeminiClient
	model  string
}

// NewGeminiGenerator builds a Gemini-based TextGenerator and AudioGenerator.
func NewGeminiGenerator(client *GeminiClient, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// GenerateText implements TextGenerator using Gemini.
func (g *GeminiGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (string, error) {
	return g.client.GenerateText(ctx, g.model, systemPrompt, userPrompt, opts...)
}

// GenerateFromAudio implements AudioGenerator using Gemini inline audio.
func (g *GeminiGenerator) GenerateFromAudio(ctx context.Context, audio Audio, prompt string, opts ...Option) (string, error) {
	return g.client.GenerateFromAudio(ctx, g.model, audio, prompt, opts...)
}
