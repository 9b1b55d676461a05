package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts ...Option) (string, error)
}

// AudioGenerator answers a prompt about an audio clip. Only Gemini accepts
// inline audio.
type AudioGenerator interface {
	GenerateFromAudio(ctx context.Context, audio Audio, prompt string, opts ...Option) (string, error)
}

// ImageGenerator renders a prompt and returns a URL to the image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Audio is an encoded recording.
type Audio struct {
	Data     []byte
	MIMEType string
}

type options struct {
	maxOutputTokens int
	json            bool
	temperature     *float64
}

// Option tweaks a single generation call.
type Option func(*options)

// WithMaxOutputTokens caps the reply length.
func WithMaxOutputTokens(n int) Option {
	return func(o *options) { o.maxOutputTokens = n }
}

// WithJSONResponse asks the provider for a JSON object reply where supported.
func WithJSONResponse() Option {
	return func(o *options) { o.json = true }
}

// WithTemperature sets sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = &t }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
