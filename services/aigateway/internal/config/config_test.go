package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("AIGATEWAY_TRUSTED_PROXY_CIDRS", "10.0.0.0/8, ,127.0.0.1")
	t.Setenv("AIGATEWAY_RATE_LIMIT_PER_MINUTE", "12")
	path := writeConfig(t, "port: \"8090\"\nlogLevel: debug\nretryDelay: 500ms\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GenerationProvider != ProviderGemini || cfg.GenerationModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected provider defaults: %+v", cfg)
	}
	if cfg.GenerationAPIKey != "gemini-key" || cfg.RedisAddr != "redis:6379" || cfg.RateLimitPerMinute != 12 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.TrustedProxyCIDRs) != 2 {
		t.Fatalf("expected 2 trusted proxies, got %v", cfg.TrustedProxyCIDRs)
	}
	if cfg.ImageModel != "dall-e-3" || cfg.ImageSize != "1024x1024" {
		t.Fatalf("image defaults not applied: %+v", cfg)
	}
	d, err := ParseRetryDelay(cfg.RetryDelay)
	if err != nil || d != 500*time.Millisecond {
		t.Fatalf("retry delay = %v, %v", d, err)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("AIGATEWAY_GENERATION_API_KEY", "")
	t.Setenv("JWT_SECRET", "")
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing port", "generationAPIKey: k\n", "port is required"},
		{"gemini without key", "port: \"1\"\n", "generationAPIKey is required"},
		{"ollama without url", "port: \"1\"\ngenerationProvider: ollama\ngenerationModel: llama3\n", "generationBaseURL is required"},
		{"unknown provider", "port: \"1\"\ngenerationProvider: claude-direct\n", "unknown generationProvider"},
		{"bad retry", "port: \"1\"\ngenerationAPIKey: k\nretryDelay: soon\n", "invalid retryDelay"},
		{"auth without secret", "port: \"1\"\ngenerationAPIKey: k\nrequireAuth: true\n", "jwtSecret is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadOpenAICompat(t *testing.T) {
	path := writeConfig(t, "port: \"1\"\ngenerationProvider: OpenAI-Compat\ngenerationBaseURL: http://llm:8000/v1\ngenerationModel: qwen\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GenerationProvider != ProviderOpenAICompat {
		t.Fatalf("provider = %q", cfg.GenerationProvider)
	}
}

func TestParseRetryDelayDefault(t *testing.T) {
	d, err := ParseRetryDelay("")
	if err != nil || d != 2*time.Second {
		t.Fatalf("default retry delay = %v, %v", d, err)
	}
}
