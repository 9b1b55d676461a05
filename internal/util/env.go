package util

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotenv loads the first .env found in the working directory or its two
// parents. Variables already set in the environment win.
func LoadDotenv() string {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("failed to load env file", "path", p, "err", err)
			return ""
		}
		return p
	}
	return ""
}

// ConfigPath returns the value of envVar, or config.yaml when unset.
func ConfigPath(envVar string) string {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v
	}
	return "config.yaml"
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
