package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dreamdecode/internal/util"
)

// ConfigEnv names the variable that overrides the config file path.
const ConfigEnv = "AIGATEWAY_CONFIG"

// Generation providers.
const (
	ProviderGemini       = "gemini"
	ProviderOpenAICompat = "openai-compat"
	ProviderOllama       = "ollama"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"logLevel"`
	GenerationProvider string   `yaml:"generationProvider"`
	GenerationBaseURL  string   `yaml:"generationBaseURL"`
	GenerationAPIKey   string   `yaml:"generationAPIKey"`
	GenerationModel    string   `yaml:"generationModel"`
	ImageBaseURL       string   `yaml:"imageBaseURL"`
	ImageAPIKey        string   `yaml:"imageAPIKey"`
	ImageModel         string   `yaml:"imageModel"`
	ImageSize          string   `yaml:"imageSize"`
	ImageQuality       string   `yaml:"imageQuality"`
	RetryDelay         string   `yaml:"retryDelay"`
	MaxBodyBytes       int64    `yaml:"maxBodyBytes"`
	RedisAddr          string   `yaml:"redisAddr"`
	RedisPassword      string   `yaml:"redisPassword"`
	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
	TrustedProxyCIDRs  []string `yaml:"trustedProxyCidrs"`
	RequireAuth        bool     `yaml:"requireAuth"`
	JWTSecret          string   `yaml:"jwtSecret"`
	JWTIssuer          string   `yaml:"jwtIssuer"`
	JWTAudience        string   `yaml:"jwtAudience"`
	JWTLeeway          string   `yaml:"jwtLeeway"`
}

// Load reads config from path (defaults to config.yaml), then applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = util.ConfigPath(ConfigEnv)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("AIGATEWAY_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AIGATEWAY_GENERATION_PROVIDER"); v != "" {
		cfg.GenerationProvider = strings.TrimSpace(v)
	}
	if v := os.Getenv("AIGATEWAY_GENERATION_BASE_URL"); v != "" {
		cfg.GenerationBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("AIGATEWAY_GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = strings.TrimSpace(v)
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("AIGATEWAY_GENERATION_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.ImageAPIKey = v
	}
	if v := os.Getenv("AIGATEWAY_IMAGE_BASE_URL"); v != "" {
		cfg.ImageBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("AIGATEWAY_RETRY_DELAY"); v != "" {
		cfg.RetryDelay = strings.TrimSpace(v)
	}
	if v := os.Getenv("AIGATEWAY_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("AIGATEWAY_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("AIGATEWAY_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = util.SplitCSV(v)
	}
	if v := os.Getenv("AIGATEWAY_REQUIRE_AUTH"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.RequireAuth = b
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
}

func applyDefaults(cfg *FileConfig) {
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = ProviderGemini
	}
	if cfg.GenerationModel == "" && cfg.GenerationProvider == ProviderGemini {
		cfg.GenerationModel = "gemini-2.5-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = "1024x1024"
	}
	if cfg.ImageQuality == "" {
		cfg.ImageQuality = "standard"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.GenerationProvider {
	case ProviderGemini:
		if strings.TrimSpace(cfg.GenerationAPIKey) == "" {
			return errors.New("config: generationAPIKey is required for gemini (set in config.yaml or GEMINI_API_KEY)")
		}
	case ProviderOpenAICompat, ProviderOllama:
		if strings.TrimSpace(cfg.GenerationBaseURL) == "" {
			return fmt.Errorf("config: generationBaseURL is required for %s", cfg.GenerationProvider)
		}
		if strings.TrimSpace(cfg.GenerationModel) == "" {
			return fmt.Errorf("config: generationModel is required for %s", cfg.GenerationProvider)
		}
	default:
		return fmt.Errorf("config: unknown generationProvider %q (gemini, openai-compat or ollama)", cfg.GenerationProvider)
	}
	if _, err := ParseRetryDelay(cfg.RetryDelay); err != nil {
		return err
	}
	if _, err := ParseJWTLeeway(cfg.JWTLeeway); err != nil {
		return err
	}
	if cfg.MaxBodyBytes < 0 {
		return errors.New("config: maxBodyBytes must be >= 0")
	}
	if cfg.RateLimitPerMinute < 0 {
		return errors.New("config: rateLimitPerMinute must be >= 0")
	}
	if cfg.RequireAuth && strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required when requireAuth is set (set in config.yaml or JWT_SECRET)")
	}
	return nil
}

// ParseRetryDelay parses the provider retry backoff. Blank means the default.
func ParseRetryDelay(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 2 * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid retryDelay duration: %w", err)
	}
	if d < 0 {
		return 0, errors.New("invalid retryDelay duration: must be >= 0")
	}
	return d, nil
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}
