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
	"dreamdecode/pkg/insights"
)

// ConfigEnv names the variable that overrides the config file path.
const ConfigEnv = "JOURNAL_CONFIG"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port         string `yaml:"port"`
	LogLevel     string `yaml:"logLevel"`
	AIGatewayURL string `yaml:"aiGatewayURL"`
	// AIGatewayToken authenticates calls made outside a request, such as art
	// jobs; request-scoped calls forward the caller token.
	AIGatewayToken string `yaml:"aiGatewayToken"`

	// DatabaseURL selects the Postgres remote mirror; empty keeps an
	// in-memory remote store.
	DatabaseURL   string `yaml:"databaseURL"`
	LocalDBPath   string `yaml:"localDBPath"`
	MirrorTimeout string `yaml:"mirrorTimeout"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	ArtWorkers    int    `yaml:"artWorkers"`
	ArtJobTTL     string `yaml:"artJobTTL"`
	ArtMaxRetries int    `yaml:"artMaxRetries"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	PresignExpiry  string `yaml:"presignExpiry"`

	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`

	MaxUploadBytes    int64            `yaml:"maxUploadBytes"`
	TrustedProxyCIDRs []string         `yaml:"trustedProxyCidrs"`
	HealthWeights     insights.Weights `yaml:"healthWeights"`
	Timezone          string           `yaml:"timezone"`
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
	if v := os.Getenv("JOURNAL_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AIGATEWAY_URL"); v != "" {
		cfg.AIGatewayURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("AIGATEWAY_TOKEN"); v != "" {
		cfg.AIGatewayToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("JOURNAL_LOCAL_DB_PATH"); v != "" {
		cfg.LocalDBPath = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JOURNAL_ART_WORKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.ArtWorkers = n
		}
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
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
	if v := os.Getenv("JOURNAL_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = util.SplitCSV(v)
	}
	if v := os.Getenv("JOURNAL_TIMEZONE"); v != "" {
		cfg.Timezone = strings.TrimSpace(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LocalDBPath == "" {
		cfg.LocalDBPath = "data/journal.db"
	}
	if cfg.ArtWorkers == 0 {
		cfg.ArtWorkers = 2
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.HealthWeights == (insights.Weights{}) {
		cfg.HealthWeights = insights.DefaultWeights()
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.AIGatewayURL == "" {
		return errors.New("config: aiGatewayURL is required (set in config.yaml or AIGATEWAY_URL)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minioAccessKey, minioSecretKey and minioBucket are required with minioEndpoint")
	}
	if cfg.ArtWorkers < 0 {
		return errors.New("config: artWorkers must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	for name, value := range map[string]string{
		"mirrorTimeout": cfg.MirrorTimeout,
		"artJobTTL":     cfg.ArtJobTTL,
		"presignExpiry": cfg.PresignExpiry,
		"jwtLeeway":     cfg.JWTLeeway,
	} {
		if _, err := ParseDuration(name, value); err != nil {
			return err
		}
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", cfg.Timezone, err)
	}
	w := cfg.HealthWeights
	if w.Frequency < 0 || w.Diversity < 0 || w.Volume < 0 {
		return errors.New("config: healthWeights must be >= 0")
	}
	if w.Floor > w.Ceiling {
		return errors.New("config: healthWeights.floor must not exceed ceiling")
	}
	return nil
}

// ParseDuration parses an optional duration setting. Blank means zero, which
// callers treat as their default.
func ParseDuration(name, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return d, nil
}

// Location resolves the configured timezone.
func (c FileConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
