package main

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dreamdecode/internal/metrics"
	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/pkg/ai"
	"dreamdecode/services/aigateway/internal/app"
	"dreamdecode/services/aigateway/internal/config"
	"dreamdecode/services/aigateway/internal/server"
)

func main() {
	envFile := util.LoadDotenv()
	cfg, err := config.Load(util.ConfigPath(config.ConfigEnv))
	if err != nil {
		util.Fatal("failed to load config", "err", err)
	}
	logger := util.InitLogger(cfg.LogLevel)
	if envFile != "" {
		logger.Info("loaded env file", "path", envFile)
	}

	retryDelay, err := config.ParseRetryDelay(cfg.RetryDelay)
	if err != nil {
		util.Fatal("invalid retry delay", "err", err)
	}
	text, audio, err := newGenerators(cfg)
	if err != nil {
		util.Fatal("failed to init generation provider", "err", err)
	}
	var images ai.ImageGenerator
	if strings.TrimSpace(cfg.ImageAPIKey) != "" {
		images = ai.NewOpenAIImageGenerator(cfg.ImageBaseURL, cfg.ImageAPIKey, cfg.ImageModel, cfg.ImageSize, cfg.ImageQuality)
	} else {
		logger.Warn("imageAPIKey not set; dream art is disabled")
	}

	m := metrics.New("aigateway")
	core, err := app.New(app.Config{
		Text:       text,
		Audio:      audio,
		Images:     images,
		RetryDelay: retryDelay,
		Observer:   m,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	var verifier *usertoken.Verifier
	if cfg.RequireAuth {
		leeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
		if err != nil {
			util.Fatal("invalid jwt leeway", "err", err)
		}
		verifier, err = usertoken.NewVerifier(usertoken.Config{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   leeway,
		})
		if err != nil {
			util.Fatal("failed to init token verifier", "err", err)
		}
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		util.Fatal("invalid trustedProxyCidrs", "err", err)
	}

	httpServer, err := server.New(server.Config{
		App:                core,
		TokenVerifier:      verifier,
		TrustedProxies:     trusted,
		Metrics:            m,
		RedisAddr:          cfg.RedisAddr,
		RedisPassword:      cfg.RedisPassword,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxBodyBytes:       cfg.MaxBodyBytes,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("aigateway listening", "addr", addr, "provider", cfg.GenerationProvider, "model", cfg.GenerationModel)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// newGenerators returns the text generator and, when the provider accepts
// audio, the audio generator.
func newGenerators(cfg config.FileConfig) (ai.TextGenerator, ai.AudioGenerator, error) {
	switch cfg.GenerationProvider {
	case config.ProviderOpenAICompat:
		return ai.NewOpenAICompatGenerator(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel), nil, nil
	case config.ProviderOllama:
		return ai.NewOllamaGenerator(ai.NewOllamaClient(cfg.GenerationBaseURL), cfg.GenerationModel), nil, nil
	default:
		var opts []ai.GeminiOption
		if cfg.GenerationBaseURL != "" {
			opts = append(opts, ai.WithGeminiBaseURL(cfg.GenerationBaseURL))
		}
		client, err := ai.NewGeminiClient(cfg.GenerationAPIKey, opts...)
		if err != nil {
			return nil, nil, err
		}
		gen := ai.NewGeminiGenerator(client, cfg.GenerationModel)
		return gen, gen, nil
	}
}
