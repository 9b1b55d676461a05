package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"dreamdecode/internal/metrics"
	"dreamdecode/internal/usertoken"
	"dreamdecode/internal/util"
	"dreamdecode/pkg/journal"
	"dreamdecode/pkg/localstore"
	"dreamdecode/pkg/queue"
	"dreamdecode/pkg/storage"
	"dreamdecode/pkg/store"
	"dreamdecode/services/journal/internal/aiclient"
	"dreamdecode/services/journal/internal/app"
	"dreamdecode/services/journal/internal/config"
	"dreamdecode/services/journal/internal/server"
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
	mirrorTimeout := mustDuration("mirrorTimeout", cfg.MirrorTimeout)
	presignExpiry := mustDuration("presignExpiry", cfg.PresignExpiry)
	artJobTTL := mustDuration("artJobTTL", cfg.ArtJobTTL)
	leeway := mustDuration("jwtLeeway", cfg.JWTLeeway)
	ctx := context.Background()

	local, err := localstore.Open(cfg.LocalDBPath)
	if err != nil {
		util.Fatal("failed to open local store", "path", cfg.LocalDBPath, "err", err)
	}
	defer local.Close()

	var remote store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			util.Fatal("failed to init remote store", "err", err)
		}
		defer gormStore.Close()
		remote = gormStore
	} else {
		logger.Warn("databaseURL not set; remote mirror is in memory")
		remote = store.NewMemoryStore()
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			util.Fatal("failed to init object storage", "err", err)
		}
	} else {
		logger.Warn("minioEndpoint not set; recordings and art are not stored")
	}

	m := metrics.New("journal")
	localMirror := journal.LocalMirror{Store: local}
	remoteMirror := journal.RemoteMirror{Store: remote}
	registry := journal.NewRegistry(journal.Options{
		Mirrors:       []journal.Mirror{localMirror, remoteMirror},
		Logger:        logger,
		MirrorTimeout: mirrorTimeout,
		OnSync: func(r journal.SyncResult) {
			m.ObserveMirror(r.Mirror, r.Op, r.Err)
		},
	}, localMirror, remoteMirror)

	var artQueue *queue.ArtQueue
	if cfg.RedisAddr != "" {
		artQueue, err = queue.NewArtQueue(queue.Config{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			JobTTL:     artJobTTL,
			MaxRetries: cfg.ArtMaxRetries,
			Logger:     logger.With("component", "art_queue"),
		})
		if err != nil {
			util.Fatal("failed to init art queue", "err", err)
		}
		defer artQueue.Close()
	} else {
		logger.Warn("redisAddr not set; dream art renders inline")
	}

	core, err := app.New(app.Config{
		Gateway:       aiclient.NewClient(cfg.AIGatewayURL, aiclient.WithBearerToken(cfg.AIGatewayToken)),
		Registry:      registry,
		Remote:        remote,
		Local:         local,
		Objects:       objects,
		PresignExpiry: presignExpiry,
		ArtQueue:      artQueue,
		Observer:      m,
		Weights:       cfg.HealthWeights,
		Location:      cfg.Location(),
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}
	if artQueue != nil && cfg.ArtWorkers > 0 {
		artQueue.Start(ctx, cfg.ArtWorkers, core.HandleArtJob)
	}

	verifier, err := usertoken.NewVerifier(usertoken.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   leeway,
	})
	if err != nil {
		util.Fatal("failed to init token verifier", "err", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		util.Fatal("invalid trustedProxyCidrs", "err", err)
	}

	httpServer, err := server.New(server.Config{
		App:            core,
		TokenVerifier:  verifier,
		TrustedProxies: trusted,
		Metrics:        m,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("journal listening", "addr", addr, "aigateway", cfg.AIGatewayURL, "timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func mustDuration(name, value string) time.Duration {
	d, err := config.ParseDuration(name, value)
	if err != nil {
		util.Fatal("invalid duration", "setting", name, "err", err)
	}
	return d
}
