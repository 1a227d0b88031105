package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quotepix/internal/http/handlers"
	"quotepix/internal/http/httpapi"
	"quotepix/internal/infra"
	"quotepix/internal/infra/credentials"
	"quotepix/internal/infra/geoip"
	"quotepix/internal/keypool"
	"quotepix/internal/middleware"
	"quotepix/internal/notify"
	"quotepix/internal/providers/image"
	"quotepix/internal/renderjobs"
	"quotepix/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	store := renderjobs.NewStore(runner, logger)
	credStore := credentials.NewStore(runner)

	objects, staticDir, err := buildObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	generator, err := image.NewClient(image.Options{
		BaseURL:    cfg.GenBaseURL,
		Model:      cfg.GenModel,
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure generation client")
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, nil)
	}

	resolver := keypool.NewResolver(runner, credStore, cfg.CredentialSecret, cfg.GenAPIKey, cfg.GraceTiers, logger)
	worker := renderjobs.NewWorker(renderjobs.WorkerOptions{
		Store:            store,
		Resolver:         resolver,
		Generator:        generator,
		Objects:          objects,
		Notifier:         notifier,
		Logger:           logger,
		PlatformDailyCap: cfg.RenderDailyCap,
		BlockedTopics:    cfg.BlockedTopics,
		SafetyPreamble:   cfg.SafetyPreamble,
	})
	gateway := renderjobs.NewGateway(store, worker, logger, cfg.KickTimeout)

	app := &handlers.App{
		SQL:          runner,
		Gateway:      gateway,
		Worker:       worker,
		Logger:       logger,
		WorkerSecret: cfg.WorkerSecret,
		SweepBatch:   cfg.SweepBatch,
	}
	if cfg.WorkerSecret == "" {
		logger.Warn().Msg("api: WORKER_SECRET unset, sweep endpoint is open")
	}

	var lookup middleware.CountryLookup
	if geo, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("api: geoip resolver unavailable")
	} else if geo != nil {
		lookup = geo.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Config:        cfg,
		Logger:        logger,
		CountryLookup: lookup,
		StaticDir:     staticDir,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func buildObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, string, error) {
	if cfg.StorageDriver == "s3" {
		s3store, err := storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
		return s3store, "", err
	}
	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		return nil, "", err
	}
	return fileStore, fileStore.BasePath(), nil
}
