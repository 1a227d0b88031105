package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quotepix/internal/infra"
	"quotepix/internal/infra/credentials"
	"quotepix/internal/keypool"
	"quotepix/internal/notify"
	"quotepix/internal/providers/image"
	"quotepix/internal/renderjobs"
	"quotepix/internal/storage"
)

// The worker binary is the durable fallback scheduler: it sweeps the queue on
// a fixed interval so every enqueued job is eventually processed even when
// the Gateway's opportunistic kicks never fire.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	store := renderjobs.NewStore(runner, logger)
	credStore := credentials.NewStore(runner)

	var objects storage.ObjectStore
	if cfg.StorageDriver == "s3" {
		objects, err = storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey)
	} else {
		objects, err = storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	generator, err := image.NewClient(image.Options{
		BaseURL:    cfg.GenBaseURL,
		Model:      cfg.GenModel,
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure generation client")
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

	logger.Info().
		Dur("interval", cfg.SweepInterval).
		Int("batch", cfg.SweepBatch).
		Msg("worker: started")

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		result, err := worker.RunSweep(ctx, cfg.SweepBatch)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error().Err(err).Msg("worker: sweep failed")
		} else if result.Claimed > 0 {
			logger.Info().Int("claimed", result.Claimed).Msg("worker: sweep completed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("worker: stopped")
			return
		case <-ticker.C:
		}
	}
	logger.Info().Msg("worker: stopped")
}
