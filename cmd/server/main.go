package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"doc-podcaster/internal/blob"
	"doc-podcaster/internal/config"
	"doc-podcaster/internal/db"
	"doc-podcaster/internal/extractor"
	"doc-podcaster/internal/handlers"
	"doc-podcaster/internal/middleware"
	"doc-podcaster/internal/pipeline"
	"doc-podcaster/internal/progress"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db.InitDB(cfg.DatabaseURL)
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("could not migrate database: %v", err)
	}

	store, err := blob.NewS3Store(ctx, blob.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
	})
	if err != nil {
		log.Fatalf("could not create blob store: %v", err)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rc.Close()

	// The server only runs the extraction stage, for uploads.
	ex := extractor.New(&http.Client{Timeout: cfg.StageTimeout}, cfg.MaxSourceBytes)
	runner := pipeline.NewRunner(db.Store{}, ex, nil, nil, store, cfg.Retention)
	tracker := progress.NewTracker(progress.NewRedisCache(rc), db.Store{}, cfg.ProgressSyncInterval)

	h := handlers.New(runner, tracker, client, cfg.BaseURL, cfg.MaxSourceBytes)
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(cfg.ProgressRatePerSec), cfg.ProgressBurst)
	router := h.Router(middleware.AuthMiddleware(cfg.TelegramBotToken), limiter)

	if cfg.TelegramBotPolling {
		go func() {
			if err := h.StartTelegramBot(ctx, cfg.TelegramBotToken); err != nil {
				log.Printf("Telegram bot stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting server on :%s (commit: %s)", cfg.Port, CommitSHA)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
