package main

import (
	"context"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/blob"
	"doc-podcaster/internal/config"
	"doc-podcaster/internal/db"
	"doc-podcaster/internal/extractor"
	"doc-podcaster/internal/models"
	"doc-podcaster/internal/pipeline"
	"doc-podcaster/internal/script"
	"doc-podcaster/internal/tts"
	"doc-podcaster/internal/worker"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	db.InitDB(cfg.DatabaseURL)

	store, err := blob.NewS3Store(context.Background(), blob.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
	})
	if err != nil {
		log.Fatalf("could not create blob store: %v", err)
	}

	synth, err := tts.NewSynthesizer(tts.NewBreakerRenderer(tts.NewOpenAIRenderer(cfg.OpenAIAPIKey), time.Minute), tts.VoiceMap{
		models.SpeakerA: cfg.VoiceA,
		models.SpeakerB: cfg.VoiceB,
	})
	if err != nil {
		log.Fatalf("could not configure voices: %v", err)
	}

	runner := pipeline.NewRunner(
		db.Store{},
		extractor.New(&http.Client{}, cfg.MaxSourceBytes),
		script.NewGenerator(script.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.ScriptModel), script.DefaultMaxChars),
		synth,
		store,
		cfg.Retention,
	)

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithField("task", task.Type()).Warnf("Task failed: %v", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.Use(timeout(cfg.StageTimeout))
	worker.NewTaskHandler(runner, client).Register(mux)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}

// timeout caps every task; a stage cut short by it stays in its last status.
func timeout(d time.Duration) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.ProcessTask(ctx, t)
		})
	}
}
