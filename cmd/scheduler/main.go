package main

import (
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/config"
	"doc-podcaster/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{},
	)

	task, err := tasks.NewSweepRetentionTask()
	if err != nil {
		log.Fatalf("could not create task: %v", err)
	}

	_, err = scheduler.Register(cfg.SweepSchedule, task)
	if err != nil {
		log.Fatalf("could not register task: %v", err)
	}

	log.Printf("Scheduler starting, sweep %s (commit: %s)", cfg.SweepSchedule, CommitSHA)
	if err := scheduler.Run(); err != nil {
		log.Fatalf("could not run scheduler: %v", err)
	}
}
