package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/extractor"
	"doc-podcaster/internal/models"
	"doc-podcaster/internal/pipeline"
	"doc-podcaster/pkg/tasks"
)

// Pipeline is the stage runner used by the task handlers.
type Pipeline interface {
	Get(ctx context.Context, userID int64, id string) (models.Job, error)
	Extract(ctx context.Context, userID int64, id string, src extractor.Source) (models.ExtractedContent, models.Job, error)
	GenerateScript(ctx context.Context, userID int64, id string, content models.ExtractedContent) (models.Job, error)
	Synthesize(ctx context.Context, userID int64, id string) (models.Job, error)
	Sweep(ctx context.Context) (pipeline.SweepResult, error)
}

type TaskHandler struct {
	pipeline    Pipeline
	asynqClient tasks.TaskEnqueuer
}

func NewTaskHandler(p Pipeline, client tasks.TaskEnqueuer) *TaskHandler {
	return &TaskHandler{pipeline: p, asynqClient: client}
}

// Register binds every task type to its handler.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeExtract, h.HandleExtractTask)
	mux.HandleFunc(tasks.TypeGenerateScript, h.HandleGenerateScriptTask)
	mux.HandleFunc(tasks.TypeSynthesize, h.HandleSynthesizeTask)
	mux.HandleFunc(tasks.TypeSweepRetention, h.HandleSweepRetentionTask)
}

func (h *TaskHandler) HandleExtractTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.StagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := log.WithFields(log.Fields{"job_id": p.JobID, "user_id": p.UserID, "stage": "extract"})

	job, err := h.pipeline.Get(ctx, p.UserID, p.JobID)
	if err != nil {
		return stageError(err)
	}

	logger.Printf("Extracting %s", job.Source)
	content, _, err := h.pipeline.Extract(ctx, p.UserID, p.JobID, extractor.Source{URL: job.Source})
	if err != nil {
		logger.Printf("Extraction ended: %v", err)
		return stageError(err)
	}

	task, err := tasks.NewGenerateScriptTask(p.JobID, p.UserID, content)
	if err != nil {
		return fmt.Errorf("failed to create script task: %w", err)
	}
	if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
		logger.Warnf("Job parked in generating, resubmit to recover: could not enqueue script task: %v", err)
		return fmt.Errorf("failed to enqueue script task: %w", err)
	}
	return nil
}

func (h *TaskHandler) HandleGenerateScriptTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.ScriptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := log.WithFields(log.Fields{"job_id": p.JobID, "user_id": p.UserID, "stage": "script"})

	logger.Printf("Generating script for %q (%d words)", p.Content.Title, p.Content.WordCount)
	job, err := h.pipeline.GenerateScript(ctx, p.UserID, p.JobID, p.Content)
	if err != nil {
		logger.Printf("Script generation ended: %v", err)
		return stageError(err)
	}
	logger.Printf("Script has %d segments", len(job.Script))

	task, err := tasks.NewSynthesizeTask(p.JobID, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to create synthesize task: %w", err)
	}
	if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
		logger.Warnf("Job parked in synthesizing, resubmit to recover: could not enqueue synthesize task: %v", err)
		return fmt.Errorf("failed to enqueue synthesize task: %w", err)
	}
	return nil
}

func (h *TaskHandler) HandleSynthesizeTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.StagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := log.WithFields(log.Fields{"job_id": p.JobID, "user_id": p.UserID, "stage": "synthesize"})

	job, err := h.pipeline.Synthesize(ctx, p.UserID, p.JobID)
	if err != nil {
		logger.Printf("Synthesis ended: %v", err)
		return stageError(err)
	}

	if r, ok := job.State.(models.Ready); ok {
		logger.Printf("Podcast ready, %d seconds", r.DurationSeconds)
	}
	return nil
}

func (h *TaskHandler) HandleSweepRetentionTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Running retention sweep...")
	res, err := h.pipeline.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	log.Printf("Retention sweep cleaned %d podcasts (%d expired, %d deleted)", res.Expired+res.Deleted, res.Expired, res.Deleted)
	return nil
}

// stageError marks terminal outcomes so asynq archives instead of retrying.
// A canceled stage is returned as is; the job stays in its last status.
func stageError(err error) error {
	if errors.Is(err, apperr.ErrCanceled) {
		return err
	}
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}
