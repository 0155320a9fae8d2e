package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"doc-podcaster/internal/models"
)

const (
	TypeExtract        = "podcast:extract"
	TypeGenerateScript = "podcast:script"
	TypeSynthesize     = "podcast:synthesize"
	TypeSweepRetention = "sweep:retention"
)

// StagePayload identifies the job a stage task runs against.
type StagePayload struct {
	JobID  string
	UserID int64
}

// ScriptPayload also carries the extraction output, which is never persisted.
type ScriptPayload struct {
	JobID   string
	UserID  int64
	Content models.ExtractedContent
}

func NewExtractTask(jobID string, userID int64) (*asynq.Task, error) {
	return newStageTask(TypeExtract, jobID, userID)
}

func NewGenerateScriptTask(jobID string, userID int64, content models.ExtractedContent) (*asynq.Task, error) {
	payload, err := json.Marshal(ScriptPayload{JobID: jobID, UserID: userID, Content: content})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateScript, payload, asynq.MaxRetry(0)), nil
}

func NewSynthesizeTask(jobID string, userID int64) (*asynq.Task, error) {
	return newStageTask(TypeSynthesize, jobID, userID)
}

func NewSweepRetentionTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeSweepRetention, nil, asynq.MaxRetry(0)), nil
}

// Stage tasks are attempted once; a failed job needs an explicit resubmission.
func newStageTask(typename, jobID string, userID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(StagePayload{JobID: jobID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, payload, asynq.MaxRetry(0)), nil
}
