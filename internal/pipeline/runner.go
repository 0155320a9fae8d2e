// Package pipeline runs podcast stages against persisted jobs. Each call
// loads the job, checks ownership, invokes exactly one stage capability,
// advances the state machine and persists the result with a status guard.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/blob"
	"doc-podcaster/internal/extractor"
	"doc-podcaster/internal/lifecycle"
	"doc-podcaster/internal/models"
	"doc-podcaster/internal/tts"
)

// AudioURLTTL is the lifetime of signed playback URLs.
const AudioURLTTL = time.Hour

// Store persists jobs. UpdateJob must fail with apperr.ErrConflict when the
// stored status is no longer from.
type Store interface {
	CreateJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, id string) (models.Job, error)
	ListJobsByUser(ctx context.Context, userID int64) ([]models.Job, error)
	ListJobsPastHorizon(ctx context.Context, now time.Time) ([]models.Job, error)
	UpdateJob(ctx context.Context, job models.Job, from models.Status) error
	DeleteJob(ctx context.Context, userID int64, id string) error
}

type Extractor interface {
	Extract(ctx context.Context, src extractor.Source) (models.ExtractedContent, error)
}

type ScriptWriter interface {
	Generate(ctx context.Context, content models.ExtractedContent) ([]models.Segment, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, segments []models.Segment) (tts.Result, error)
}

// Blobs stores rendered audio.
type Blobs interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Runner wires the stage capabilities to the job store.
type Runner struct {
	store     Store
	extractor Extractor
	writer    ScriptWriter
	synth     Synthesizer
	blobs     Blobs
	retention time.Duration

	now   func() time.Time
	newID func() string
}

// NewRunner creates a Runner. A non-positive retention uses lifecycle.DefaultRetention.
func NewRunner(store Store, ex Extractor, writer ScriptWriter, synth Synthesizer, blobs Blobs, retention time.Duration) *Runner {
	if retention <= 0 {
		retention = lifecycle.DefaultRetention
	}
	return &Runner{
		store:     store,
		extractor: ex,
		writer:    writer,
		synth:     synth,
		blobs:     blobs,
		retention: retention,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create persists a new job in the extracting status.
func (r *Runner) Create(ctx context.Context, userID int64, source string) (models.Job, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return models.Job{}, fmt.Errorf("%w: source is empty", apperr.ErrExtraction)
	}
	job := lifecycle.New(r.newID(), userID, source, "", r.now(), r.retention)
	if err := r.store.CreateJob(ctx, job); err != nil {
		return models.Job{}, err
	}
	log.WithFields(log.Fields{"job_id": job.ID, "user_id": userID}).Infof("Created podcast job for %s", source)
	return job, nil
}

// Get returns a job owned by userID.
func (r *Runner) Get(ctx context.Context, userID int64, id string) (models.Job, error) {
	return r.owned(ctx, userID, id)
}

// List returns the caller's jobs, newest first.
func (r *Runner) List(ctx context.Context, userID int64) ([]models.Job, error) {
	return r.store.ListJobsByUser(ctx, userID)
}

// Extract runs the extraction stage. The extracted content is returned for
// the script stage and is not persisted beyond title and word count.
func (r *Runner) Extract(ctx context.Context, userID int64, id string, src extractor.Source) (models.ExtractedContent, models.Job, error) {
	job, err := r.stageJob(ctx, userID, id, models.StatusExtracting)
	if err != nil {
		return models.ExtractedContent{}, job, err
	}

	content, err := r.extractor.Extract(ctx, src)
	if err != nil {
		job, err = r.fail(ctx, job, err)
		return models.ExtractedContent{}, job, err
	}

	next, err := r.advance(ctx, job, lifecycle.Extracted{Title: content.Title, WordCount: content.WordCount})
	if err != nil {
		return models.ExtractedContent{}, job, err
	}
	return content, next, nil
}

// GenerateScript runs the script stage with the content produced by Extract.
func (r *Runner) GenerateScript(ctx context.Context, userID int64, id string, content models.ExtractedContent) (models.Job, error) {
	job, err := r.stageJob(ctx, userID, id, models.StatusGenerating)
	if err != nil {
		return job, err
	}

	script, err := r.writer.Generate(ctx, content)
	if err != nil {
		return r.fail(ctx, job, err)
	}
	return r.advance(ctx, job, lifecycle.Scripted{Script: script})
}

// Synthesize renders the persisted script, stores the audio and marks the job ready.
func (r *Runner) Synthesize(ctx context.Context, userID int64, id string) (models.Job, error) {
	job, err := r.stageJob(ctx, userID, id, models.StatusSynthesizing)
	if err != nil {
		return job, err
	}

	res, err := r.synth.Synthesize(ctx, job.Script)
	if err != nil {
		return r.fail(ctx, job, err)
	}

	key := blob.AudioKey(job.UserID, job.ID)
	if err := apperr.Check(ctx); err != nil {
		return job, err
	}
	if err := r.blobs.Upload(ctx, key, res.Audio, blob.AudioContentType); err != nil {
		if cerr := apperr.Canceled(ctx, err); cerr != err {
			return job, cerr
		}
		return r.fail(ctx, job, fmt.Errorf("%w: %v", apperr.ErrSynthesis, err))
	}

	next, err := r.advance(ctx, job, lifecycle.Synthesized{AudioURL: key, DurationSeconds: res.DurationSeconds})
	if err != nil {
		// Nothing references the upload now.
		r.releaseBlob(context.WithoutCancel(ctx), job, key)
	}
	return next, err
}

// AudioURL returns a signed, time-limited URL for a ready job's audio.
func (r *Runner) AudioURL(ctx context.Context, userID int64, id string) (string, error) {
	job, err := r.owned(ctx, userID, id)
	if err != nil {
		return "", err
	}
	key, ok := job.AudioURL()
	if !ok {
		return "", fmt.Errorf("%w: podcast %s has no audio in status %s", apperr.ErrNotFound, id, job.Status())
	}
	return r.blobs.SignedURL(ctx, key, AudioURLTTL)
}

// Delete removes an owned job and its audio.
func (r *Runner) Delete(ctx context.Context, userID int64, id string) error {
	job, err := r.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if key, ok := job.AudioURL(); ok {
		if err := r.blobs.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete audio for podcast %s: %w", id, err)
		}
	}
	if err := r.store.DeleteJob(ctx, userID, id); err != nil {
		return err
	}
	log.WithFields(log.Fields{"job_id": id, "user_id": userID}).Info("Deleted podcast")
	return nil
}

// Resubmit creates a new job for the source of an existing one. Uploaded
// files are not kept, so only URL sources can be resubmitted.
func (r *Runner) Resubmit(ctx context.Context, userID int64, id string) (models.Job, error) {
	job, err := r.owned(ctx, userID, id)
	if err != nil {
		return models.Job{}, err
	}
	if strings.HasPrefix(job.Source, extractor.FileScheme) {
		return models.Job{}, fmt.Errorf("%w: uploaded files must be uploaded again", apperr.ErrUnsupportedType)
	}
	return r.Create(ctx, userID, job.Source)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Expired int
	Deleted int
}

// Sweep expires ready jobs past their retention horizon, releasing their
// audio, and deletes every other job past it that has not already expired.
// A failing job is logged and skipped; the joined errors are returned.
func (r *Runner) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := r.now()
	jobs, err := r.store.ListJobsPastHorizon(ctx, now)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, job := range jobs {
		if err := apperr.Check(ctx); err != nil {
			return res, err
		}
		logger := log.WithFields(log.Fields{"job_id": job.ID, "user_id": job.UserID, "status": job.Status()})

		if key, ok := job.AudioURL(); ok {
			next, due, err := lifecycle.Expire(job, now)
			if err != nil || !due {
				continue
			}
			if err := r.store.UpdateJob(ctx, next, models.StatusReady); err != nil {
				logger.Errorf("Failed to expire podcast: %v", err)
				errs = append(errs, err)
				continue
			}
			res.Expired++
			if err := r.blobs.Delete(ctx, key); err != nil {
				logger.WithField("orphaned_key", key).Errorf("Failed to delete expired audio: %v", err)
				errs = append(errs, err)
			}
			continue
		}

		if err := r.store.DeleteJob(ctx, job.UserID, job.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			logger.Errorf("Failed to delete stale podcast: %v", err)
			errs = append(errs, err)
			continue
		}
		res.Deleted++
	}

	log.WithFields(log.Fields{"expired": res.Expired, "deleted": res.Deleted}).Info("Retention sweep finished")
	return res, errors.Join(errs...)
}

// releaseBlob deletes audio no job points at. A failure is only logged with
// the key, since the caller is already returning an error of its own.
func (r *Runner) releaseBlob(ctx context.Context, job models.Job, key string) {
	if err := r.blobs.Delete(ctx, key); err != nil {
		log.WithFields(log.Fields{"job_id": job.ID, "user_id": job.UserID, "orphaned_key": key}).
			Errorf("Failed to release unreferenced audio: %v", err)
	}
}

func (r *Runner) owned(ctx context.Context, userID int64, id string) (models.Job, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		return models.Job{}, err
	}
	if job.UserID != userID {
		return models.Job{}, apperr.ErrForbidden
	}
	return job, nil
}

// stageJob loads an owned job and checks it is waiting for the given stage.
func (r *Runner) stageJob(ctx context.Context, userID int64, id string, want models.Status) (models.Job, error) {
	if err := apperr.Check(ctx); err != nil {
		return models.Job{}, err
	}
	job, err := r.owned(ctx, userID, id)
	if err != nil {
		return job, err
	}
	if job.Status() != want {
		return job, fmt.Errorf("%w: podcast %s is %s, expected %s", apperr.ErrIllegalTransition, id, job.Status(), want)
	}
	return job, nil
}

func (r *Runner) advance(ctx context.Context, job models.Job, ev lifecycle.Event) (models.Job, error) {
	next, err := lifecycle.Advance(job, ev)
	if err != nil {
		return job, err
	}
	if err := r.store.UpdateJob(ctx, next, job.Status()); err != nil {
		if cerr := apperr.Canceled(ctx, err); cerr != err {
			return job, cerr
		}
		return job, err
	}
	log.WithFields(log.Fields{"job_id": job.ID, "from": job.Status(), "to": next.Status()}).Info("Podcast advanced")
	return next, nil
}

// fail records a stage failure as the error status and returns the stage
// error. Cancellation leaves the job untouched.
func (r *Runner) fail(ctx context.Context, job models.Job, stageErr error) (models.Job, error) {
	if errors.Is(stageErr, apperr.ErrCanceled) {
		return job, stageErr
	}
	if cerr := apperr.Canceled(ctx, stageErr); cerr != stageErr {
		log.WithFields(log.Fields{"job_id": job.ID, "status": job.Status()}).Info("Stage canceled, job left parked")
		return job, cerr
	}

	next, err := lifecycle.Advance(job, lifecycle.StageFailed{Message: stageErr.Error()})
	if err != nil {
		return job, err
	}
	if err := r.store.UpdateJob(context.WithoutCancel(ctx), next, job.Status()); err != nil {
		return job, fmt.Errorf("failed to record stage failure %q: %w", stageErr, err)
	}
	log.WithFields(log.Fields{"job_id": job.ID, "from": job.Status()}).Warnf("Stage failed: %v", stageErr)
	return next, stageErr
}
