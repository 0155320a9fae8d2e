// Package lifecycle is the podcast job state machine. Advance is pure: it
// takes a job and the outcome of a stage and returns the next job value,
// leaving persistence and external calls to the caller.
//
//	extracting -> generating -> synthesizing -> ready -> expired
//	     \             \              \
//	      `-------------`--------------`-> error
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
)

// DefaultRetention is the time a job is kept after creation.
const DefaultRetention = 30 * 24 * time.Hour

// Event is a stage outcome fed into Advance.
type Event interface {
	name() string
}

// Extracted is emitted when the extraction stage succeeds.
type Extracted struct {
	Title     string
	WordCount int
}

// Scripted is emitted when the script generation stage succeeds.
type Scripted struct {
	Script []models.Segment
}

// Synthesized is emitted when the synthesis stage succeeds and the audio is stored.
type Synthesized struct {
	AudioURL        string
	DurationSeconds int
}

// StageFailed is emitted when the stage owning the current status fails.
type StageFailed struct {
	Message string
}

// RetentionPassed is emitted by the sweep once expires_at has passed.
type RetentionPassed struct{}

func (Extracted) name() string       { return "extraction succeeded" }
func (Scripted) name() string        { return "script succeeded" }
func (Synthesized) name() string     { return "synthesis succeeded" }
func (StageFailed) name() string     { return "stage failed" }
func (RetentionPassed) name() string { return "retention passed" }

// New returns a freshly created job in the extracting status.
func New(id string, userID int64, source, title string, now time.Time, retention time.Duration) models.Job {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return models.Job{
		ID:        id,
		UserID:    userID,
		Source:    source,
		Title:     title,
		State:     models.Extracting{},
		CreatedAt: now,
		ExpiresAt: now.Add(retention),
	}
}

// Advance applies ev to job. Illegal combinations return the job unchanged
// and an error wrapping apperr.ErrIllegalTransition.
func Advance(job models.Job, ev Event) (models.Job, error) {
	next := job
	switch job.State.(type) {
	case models.Extracting:
		switch e := ev.(type) {
		case Extracted:
			if e.WordCount < 1 {
				return job, illegal(job, ev, "word count must be positive")
			}
			wc := e.WordCount
			next.Title = e.Title
			next.WordCount = &wc
			next.State = models.Generating{}
			return next, nil
		case StageFailed:
			return fail(job, e)
		}
	case models.Generating:
		switch e := ev.(type) {
		case Scripted:
			if len(e.Script) == 0 {
				return job, illegal(job, ev, "script is empty")
			}
			next.Script = append([]models.Segment(nil), e.Script...)
			next.State = models.Synthesizing{}
			return next, nil
		case StageFailed:
			return fail(job, e)
		}
	case models.Synthesizing:
		switch e := ev.(type) {
		case Synthesized:
			if e.AudioURL == "" {
				return job, illegal(job, ev, "audio url is empty")
			}
			next.State = models.Ready{AudioURL: e.AudioURL, DurationSeconds: e.DurationSeconds}
			return next, nil
		case StageFailed:
			return fail(job, e)
		}
	case models.Ready:
		if _, ok := ev.(RetentionPassed); ok {
			next.State = models.Expired{}
			return next, nil
		}
	}
	return job, illegal(job, ev, "")
}

// Expire is the sweep's entry point: it reports whether the job is past its
// retention horizon at now and, for ready jobs, returns the expired job.
func Expire(job models.Job, now time.Time) (models.Job, bool, error) {
	if !now.After(job.ExpiresAt) {
		return job, false, nil
	}
	next, err := Advance(job, RetentionPassed{})
	if err != nil {
		return job, true, err
	}
	return next, true, nil
}

func fail(job models.Job, e StageFailed) (models.Job, error) {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = fmt.Sprintf("%s failed", job.Status())
	}
	job.State = models.Failed{Message: msg}
	return job, nil
}

func illegal(job models.Job, ev Event, detail string) error {
	if detail != "" {
		return fmt.Errorf("%w: %s on %s: %s", apperr.ErrIllegalTransition, ev.name(), job.Status(), detail)
	}
	return fmt.Errorf("%w: %s on %s", apperr.ErrIllegalTransition, ev.name(), job.Status())
}
