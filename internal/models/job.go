package models

import "time"

// Status is the persisted lifecycle status of a podcast job.
type Status string

const (
	StatusExtracting   Status = "extracting"
	StatusGenerating   Status = "generating"
	StatusSynthesizing Status = "synthesizing"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
	StatusExpired      Status = "expired"
)

// Terminal reports whether no pipeline stage can run from s.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError || s == StatusExpired
}

// State is the status-specific part of a job. Fields that only exist in one
// status (audio key and duration for ready, message for error) live on the
// matching variant so they cannot be set anywhere else.
type State interface {
	Status() Status
	isState()
}

type Extracting struct{}

type Generating struct{}

type Synthesizing struct{}

// Ready holds the outputs of a successful synthesis.
type Ready struct {
	AudioURL        string
	DurationSeconds int
}

// Failed is the error status.
type Failed struct {
	Message string
}

type Expired struct{}

func (Extracting) Status() Status   { return StatusExtracting }
func (Generating) Status() Status   { return StatusGenerating }
func (Synthesizing) Status() Status { return StatusSynthesizing }
func (Ready) Status() Status        { return StatusReady }
func (Failed) Status() Status       { return StatusError }
func (Expired) Status() Status      { return StatusExpired }

func (Extracting) isState()   {}
func (Generating) isState()   {}
func (Synthesizing) isState() {}
func (Ready) isState()        {}
func (Failed) isState()       {}
func (Expired) isState()      {}

// Job is a podcast record. Title, WordCount and Script accumulate as stages
// complete; everything status-specific is in State.
type Job struct {
	ID        string
	UserID    int64
	Source    string
	Title     string
	WordCount *int
	Script    []Segment
	State     State
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Status is a shorthand for j.State.Status().
func (j Job) Status() Status {
	return j.State.Status()
}

// AudioURL returns the storage key of a ready job.
func (j Job) AudioURL() (string, bool) {
	r, ok := j.State.(Ready)
	if !ok {
		return "", false
	}
	return r.AudioURL, true
}

// ErrorMessage returns the failure message of a job in error status.
func (j Job) ErrorMessage() (string, bool) {
	f, ok := j.State.(Failed)
	if !ok {
		return "", false
	}
	return f.Message, true
}
