package models

import "time"

// PlaybackProgress is the single durable progress row for a (user, podcast) pair.
type PlaybackProgress struct {
	UserID          int64     `db:"user_id" json:"userId"`
	PodcastID       string    `db:"podcast_id" json:"podcastId"`
	ProgressSeconds float64   `db:"progress_seconds" json:"progressSeconds"`
	Completed       bool      `db:"completed" json:"completed"`
	LastPlayedAt    time.Time `db:"last_played_at" json:"lastPlayedAt"`
}
