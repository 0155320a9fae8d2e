// Package progress tracks playback position per (user, podcast), keeping a
// fast ephemeral cache current on every report and throttling durable writes.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/models"
)

// DefaultSyncInterval is the minimum spacing of throttled durable writes.
const DefaultSyncInterval = 30 * time.Second

// ErrInvalidReport is returned for reports the tracker refuses to record.
var ErrInvalidReport = errors.New("invalid progress report")

// Event is the player signal that produced a report.
type Event string

const (
	EventTick     Event = "tick"
	EventSeek     Event = "seek"
	EventPause    Event = "pause"
	EventUnload   Event = "unload"
	EventComplete Event = "complete"
)

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	switch e {
	case EventTick, EventSeek, EventPause, EventUnload, EventComplete:
		return true
	}
	return false
}

// Report is one position update from a player.
type Report struct {
	PodcastID       string
	ProgressSeconds float64
	Event           Event
	// DurationSeconds is the podcast length, used as the final position on completion.
	DurationSeconds int
}

// Store is the durable side, one row per (user, podcast).
type Store interface {
	UpsertProgress(ctx context.Context, p models.PlaybackProgress) error
	GetProgress(ctx context.Context, userID int64, podcastID string) (*models.PlaybackProgress, error)
}

type syncKey struct {
	userID    int64
	podcastID string
}

// Tracker reconciles the cache with the durable store.
type Tracker struct {
	cache    Cache
	store    Store
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	lastSync  map[syncKey]time.Time
	lastPrune time.Time
}

// NewTracker creates a Tracker. A non-positive interval uses DefaultSyncInterval.
func NewTracker(cache Cache, store Store, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Tracker{
		cache:    cache,
		store:    store,
		interval: interval,
		now:      time.Now,
		lastSync: make(map[syncKey]time.Time),
	}
}

// Record applies a report and returns whether it reached the durable store.
func (t *Tracker) Record(ctx context.Context, userID int64, r Report) (bool, error) {
	if r.PodcastID == "" || !r.Event.Valid() {
		return false, fmt.Errorf("%w: podcast %q, event %q", ErrInvalidReport, r.PodcastID, r.Event)
	}
	if r.ProgressSeconds < 0 || math.IsNaN(r.ProgressSeconds) || math.IsInf(r.ProgressSeconds, 0) {
		return false, fmt.Errorf("%w: position %v", ErrInvalidReport, r.ProgressSeconds)
	}

	now := t.now()
	key := syncKey{userID: userID, podcastID: r.PodcastID}

	switch r.Event {
	case EventComplete:
		t.setCache(ctx, r.PodcastID, Entry{ProgressSeconds: 0, Completed: true, UpdatedAt: now})
		err := t.flush(ctx, key, models.PlaybackProgress{
			UserID:          userID,
			PodcastID:       r.PodcastID,
			ProgressSeconds: float64(r.DurationSeconds),
			Completed:       true,
			LastPlayedAt:    now,
		})
		return err == nil, err

	case EventPause, EventUnload:
		t.setCache(ctx, r.PodcastID, Entry{ProgressSeconds: r.ProgressSeconds, UpdatedAt: now})
		err := t.flush(ctx, key, t.position(userID, r, now))
		if err != nil && r.Event == EventUnload {
			log.WithFields(log.Fields{"user_id": userID, "podcast_id": r.PodcastID}).Warnf("Dropped unload progress: %v", err)
			return false, nil
		}
		return err == nil, err

	default:
		t.setCache(ctx, r.PodcastID, Entry{ProgressSeconds: r.ProgressSeconds, UpdatedAt: now})
		if !t.due(key, now) {
			return false, nil
		}
		err := t.flush(ctx, key, t.position(userID, r, now))
		return err == nil, err
	}
}

// Load returns the cached position when present and the durable row
// otherwise. Neither existing yields (nil, nil).
func (t *Tracker) Load(ctx context.Context, userID int64, podcastID string) (*models.PlaybackProgress, error) {
	e, err := t.cache.Get(ctx, podcastID)
	if err != nil {
		log.Debugf("Progress cache read failed for %s: %v", podcastID, err)
	}
	if err == nil && e != nil {
		return &models.PlaybackProgress{
			UserID:          userID,
			PodcastID:       podcastID,
			ProgressSeconds: e.ProgressSeconds,
			Completed:       e.Completed,
			LastPlayedAt:    e.UpdatedAt,
		}, nil
	}
	return t.store.GetProgress(ctx, userID, podcastID)
}

// Forget drops all tracker state for a podcast, used when it is deleted.
func (t *Tracker) Forget(ctx context.Context, userID int64, podcastID string) {
	t.mu.Lock()
	delete(t.lastSync, syncKey{userID: userID, podcastID: podcastID})
	t.mu.Unlock()
	if err := t.cache.Delete(ctx, podcastID); err != nil {
		log.Debugf("Progress cache delete failed for %s: %v", podcastID, err)
	}
}

func (t *Tracker) position(userID int64, r Report, now time.Time) models.PlaybackProgress {
	return models.PlaybackProgress{
		UserID:          userID,
		PodcastID:       r.PodcastID,
		ProgressSeconds: r.ProgressSeconds,
		LastPlayedAt:    now,
	}
}

// due reports whether a throttled write may go through and, if so, claims
// the slot so concurrent reports for the same key do not both write.
func (t *Tracker) due(key syncKey, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(now)
	last, ok := t.lastSync[key]
	if ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSync[key] = now
	return true
}

// prune drops keys whose window has passed, at most once per interval.
// An expired key and a missing key throttle the same way. Callers hold t.mu.
func (t *Tracker) prune(now time.Time) {
	if now.Sub(t.lastPrune) < t.interval {
		return
	}
	for k, last := range t.lastSync {
		if now.Sub(last) >= t.interval {
			delete(t.lastSync, k)
		}
	}
	t.lastPrune = now
}

func (t *Tracker) flush(ctx context.Context, key syncKey, p models.PlaybackProgress) error {
	if err := t.store.UpsertProgress(ctx, p); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	t.mu.Lock()
	t.lastSync[key] = p.LastPlayedAt
	t.mu.Unlock()
	return nil
}

func (t *Tracker) setCache(ctx context.Context, podcastID string, e Entry) {
	if err := t.cache.Set(ctx, podcastID, e); err != nil {
		log.Debugf("Progress cache write failed for %s: %v", podcastID, err)
	}
}
