package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/extractor"
	"doc-podcaster/internal/middleware"
	"doc-podcaster/internal/models"
	"doc-podcaster/internal/progress"
	"doc-podcaster/pkg/tasks"
)

// Pipeline is the job API the handlers drive.
type Pipeline interface {
	Create(ctx context.Context, userID int64, source string) (models.Job, error)
	Get(ctx context.Context, userID int64, id string) (models.Job, error)
	List(ctx context.Context, userID int64) ([]models.Job, error)
	Extract(ctx context.Context, userID int64, id string, src extractor.Source) (models.ExtractedContent, models.Job, error)
	Delete(ctx context.Context, userID int64, id string) error
	Resubmit(ctx context.Context, userID int64, id string) (models.Job, error)
	AudioURL(ctx context.Context, userID int64, id string) (string, error)
}

// Tracker records and loads playback positions.
type Tracker interface {
	Record(ctx context.Context, userID int64, r progress.Report) (bool, error)
	Load(ctx context.Context, userID int64, podcastID string) (*models.PlaybackProgress, error)
	Forget(ctx context.Context, userID int64, podcastID string)
}

type Handlers struct {
	pipeline       Pipeline
	tracker        Tracker
	asynqClient    tasks.TaskEnqueuer
	baseURL        string
	maxUploadBytes int64
	now            func() time.Time
}

func New(p Pipeline, tracker Tracker, asynqClient tasks.TaskEnqueuer, baseURL string, maxUploadBytes int64) *Handlers {
	return &Handlers{
		pipeline:       p,
		tracker:        tracker,
		asynqClient:    asynqClient,
		baseURL:        baseURL,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

// Router builds the HTTP routes. Everything under /api goes through auth;
// progress sync is additionally throttled per user.
func (h *Handlers) Router(auth mux.MiddlewareFunc, limiter *middleware.RateLimiterMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/rss/{uuid}", h.GetRSSFeed).Methods(http.MethodGet)
	r.HandleFunc("/rss/{uuid}/audio/{id}", h.ServeAudioFile).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.HandleFunc("/podcasts", h.PostPodcast).Methods(http.MethodPost)
	api.HandleFunc("/podcasts", h.ListPodcasts).Methods(http.MethodGet)
	api.HandleFunc("/podcasts/{id}", h.GetPodcast).Methods(http.MethodGet)
	api.HandleFunc("/podcasts/{id}", h.DeletePodcast).Methods(http.MethodDelete)
	api.HandleFunc("/podcasts/{id}/resubmit", h.ResubmitPodcast).Methods(http.MethodPost)
	api.HandleFunc("/podcasts/{id}/audio", h.GetAudioURL).Methods(http.MethodGet)
	api.Handle("/progress", limiter.Middleware(http.HandlerFunc(h.PostProgress))).Methods(http.MethodPost)
	api.Handle("/progress", limiter.Middleware(http.HandlerFunc(h.GetProgress))).Methods(http.MethodGet)
	return r
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

// jobView is the JSON shape of a job. The audio storage key is never exposed.
type jobView struct {
	ID              string           `json:"id"`
	Source          string           `json:"source"`
	Title           string           `json:"title"`
	Status          models.Status    `json:"status"`
	WordCount       *int             `json:"wordCount"`
	DurationSeconds *int             `json:"durationSeconds"`
	ErrorMessage    *string          `json:"errorMessage"`
	Script          []models.Segment `json:"script,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	ExpiresAt       time.Time        `json:"expiresAt"`
	DaysUntilExpiry int              `json:"daysUntilExpiry"`
}

func (h *Handlers) view(job models.Job, withScript bool) jobView {
	v := jobView{
		ID:        job.ID,
		Source:    job.Source,
		Title:     job.Title,
		Status:    job.Status(),
		WordCount: job.WordCount,
		CreatedAt: job.CreatedAt,
		ExpiresAt: job.ExpiresAt,
	}
	if r, ok := job.State.(models.Ready); ok {
		d := r.DurationSeconds
		v.DurationSeconds = &d
	}
	if msg, ok := job.ErrorMessage(); ok {
		v.ErrorMessage = &msg
	}
	if withScript {
		v.Script = job.Script
	}
	if days := math.Ceil(job.ExpiresAt.Sub(h.now()).Hours() / 24); days > 0 {
		v.DaysUntilExpiry = int(days)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps error kinds to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrUnsupportedType), errors.Is(err, progress.ErrInvalidReport):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrIllegalTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, status, map[string]string{"error": "Internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
	}
	return user, ok
}
