package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
	"doc-podcaster/internal/progress"
)

type progressRequest struct {
	PodcastID       string         `json:"podcastId"`
	ProgressSeconds float64        `json:"progressSeconds"`
	Completed       bool           `json:"completed"`
	Event           progress.Event `json:"event"`
}

// PostProgress records a player report. The body is JSON whatever the
// declared type, since unload beacons arrive as text/plain.
func (h *Handlers) PostProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		req.Event = progress.EventTick
		if req.Completed {
			req.Event = progress.EventComplete
		}
	}
	if req.PodcastID == "" {
		http.Error(w, "podcastId is required", http.StatusBadRequest)
		return
	}

	job, err := h.pipeline.Get(r.Context(), user.ID, req.PodcastID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ready, ok := job.State.(models.Ready)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: podcast is %s, progress is only tracked when ready", apperr.ErrConflict, job.Status()))
		return
	}

	synced, err := h.tracker.Record(r.Context(), user.ID, progress.Report{
		PodcastID:       req.PodcastID,
		ProgressSeconds: req.ProgressSeconds,
		Event:           req.Event,
		DurationSeconds: ready.DurationSeconds,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "synced": synced})
}

func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	podcastID := r.URL.Query().Get("podcastId")
	if podcastID == "" {
		http.Error(w, "podcastId is required", http.StatusBadRequest)
		return
	}
	if _, err := h.pipeline.Get(r.Context(), user.ID, podcastID); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.tracker.Load(r.Context(), user.ID, podcastID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.PlaybackProgress{"progress": p})
}
