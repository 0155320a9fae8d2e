package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/extractor"
	"doc-podcaster/internal/models"
	"doc-podcaster/pkg/tasks"
)

// PostPodcast accepts {"url": ...} as JSON or a PDF as multipart field "file".
// URL jobs are extracted by the worker; uploads are extracted here because
// the file only exists in this request.
func (h *Handlers) PostPodcast(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		h.postUpload(w, r, user)
		return
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if err := validateSourceURL(body.URL); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.createFromURL(r, user.ID, body.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.view(job, false))
}

func (h *Handlers) postUpload(w http.ResponseWriter, r *http.Request, user *models.User) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err != nil || mt != extractor.PDFContentType {
		writeError(w, r, apperr.ErrUnsupportedType)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}

	src := extractor.Source{File: &extractor.Upload{Name: header.Filename, ContentType: contentType, Data: data}}
	job, err := h.pipeline.Create(r.Context(), user.ID, src.Label())
	if err != nil {
		writeError(w, r, err)
		return
	}

	content, job, err := h.pipeline.Extract(r.Context(), user.ID, job.ID, src)
	if err != nil {
		if apperr.IsStageFailure(err) {
			writeJSON(w, http.StatusAccepted, h.view(job, false))
			return
		}
		writeError(w, r, err)
		return
	}

	task, err := tasks.NewGenerateScriptTask(job.ID, user.ID, content)
	if err == nil {
		_, err = h.asynqClient.EnqueueContext(r.Context(), task)
	}
	if err != nil {
		log.WithFields(log.Fields{"job_id": job.ID, "user_id": user.ID}).
			Warnf("Job parked in generating, resubmit to recover: could not enqueue script task: %v", err)
		writeError(w, r, fmt.Errorf("failed to enqueue script task: %w", err))
		return
	}
	writeJSON(w, http.StatusAccepted, h.view(job, false))
}

func (h *Handlers) createFromURL(r *http.Request, userID int64, source string) (models.Job, error) {
	job, err := h.pipeline.Create(r.Context(), userID, source)
	if err != nil {
		return models.Job{}, err
	}
	if err := h.enqueueExtract(r.Context(), job); err != nil {
		return models.Job{}, err
	}
	return job, nil
}

func (h *Handlers) enqueueExtract(ctx context.Context, job models.Job) error {
	task, err := tasks.NewExtractTask(job.ID, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to create extract task: %w", err)
	}
	if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue extract task: %w", err)
	}
	return nil
}

func validateSourceURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("a valid http(s) URL is required")
	}
	return nil
}

func (h *Handlers) ListPodcasts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	jobs, err := h.pipeline.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, h.view(job, false))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"podcasts": views})
}

func (h *Handlers) GetPodcast(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	job, err := h.pipeline.Get(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(job, true))
}

func (h *Handlers) DeletePodcast(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.pipeline.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	h.tracker.Forget(r.Context(), user.ID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ResubmitPodcast(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	job, err := h.pipeline.Resubmit(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.enqueueExtract(r.Context(), job); err != nil {
		writeError(w, r, err)
		return
	}
	log.WithFields(log.Fields{"job_id": job.ID, "user_id": user.ID}).Info("Podcast resubmitted")
	writeJSON(w, http.StatusAccepted, h.view(job, false))
}

func (h *Handlers) GetAudioURL(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	signed, err := h.pipeline.AudioURL(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": signed})
}
