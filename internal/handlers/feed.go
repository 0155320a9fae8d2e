package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/db"
	"doc-podcaster/internal/feed"
)

func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uuid := vars["uuid"]

	user, err := db.GetUserByRSSUUID(r.Context(), uuid)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Error getting user by rss uuid: %v", err)
		}
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	jobs, err := db.ListReadyJobsByUser(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error getting podcasts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(user, jobs, feed.BaseURL(h.baseURL, r))
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

// ServeAudioFile redirects a feed enclosure to a freshly signed audio URL,
// since signed URLs expire long before podcast apps refetch the feed.
func (h *Handlers) ServeAudioFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := db.GetUserByRSSUUID(r.Context(), vars["uuid"])
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	signed, err := h.pipeline.AudioURL(r.Context(), user.ID, vars["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, signed, http.StatusFound)
}
