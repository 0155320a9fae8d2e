package feed

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"doc-podcaster/internal/models"
)

// BaseURL prefers the configured public URL and falls back to the request host.
func BaseURL(configured string, r *http.Request) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS renders the user's ready podcasts. Enclosures point at the
// feed's audio redirect rather than at storage.
func GenerateRSS(user *models.User, jobs []models.Job, baseURL string) (string, error) {
	name := user.Username
	if name == "" {
		name = "My"
	}
	updated := time.Now()
	if len(jobs) > 0 {
		updated = jobs[0].CreatedAt
	}

	feedURL := fmt.Sprintf("%s/rss/%s", baseURL, user.RSSUUID)
	p := podcast.New(
		fmt.Sprintf("%s's Podcasts", name),
		feedURL,
		"Articles and documents turned into two-host conversations.",
		&updated, &updated,
	)

	for _, job := range jobs {
		ready, ok := job.State.(models.Ready)
		if !ok {
			continue
		}
		title := job.Title
		if title == "" {
			title = job.Source
		}
		link := job.Source
		if !strings.HasPrefix(link, "http") {
			link = feedURL
		}
		pubDate := job.CreatedAt

		item := podcast.Item{
			Title:       title,
			Link:        link,
			Description: describe(job, ready),
			PubDate:     &pubDate,
		}
		item.AddEnclosure(fmt.Sprintf("%s/rss/%s/audio/%s", baseURL, user.RSSUUID, job.ID), podcast.MP3, 0)
		if _, err := p.AddItem(item); err != nil {
			return "", err
		}
	}

	return p.String(), nil
}

func describe(job models.Job, ready models.Ready) string {
	minutes := (ready.DurationSeconds + 59) / 60
	if job.WordCount != nil {
		return fmt.Sprintf("%d-minute conversation about a %d-word source: %s", minutes, *job.WordCount, job.Source)
	}
	return fmt.Sprintf("%d-minute conversation about %s", minutes, job.Source)
}
