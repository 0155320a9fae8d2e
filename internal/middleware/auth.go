package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"doc-podcaster/internal/db"
	"doc-podcaster/internal/models"
)

type contextKey string

// UserContextKey is the key for the user in the context.
const UserContextKey = contextKey("user")

// InitDataTTL bounds how old a signed initData may be.
const InitDataTTL = 24 * time.Hour

// UserFromContext returns the user stored by AuthMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// WithUser stores user in ctx the way AuthMiddleware does.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// AuthMiddleware validates the Telegram Mini App initData and upserts the user.
func AuthMiddleware(botToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "tma" {
				http.Error(w, "Authorization header format must be 'tma <initData>'", http.StatusUnauthorized)
				return
			}

			initData := parts[1]
			if botToken == "" {
				log.Println("TELEGRAM_BOT_TOKEN is not set")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			// Validate the initData
			if err := initdata.Validate(initData, botToken, InitDataTTL); err != nil {
				log.Printf("Invalid init data: %v", err)
				http.Error(w, "Invalid init data", http.StatusUnauthorized)
				return
			}

			// Parse the init data
			data, err := initdata.Parse(initData)
			if err != nil {
				log.Printf("Error parsing init data: %v", err)
				http.Error(w, "Error parsing init data", http.StatusBadRequest)
				return
			}
			if data.User.ID == 0 {
				http.Error(w, "Init data has no user", http.StatusUnauthorized)
				return
			}

			// Upsert user
			user, err := db.UpsertUser(r.Context(), data.User.ID, data.User.Username)
			if err != nil {
				http.Error(w, "Failed to authenticate user", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
