package db

import (
	"context"

	log "github.com/sirupsen/logrus"

	"doc-podcaster/internal/models"
)

// UpsertUser inserts a new user or updates an existing one based on the identity provider ID.
func UpsertUser(ctx context.Context, id int64, username string) (*models.User, error) {
	query := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			updated_at = NOW()
		RETURNING id, username, rss_uuid, created_at, updated_at
	`
	user := &models.User{}
	err := DB.GetContext(ctx, user, query, id, username)
	if err != nil {
		log.Printf("Error upserting user: %v", err)
		return nil, err
	}
	return user, nil
}

// GetUserByRSSUUID resolves the secret feed token of a user.
func GetUserByRSSUUID(ctx context.Context, rssUUID string) (*models.User, error) {
	user := &models.User{}
	err := DB.GetContext(ctx, user, "SELECT id, username, rss_uuid, created_at, updated_at FROM users WHERE rss_uuid = $1", rssUUID)
	if err != nil {
		return nil, err
	}
	return user, nil
}
