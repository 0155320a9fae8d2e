package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver
	log "github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schemaSQL string

// DB is the global database connection.
var DB *sqlx.DB

// InitDB initializes the database connection.
func InitDB(dbURL string) {
	var err error
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	DB, err = sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err = DB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Database connection established")
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context) error {
	if _, err := DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
