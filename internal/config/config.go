// Package config reads process configuration from the environment, loading a
// .env file first when one is present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config is shared by the server, worker and scheduler binaries.
type Config struct {
	Port        string
	BaseURL     string
	DatabaseURL string
	RedisAddr   string
	LogLevel    string

	TelegramBotToken   string
	TelegramBotPolling bool

	AnthropicAPIKey string
	ScriptModel     string
	OpenAIAPIKey    string
	VoiceA          string
	VoiceB          string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	Retention         time.Duration
	StageTimeout      time.Duration
	WorkerConcurrency int
	SweepSchedule     string
	MaxSourceBytes    int64

	ProgressSyncInterval time.Duration
	ProgressRatePerSec   float64
	ProgressBurst        int
}

// Load reads .env (if present) and the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	return Config{
		Port:        getEnv("PORT", "8080"),
		BaseURL:     os.Getenv("BASE_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramBotPolling: getEnv("TELEGRAM_BOT_POLLING", "false") == "true",

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ScriptModel:     getEnv("SCRIPT_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		VoiceA:          getEnv("VOICE_A", "onyx"),
		VoiceB:          getEnv("VOICE_B", "shimmer"),

		S3Bucket:    getEnv("S3_BUCKET", "podcast-audio"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey: os.Getenv("S3_SECRET_ACCESS_KEY"),

		Retention:         time.Duration(getInt("RETENTION_DAYS", 30)) * 24 * time.Hour,
		StageTimeout:      getDuration("STAGE_TIMEOUT", 5*time.Minute),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),
		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "@every 1h"),
		MaxSourceBytes:    int64(getInt("MAX_SOURCE_BYTES", 50<<20)),

		ProgressSyncInterval: getDuration("PROGRESS_SYNC_INTERVAL", 30*time.Second),
		ProgressRatePerSec:   getFloat("PROGRESS_RATE_PER_SEC", 1),
		ProgressBurst:        getInt("PROGRESS_BURST", 5),
	}
}

// ConfigureLogging applies LOG_LEVEL to the global logger.
func (c Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Printf("Unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
