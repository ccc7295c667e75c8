package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL    string
	ClassroomName  string
	AssignmentID   string // optional: restrict the run to one assignment
	LogLevel       string
	MaxRetries     int
	CommandTimeout time.Duration
	SearchUsername string // optional: username highlighted in logs
	JWTSecretKey   string
	ServerPort     int
	ExportArchive  ExportArchiveConfig
}

// ExportArchiveConfig describes the optional Cloudflare R2 bucket that
// receives a CSV snapshot of every run's consolidated grade export.
// Archiving is disabled when AccountID is empty.
type ExportArchiveConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Enabled reports whether archive uploads are configured.
func (c ExportArchiveConfig) Enabled() bool {
	return c.AccountID != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	classroomName := os.Getenv("CLASSROOM_NAME")
	if classroomName == "" {
		return nil, fmt.Errorf("CLASSROOM_NAME environment variable is not set")
	}

	maxRetries, err := intEnv("MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", maxRetries)
	}

	timeoutSeconds, err := intEnv("TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	if timeoutSeconds < 1 {
		return nil, fmt.Errorf("TIMEOUT_SECONDS must be at least 1, got %d", timeoutSeconds)
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		ClassroomName:  classroomName,
		AssignmentID:   os.Getenv("ASSIGNMENT_ID"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "INFO"),
		MaxRetries:     maxRetries,
		CommandTimeout: time.Duration(timeoutSeconds) * time.Second,
		SearchUsername: os.Getenv("SEARCH_USERNAME"),
		JWTSecretKey:   os.Getenv("JWT_SECRET_KEY"),
		ServerPort:     port,
		ExportArchive: ExportArchiveConfig{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		},
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}
