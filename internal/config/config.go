package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL      string
	PredictionAPIURL string // base URL of the external price predictor (required)
	JWTSecret        string
	Port             string
	Environment      string

	// Minimum interval between completed sync passes
	SyncCooldown time.Duration
}

// Load reads configuration from the environment. PREDICTION_API_URL has no
// default on purpose: a missing predictor origin must fail startup rather
// than silently pointing at a hard-coded host.
func Load() (*Config, error) {
	predictionURL := os.Getenv("PREDICTION_API_URL")
	if predictionURL == "" {
		return nil, fmt.Errorf("PREDICTION_API_URL is not set")
	}

	// Default MySQL connection string
	defaultDSN := "root:root@tcp(127.0.0.1:3306)/agrimarket?charset=utf8mb4&parseTime=True&loc=Local"

	cooldown := 60 * time.Second
	if v := os.Getenv("SYNC_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SYNC_COOLDOWN %q: %w", v, err)
		}
		cooldown = d
	}

	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", defaultDSN),
		PredictionAPIURL: predictionURL,
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key"),
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		SyncCooldown:     cooldown,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
