package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	LLMAPIKey   string
	LLMEndpoint string
	LLMModel    string
	Database    string
	UploadDir   string
	Port        string
	Env         string
	LogLevel    string
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		LLMAPIKey:   os.Getenv("GROQ_API_KEY"),
		LLMEndpoint: getEnv("LLM_API_ENDPOINT", "https://api.groq.com/openai/v1"),
		LLMModel:    getEnv("LLM_MODEL", "mixtral-8x7b-32768"),
		Database:    getEnv("DATABASE_PATH", "./data/examquiz.db"),
		UploadDir:   getEnv("UPLOAD_DIR", "./static/uploads"),
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", cfg.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
