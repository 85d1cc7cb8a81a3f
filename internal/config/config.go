package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        string
	DataDir     string
	JWTSecret   string
	DatabaseURL string // optional: durable user registry
	RedisURL    string // optional: durable revocation set

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	TalkRounds     int
	AllowedOrigins string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is applied first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               envOrDefault("PORT", "8010"),
		DataDir:            envOrDefault("DATA_DIR", "data"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		TalkRounds:         envIntOrDefault("TALK_ROUNDS", 2),
		AllowedOrigins:     envOrDefault("ALLOWED_ORIGINS", "*"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
