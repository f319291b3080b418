package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// Generative backend
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	// Prompt pack and policy document overrides (embedded defaults when empty)
	PromptsFile  string
	PoliciesFile string
	// Optional Postgres-backed catalog
	DatabaseURL   string
	MigrationsDir string
	// Admission control
	RateLimitMax       int
	RateLimitWindow    time.Duration
	RateLimitCacheSize int
	// Pause between streamed fragments
	StreamFragmentDelay time.Duration
	LogLevel            string
	LogFormat           string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:                getEnvDefault("PORT", "8080"),
		AllowedOrigin:       getEnvDefault("ALLOWED_ORIGIN", "*"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		Model:               getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		PromptsFile:         os.Getenv("PROMPTS_FILE"),
		PoliciesFile:        os.Getenv("POLICIES_FILE"),
		DatabaseURL:         os.Getenv("DB_URL"),
		MigrationsDir:       getEnvDefault("MIGRATIONS_DIR", "./migrations"),
		RateLimitMax:        getEnvIntDefault("RATE_LIMIT_MAX", 30),
		RateLimitWindow:     getEnvDurationDefault("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitCacheSize:  getEnvIntDefault("RATE_LIMIT_CACHE_SIZE", 10000),
		StreamFragmentDelay: getEnvDurationDefault("STREAM_FRAGMENT_DELAY", 30*time.Millisecond),
		LogLevel:            getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvDefault("LOG_FORMAT", "text"),
	}
	if cfg.OpenAIAPIKey == "" {
		logrus.Warn("OPENAI_API_KEY is not set; chat falls back to static replies until provided")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n
		}
		logrus.WithField("key", key).Warnf("ignoring invalid integer %q", v)
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d >= 0 {
			return d
		}
		logrus.WithField("key", key).Warnf("ignoring invalid duration %q", v)
	}
	return def
}
