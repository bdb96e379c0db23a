package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-driven setting. godotenv is loaded by
// main before Load is called, so a local .env file works the same as
// real environment variables. Token signing reads JWT_SECRET and
// JWT_EXPIRES_IN itself, in the auth package.
type Config struct {
	DatabaseURL string
	HTTPPort    string

	CORSOrigins []string

	// Plausible odometer progression per refill, in km. A delta outside
	// [AnomalyKmMin, AnomalyKmMax] marks the refill as anomalous.
	AnomalyKmMin int
	AnomalyKmMax int
}

func Load() Config {
	cfg := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		HTTPPort:     getenv("HTTP_PORT", "8080"),
		AnomalyKmMin: parseInt("ANOMALY_KM_MIN", 1),
		AnomalyKmMax: parseInt("ANOMALY_KM_MAX", 1000),
	}
	origins := getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173,http://localhost:8080")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
