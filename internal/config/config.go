package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/services/matching"
)

// Config is the env-derived runtime configuration. All matching tunables are
// configuration, not constants; confirm production values with product before
// relying on the shipped defaults.
type Config struct {
	HTTPAddr    string
	CORSOrigins []string

	IngestQueueSize int
	MatchWorkers    int
	PassTimeout     time.Duration
	CASRetries      int
	MaxAttempts     int

	SweepSchedule  string
	SweepBatchSize int

	DispatchSchedule  string
	DispatchBatchSize int
	WebhookURL        string
	WebhookTimeout    time.Duration

	Weights  matching.Weights
	Defaults models.MatchSettings
}

func Load() Config {
	weights := matching.DefaultWeights()
	weights.Ownership = getEnvFloat("MATCH_WEIGHT_OWNERSHIP", weights.Ownership)
	weights.Amount = getEnvFloat("MATCH_WEIGHT_AMOUNT", weights.Amount)
	weights.Freshness = getEnvFloat("MATCH_WEIGHT_FRESHNESS", weights.Freshness)
	weights.Consistency = getEnvFloat("MATCH_WEIGHT_CONSISTENCY", weights.Consistency)
	weights.AmbiguousCap = getEnvFloat("MATCH_AMBIGUOUS_CAP", weights.AmbiguousCap)
	weights.DustCap = getEnvFloat("MATCH_DUST_CAP", weights.DustCap)
	if v := os.Getenv("MATCH_DUST_THRESHOLD"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			weights.DustThreshold = d
		}
	}

	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		IngestQueueSize: getEnvInt("INGEST_QUEUE_SIZE", 1024),
		MatchWorkers:    getEnvInt("MATCH_WORKERS", 4),
		PassTimeout:     getEnvDuration("MATCH_PASS_TIMEOUT", 10*time.Second),
		CASRetries:      getEnvInt("CAS_RETRIES", 5),
		MaxAttempts:     getEnvInt("MATCH_MAX_ATTEMPTS", 3),

		SweepSchedule:  getEnv("SWEEP_SCHEDULE", "@every 5m"),
		SweepBatchSize: getEnvInt("SWEEP_BATCH_SIZE", 200),

		DispatchSchedule:  getEnv("DISPATCH_SCHEDULE", "@every 30s"),
		DispatchBatchSize: getEnvInt("DISPATCH_BATCH_SIZE", 100),
		WebhookURL:        os.Getenv("NOTIFY_WEBHOOK_URL"),
		WebhookTimeout:    getEnvDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),

		Weights:  weights,
		Defaults: DefaultMatchSettings(),
	}
}

// DefaultMatchSettings are the system-wide fallbacks used when an account has
// never configured matching.
func DefaultMatchSettings() models.MatchSettings {
	return models.MatchSettings{
		Enabled:               getEnvBool("MATCH_DEFAULT_ENABLED", true),
		MinConfidence:         getEnvFloat("MATCH_DEFAULT_MIN_CONFIDENCE", 0.6),
		AutoApproveConfidence: getEnvFloat("MATCH_DEFAULT_AUTO_APPROVE_CONFIDENCE", 0.8),
		AutoConfirm:           getEnvBool("MATCH_DEFAULT_AUTO_CONFIRM", true),
		TimeWindowHours:       getEnvInt("MATCH_DEFAULT_TIME_WINDOW_HOURS", 24),
	}
}

// InitDB opens the Postgres connection. Fails fast; the service is useless
// without its store.
func InitDB() *gorm.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
