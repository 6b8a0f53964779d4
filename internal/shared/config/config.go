package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	JWTSecret       string

	// Decision rules. Zero thresholds keep the values from the rules file.
	RulesFile            string
	ConfidenceThreshold  float64
	AutoApproveThreshold float64
	MaxResponseLength    int

	LLMProvider string
	LLMModel    string

	RedisAddr    string
	QueueBackend string
	LockBackend  string

	SubmitURL   string
	SubmitToken string
	AutoSubmit  bool

	BatchSize         int
	WorkerConcurrency int
	BatchInterval     time.Duration
	// StaleAfter is how long an inquiry may sit in processing before a batch
	// run puts it back to pending. Zero disables reclaiming.
	StaleAfter time.Duration

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	if env == "production" && os.Getenv("JWT_SECRET") == "" {
		log.Printf("JWT_SECRET is required in production")
	}

	redisAddr := strings.TrimPrefix(getEnv("REDIS_ADDR", ""), "redis://")

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,
		JWTSecret:       getEnv("JWT_SECRET", ""),

		RulesFile:            getEnv("RULES_FILE", ""),
		ConfidenceThreshold:  getFloat("CONFIDENCE_THRESHOLD", 0),
		AutoApproveThreshold: getFloat("AUTO_APPROVE_THRESHOLD", 0),
		MaxResponseLength:    getInt("MAX_RESPONSE_LENGTH", 0),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "template")),
		LLMModel:    getEnv("LLM_MODEL", ""),

		RedisAddr:    redisAddr,
		QueueBackend: normalizeBackend(getEnv("QUEUE_BACKEND", ""), redisAddr),
		LockBackend:  normalizeBackend(getEnv("LOCK_BACKEND", ""), redisAddr),

		SubmitURL:   getEnv("SUBMIT_URL", ""),
		SubmitToken: getEnv("SUBMIT_TOKEN", ""),
		AutoSubmit:  getBool("AUTO_SUBMIT", false),

		BatchSize:         getInt("BATCH_SIZE", 50),
		WorkerConcurrency: max(1, getInt("WORKER_CONCURRENCY", 1)),
		BatchInterval:     time.Duration(getInt("BATCH_INTERVAL_SECONDS", 300)) * time.Second,
		StaleAfter:        time.Duration(getInt("STALE_PROCESSING_SECONDS", 900)) * time.Second,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none":
		return "none"
	default:
		return "local"
	}
}

// normalizeBackend picks redis when asked for it or when a Redis address is
// configured and nothing was asked for.
func normalizeBackend(raw, redisAddr string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	case "memory":
		return "memory"
	default:
		if redisAddr != "" {
			return "redis"
		}
		return "memory"
	}
}
