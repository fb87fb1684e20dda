package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	STTBaseURL     string
	STTAPIKey      string
	STTFallbackURL string
	STTModelID     string

	TargetDurationSeconds     float64
	SilenceThresholdDb        float64
	MinSilenceDurationSeconds float64
	MaxConcurrentDefault      int
	BackendSampleRate         int

	SegmentTimeout  time.Duration
	BackoffInitial  time.Duration
	BackoffMaxDelay time.Duration
	MaxAttempts     int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		STTBaseURL:     getEnv("STT_BASE_URL", "https://api.elevenlabs.io/v1"),
		STTAPIKey:      getEnv("STT_API_KEY", ""),
		STTFallbackURL: getEnv("STT_FALLBACK_URL", ""),
		STTModelID:     getEnv("STT_MODEL_ID", "scribe_v1"),

		TargetDurationSeconds:     getEnvFloat("TARGET_DURATION_SECONDS", 30.0),
		SilenceThresholdDb:        getEnvFloat("SILENCE_THRESHOLD_DB", -40.0),
		MinSilenceDurationSeconds: getEnvFloat("MIN_SILENCE_DURATION_SECONDS", 0.5),
		MaxConcurrentDefault:      getEnvInt("MAX_CONCURRENT_TRANSCRIPTIONS", 3),
		BackendSampleRate:         getEnvInt("BACKEND_SAMPLE_RATE", 16000),

		SegmentTimeout:  getEnvDuration("SEGMENT_TIMEOUT", 5*time.Minute),
		BackoffInitial:  getEnvDuration("BACKOFF_INITIAL", 500*time.Millisecond),
		BackoffMaxDelay: getEnvDuration("BACKOFF_MAX_DELAY", 8*time.Second),
		MaxAttempts:     getEnvInt("MAX_ATTEMPTS", 3),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
