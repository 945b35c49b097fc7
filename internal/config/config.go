package config

import (
	"os"
	"strconv"
	"time"
)

// Config centralizes runtime settings for the narration client.
type Config struct {
	BackendBaseURL string

	RequestTimeout  time.Duration
	HealthTimeout   time.Duration
	UploadTimeout   time.Duration
	ScriptTimeout   time.Duration
	NarratedTimeout time.Duration
	SpeechTimeout   time.Duration

	PollInitialDelay time.Duration
	PollInterval     time.Duration

	PreviewRPS   float64
	PreviewBurst int

	SettingsFile string
	DatabaseURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Locale    string
	OutputDir string
}

func Load() Config {
	return Config{
		BackendBaseURL: getEnv("NARRATOR_BACKEND_URL", "http://localhost:8080"),

		RequestTimeout:  getEnvDurationMS("NARRATOR_TIMEOUT_MS", 30000),
		HealthTimeout:   getEnvDurationMS("NARRATOR_HEALTH_TIMEOUT_MS", 5000),
		UploadTimeout:   getEnvDurationMS("NARRATOR_UPLOAD_TIMEOUT_MS", 600000),
		ScriptTimeout:   getEnvDurationMS("NARRATOR_SCRIPT_TIMEOUT_MS", 300000),
		NarratedTimeout: getEnvDurationMS("NARRATOR_NARRATED_TIMEOUT_MS", 900000),
		SpeechTimeout:   getEnvDurationMS("NARRATOR_SPEECH_TIMEOUT_MS", 180000),

		PollInitialDelay: getEnvDurationMS("NARRATOR_POLL_INITIAL_DELAY_MS", 1000),
		PollInterval:     getEnvDurationMS("NARRATOR_POLL_INTERVAL_MS", 2000),

		PreviewRPS:   getEnvFloat("NARRATOR_PREVIEW_RPS", 1),
		PreviewBurst: getEnvInt("NARRATOR_PREVIEW_BURST", 2),

		SettingsFile: getEnv("NARRATOR_SETTINGS_FILE", defaultSettingsFile()),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Locale:    getEnv("NARRATOR_LOCALE", "zh-TW"),
		OutputDir: getEnv("NARRATOR_OUTPUT_DIR", "."),
	}
}

func defaultSettingsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ppt-narrator.json"
	}
	return home + "/.ppt-narrator.json"
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDurationMS(key string, fallbackMS int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMS)) * time.Millisecond
}
