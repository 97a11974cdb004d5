package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Collab   CollabConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CollabLogFilePath  string
	CorsAllowedOrigins string
	JWTSecret          string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// CollabConfig tunes the search session synchronization engine.
type CollabConfig struct {
	DebounceWindow         time.Duration
	AckTimeout             time.Duration
	DedupTTL               time.Duration // how long processed messageIds replay their ack
	HistoryRetention       int // max events served in a single catch-up
	DefaultMaxParticipants int
	RecentHistorySize      int // per-session in-memory buffer
	BroadcastTopic         string
	FanoutChannel          string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CollabLogFilePath:  getEnv("COLLAB_LOG_FILE_PATH", "logs/collab.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Collab: CollabConfig{
			DebounceWindow:         getEnvAsMillis("COLLAB_DEBOUNCE_WINDOW_MS", 300),
			AckTimeout:             getEnvAsMillis("COLLAB_ACK_TIMEOUT_MS", 2000),
			DedupTTL:               getEnvAsMillis("COLLAB_DEDUP_TTL_MS", 60000),
			HistoryRetention:       getEnvAsInt("COLLAB_HISTORY_RETENTION", 500),
			DefaultMaxParticipants: getEnvAsInt("COLLAB_DEFAULT_MAX_PARTICIPANTS", 10),
			RecentHistorySize:      getEnvAsInt("COLLAB_RECENT_HISTORY_SIZE", 50),
			BroadcastTopic:         getEnv("COLLAB_BROADCAST_TOPIC", "SEARCH_EVENT_BROADCAST"),
			FanoutChannel:          getEnv("COLLAB_FANOUT_CHANNEL", "search_session_events"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsMillis(key string, fallback int64) time.Duration {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
		return time.Duration(value) * time.Millisecond
	}
	return time.Duration(fallback) * time.Millisecond
}
