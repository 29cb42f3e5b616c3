package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Feed transport strategies. The notification feed can either hold a live
// Firestore listener per user or poll the backend on a fixed cadence.
const (
	FeedTransportFirestore = "firestore"
	FeedTransportPolling   = "polling"
)

// Notification backend stores.
const (
	NotificationStoreFirestore = "firestore"
	NotificationStorePostgres  = "postgres"
)

type Config struct {
	Port    string
	GinMode string

	// Firebase
	FirebaseProjectID string
	FirebaseCredJSON  string

	// Validator
	ValidatorType string // "jwk" or "firebase"
	JWTJWKSURL    string

	// Database
	DatabaseURL string

	// Database Connection Pool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// Notification backend: "firestore" or "postgres".
	NotificationStore string `yaml:"notification_store"`

	// Feed
	FeedTransport       string        `yaml:"feed_transport"` // "firestore" or "polling"
	FeedPollInterval    time.Duration `yaml:"feed_poll_interval"`
	FeedSnapshotLimit   int           `yaml:"feed_snapshot_limit"`
	ReconcilerRollback  bool          `yaml:"reconciler_rollback"` // roll back optimistic patches on write failure
	ReconcilerTimeout   time.Duration `yaml:"reconciler_timeout"`  // per-write timeout
	MarkAllParallelism  int           `yaml:"mark_all_parallelism"`

	// Push Notifications
	PushNotificationsEnabled bool

	// Event Reminders
	ReminderCronSpec string        `yaml:"reminder_cron_spec"`
	ReminderWindow   time.Duration `yaml:"reminder_window"`

	// CORS
	CORSAllowedOrigins string

	// Server
	ServerShutdownTimeoutSeconds int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment (and .env if present) and
// returns an explicitly constructed Config. The config is passed by pointer
// to every service that needs it; there is no package-global instance.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		FirebaseProjectID: getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:  getEnvOrDefault("FIREBASE_CRED_JSON", ""),

		ValidatorType: getEnvOrDefault("VALIDATOR_TYPE", "firebase"),
		JWTJWKSURL:    getEnvOrDefault("JWT_JWKS_URL", ""),

		DatabaseURL: getEnvOrDefault("DATABASE_URL", "postgres://localhost/whatsport?sslmode=disable"),

		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 5),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		NotificationStore: getEnvOrDefault("NOTIFICATION_STORE", NotificationStoreFirestore),

		FeedTransport:      getEnvOrDefault("FEED_TRANSPORT", FeedTransportFirestore),
		FeedPollInterval:   getEnvAsDuration("FEED_POLL_INTERVAL", 30*time.Second),
		FeedSnapshotLimit:  getEnvAsInt("FEED_SNAPSHOT_LIMIT", 50),
		ReconcilerRollback: getEnvOrDefault("RECONCILER_ROLLBACK", "false") == "true",
		ReconcilerTimeout:  getEnvAsDuration("RECONCILER_TIMEOUT", 10*time.Second),
		MarkAllParallelism: getEnvAsInt("MARK_ALL_PARALLELISM", 8),

		PushNotificationsEnabled: getEnvOrDefault("PUSH_NOTIFICATIONS_ENABLED", "true") == "true",

		ReminderCronSpec: getEnvOrDefault("REMINDER_CRON_SPEC", "*/5 * * * *"),
		ReminderWindow:   getEnvAsDuration("REMINDER_WINDOW", time.Hour),

		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", ""),
	}

	return cfg
}

// LoadConfigFile overlays YAML configuration onto an already loaded Config.
// Used for the feed/reconciler tuning section that doesn't map well to
// environment variables.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
