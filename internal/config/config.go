package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the router processes.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Poller    PollerConfig
	Queue     QueueConfig
	TicketAPI TicketAPIConfig
	Rules     RulesConfig
}

// AppConfig controls the ops HTTP server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	TimeZone              string
}

// PostgresConfig holds primary and replica connection values.
type PostgresConfig struct {
	DSN            string
	ReplicaDSN     string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines the ops API credentials.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorUsername      string
	OperatorPasswordHash  string
}

// PollerConfig drives the polling orchestrator.
type PollerConfig struct {
	LockBackend    string
	LockPath       string
	LockKey        string
	LockStaleAfter time.Duration
	Interval       time.Duration
	CycleTimeout   time.Duration
	BatchSize      int
	SystemActors   []string
}

// QueueConfig names the broker queues and consumer retry policy.
type QueueConfig struct {
	APIQueue       string
	MailQueue      string
	APILogQueue    string
	PublishTimeout time.Duration
	BlockTimeout   time.Duration
	ConnectRetries int
	RetryDelay     time.Duration
}

// TicketAPIConfig describes the external ticketing system.
type TicketAPIConfig struct {
	BaseURL         string
	TokenURL        string
	Username        string
	Password        string
	RequestTimeout  time.Duration
	TokenTTL        time.Duration
	RequesterID     int
	LoginName       string
	ITSCreatePath   string
	ITSUpdatePath   string
	ITSTemplatePath string
	HOCreatePath    string
	HOUpdatePath    string
	HOTemplatePath  string
	CRMFileHost     string
	CRMTextHost     string
	ImageHost       string
	DryRun          bool
}

// RulesConfig locates the routing rule file.
type RulesConfig struct {
	Path          string
	LabelCacheTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	primaryDSN := os.Getenv("POSTGRES_DSN")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-router"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8082"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			TimeZone:              getEnv("APP_TIMEZONE", "Asia/Ho_Chi_Minh"),
		},
		Postgres: PostgresConfig{
			DSN:            primaryDSN,
			ReplicaDSN:     getEnv("POSTGRES_REPLICA_DSN", primaryDSN),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", false),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorUsername:      getEnv("AUTH_OPERATOR_USERNAME", "cskh"),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
		},
		Poller: PollerConfig{
			LockBackend:    getEnv("POLLER_LOCK_BACKEND", "file"),
			LockPath:       getEnv("POLLER_LOCK_PATH", "/tmp/create_luong_ticket.lockfile"),
			LockKey:        getEnv("POLLER_LOCK_KEY", "ticket-router:poller"),
			LockStaleAfter: getEnvAsDuration("POLLER_LOCK_STALE_AFTER", 600*time.Second),
			Interval:       getEnvAsDuration("POLLER_INTERVAL", 5*time.Second),
			CycleTimeout:   getEnvAsDuration("POLLER_CYCLE_TIMEOUT", 2*time.Minute),
			BatchSize:      getEnvAsInt("POLLER_BATCH_SIZE", 1),
			SystemActors:   getEnvAsList("POLLER_SYSTEM_ACTORS", []string{"AI Nhỡ", "AI BlockCard", "AI Resetpass"}),
		},
		Queue: QueueConfig{
			APIQueue:       getEnv("QUEUE_API", "Ticket_API"),
			MailQueue:      getEnv("QUEUE_MAIL", "Ticket_Mail"),
			APILogQueue:    getEnv("QUEUE_API_LOG", "Ticket_APILog"),
			PublishTimeout: getEnvAsDuration("QUEUE_PUBLISH_TIMEOUT", 10*time.Second),
			BlockTimeout:   getEnvAsDuration("QUEUE_BLOCK_TIMEOUT", 5*time.Second),
			ConnectRetries: getEnvAsInt("QUEUE_CONNECT_RETRIES", 5),
			RetryDelay:     getEnvAsDuration("QUEUE_RETRY_DELAY", 5*time.Second),
		},
		TicketAPI: TicketAPIConfig{
			BaseURL:         getEnv("TICKET_API_BASE_URL", ""),
			TokenURL:        getEnv("TICKET_API_TOKEN_URL", ""),
			Username:        os.Getenv("TICKET_API_USERNAME"),
			Password:        os.Getenv("TICKET_API_PASSWORD"),
			RequestTimeout:  getEnvAsDuration("TICKET_API_TIMEOUT", 15*time.Second),
			TokenTTL:        getEnvAsDuration("TICKET_API_TOKEN_TTL", 5*time.Minute),
			RequesterID:     getEnvAsInt("TICKET_API_REQUESTER_ID", 13502),
			LoginName:       getEnv("TICKET_API_LOGIN_NAME", "cskh"),
			ITSCreatePath:   getEnv("TICKET_API_ITS_CREATE_PATH", "/its/requests"),
			ITSUpdatePath:   getEnv("TICKET_API_ITS_UPDATE_PATH", "/its/requests/"),
			ITSTemplatePath: getEnv("TICKET_API_ITS_TEMPLATE_PATH", "/its/templates"),
			HOCreatePath:    getEnv("TICKET_API_HO_CREATE_PATH", "/ho/requests"),
			HOUpdatePath:    getEnv("TICKET_API_HO_UPDATE_PATH", "/ho/requests/"),
			HOTemplatePath:  getEnv("TICKET_API_HO_TEMPLATE_PATH", "/ho/templates"),
			CRMFileHost:     getEnv("TICKET_API_CRM_FILE_HOST", ""),
			CRMTextHost:     getEnv("TICKET_API_CRM_TEXT_HOST", ""),
			ImageHost:       getEnv("TICKET_API_IMAGE_HOST", ""),
			DryRun:          getEnvAsBool("TICKET_API_DRY_RUN", false),
		},
		Rules: RulesConfig{
			Path:          getEnv("RULES_PATH", "configs/rules.yaml"),
			LabelCacheTTL: getEnvAsDuration("RULES_LABEL_CACHE_TTL", 10*time.Minute),
		},
	}

	if cfg.Poller.BatchSize <= 0 {
		cfg.Poller.BatchSize = 1
	}
	if cfg.Poller.LockBackend != "file" && cfg.Poller.LockBackend != "redis" {
		return nil, fmt.Errorf("invalid POLLER_LOCK_BACKEND %q", cfg.Poller.LockBackend)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the business calendar time zone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
