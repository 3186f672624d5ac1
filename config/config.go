package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all configuration for the session console service
type Config struct {
	Telegram TelegramConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	S3       S3Config
	Logging  LoggingConfig
	Service  ServiceConfig
	Console  ConsoleConfig
	Poller   PollerConfig
}

// TelegramConfig holds Telegram MTProto configuration
type TelegramConfig struct {
	APIID        int
	APIHash      string
	FloodRetries int
	RatePerSec   int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration for the operation audit trail
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// S3Config holds MinIO configuration for export artifacts
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name        string
	Port        string
	BearerToken string
}

// ConsoleConfig holds operator console behaviour configuration
type ConsoleConfig struct {
	AuthFlowTTL     time.Duration
	MaxAuthFlows    int
	ResendCooldown  int // seconds, used when Telegram does not supply one
	EmailRotation   []string
	WalletBots      []string
	BalanceCommands []string
	SearchPatterns  []string
	PatternPageSize int
}

// PollerConfig holds background polling intervals
type PollerConfig struct {
	MetricsInterval  time.Duration
	LivenessInterval time.Duration
	LogTailInterval  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	apiID, err := strconv.Atoi(getEnv("TELEGRAM_API_ID", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}

	metricsInterval, err := time.ParseDuration(getEnv("POLL_METRICS_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_METRICS_INTERVAL: %w", err)
	}
	livenessInterval, err := time.ParseDuration(getEnv("POLL_LIVENESS_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_LIVENESS_INTERVAL: %w", err)
	}
	logTailInterval, err := time.ParseDuration(getEnv("POLL_LOG_TAIL_INTERVAL", "4s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_LOG_TAIL_INTERVAL: %w", err)
	}
	authFlowTTL, err := time.ParseDuration(getEnv("AUTH_FLOW_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_FLOW_TTL: %w", err)
	}

	maxAuthFlows, err := strconv.Atoi(getEnv("AUTH_FLOW_MAX", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_FLOW_MAX: %w", err)
	}
	resendCooldown, err := strconv.Atoi(getEnv("AUTH_RESEND_COOLDOWN", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RESEND_COOLDOWN: %w", err)
	}
	patternPageSize, err := strconv.Atoi(getEnv("PATTERN_PAGE_SIZE", "40"))
	if err != nil {
		return nil, fmt.Errorf("invalid PATTERN_PAGE_SIZE: %w", err)
	}
	ratePerSec, err := strconv.Atoi(getEnv("TELEGRAM_RATE_PER_SEC", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_RATE_PER_SEC: %w", err)
	}
	floodRetries, err := strconv.Atoi(getEnv("TELEGRAM_FLOOD_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_FLOOD_RETRIES: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			APIID:        apiID,
			APIHash:      getEnv("TELEGRAM_API_HASH", ""),
			FloodRetries: floodRetries,
			RatePerSec:   ratePerSec,
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:   getEnv("POSTGRES_DB", "session_console"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9093"), ","),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "console.operations"),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "session-exports"),
			UseSSL:    getEnv("S3_USE_SSL", "false") == "true",
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "session-console"),
			Port:        getEnv("SERVICE_PORT", "8086"),
			BearerToken: getEnv("API_BEARER_TOKEN", ""),
		},
		Console: ConsoleConfig{
			AuthFlowTTL:     authFlowTTL,
			MaxAuthFlows:    maxAuthFlows,
			ResendCooldown:  resendCooldown,
			EmailRotation:   splitList(getEnv("EMAIL_ROTATION_LIST", "")),
			WalletBots:      splitList(getEnv("CRYPTO_WALLET_BOTS", "")),
			BalanceCommands: splitList(getEnv("CRYPTO_BALANCE_COMMANDS", "balance,wallet")),
			SearchPatterns:  splitList(getEnv("SEARCH_PATTERNS", "")),
			PatternPageSize: patternPageSize,
		},
		Poller: PollerConfig{
			MetricsInterval:  metricsInterval,
			LivenessInterval: livenessInterval,
			LogTailInterval:  logTailInterval,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.APIID == 0 {
		return fmt.Errorf("TELEGRAM_API_ID is required")
	}

	if c.Telegram.APIHash == "" {
		return fmt.Errorf("TELEGRAM_API_HASH is required")
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	if c.Console.PatternPageSize <= 0 {
		return fmt.Errorf("PATTERN_PAGE_SIZE must be positive")
	}

	return nil
}

// SubConfigs exposes per-concern sub-configs for fx DI
type SubConfigs struct {
	fx.Out

	Telegram *TelegramConfig
	Database *DatabaseConfig
	Kafka    *KafkaConfig
	S3       *S3Config
	Logging  *LoggingConfig
	Service  *ServiceConfig
	Console  *ConsoleConfig
	Poller   *PollerConfig
}

// Out loads the config and fans out per-concern sub-configs
func Out() (SubConfigs, *Config, error) {
	cfg, err := Load()
	if err != nil {
		return SubConfigs{}, nil, err
	}

	return SubConfigs{
		Telegram: &cfg.Telegram,
		Database: &cfg.Database,
		Kafka:    &cfg.Kafka,
		S3:       &cfg.S3,
		Logging:  &cfg.Logging,
		Service:  &cfg.Service,
		Console:  &cfg.Console,
		Poller:   &cfg.Poller,
	}, cfg, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// splitList splits a comma separated env value, dropping empty entries
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
