// Package config loads Maná API and worker settings from the environment.
package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mana/internal/scheduler"
)

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string

	// Auth. JWTSecret is the signing secret of the hosted auth provider.
	JWTSecret      string
	PipelineAPIKey string

	// Messaging
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Worker schedules
	SnapshotCron string
	FreezeCron   string

	// Report memoization
	ReportCacheSize int
	ReportCacheTTL  time.Duration
}

var (
	appConfig *Config
	mu        sync.Mutex
)

func defaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")

	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "mana")
	v.SetDefault("db_password", "mana")
	v.SetDefault("db_name", "mana")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_path", "mana.db")

	v.SetDefault("jwt_secret", "fallback-secret-key-for-dev-only")
	v.SetDefault("pipeline_api_key", "")

	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "mana.events")
	v.SetDefault("amqp_queue", "mana.transactions")

	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_from", "Maná Finance <no-reply@mana.finance>")

	v.SetDefault("snapshot_cron", "0 3 * * *")
	v.SetDefault("freeze_cron", "0 2 1 * *")

	v.SetDefault("report_cache_size", 1024)
	v.SetDefault("report_cache_ttl", "10m")
}

// Load reads the optional .env file and then resolves every setting from the
// environment, falling back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	ttl, err := time.ParseDuration(v.GetString("report_cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_CACHE_TTL %q: %w", v.GetString("report_cache_ttl"), err)
	}

	cfg := &Config{
		Env:  v.GetString("env"),
		Port: v.GetString("port"),

		DBDriver:   strings.ToLower(v.GetString("db_driver")),
		DBHost:     v.GetString("db_host"),
		DBPort:     v.GetString("db_port"),
		DBUser:     v.GetString("db_user"),
		DBPassword: v.GetString("db_password"),
		DBName:     v.GetString("db_name"),
		DBSSLMode:  v.GetString("db_sslmode"),
		DBPath:     v.GetString("db_path"),

		JWTSecret:      v.GetString("jwt_secret"),
		PipelineAPIKey: v.GetString("pipeline_api_key"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		SMTPHost:     v.GetString("smtp_host"),
		SMTPPort:     v.GetInt("smtp_port"),
		SMTPUser:     v.GetString("smtp_user"),
		SMTPPassword: v.GetString("smtp_password"),
		SMTPFrom:     v.GetString("smtp_from"),

		SnapshotCron: v.GetString("snapshot_cron"),
		FreezeCron:   v.GetString("freeze_cron"),

		ReportCacheSize: v.GetInt("report_cache_size"),
		ReportCacheTTL:  ttl,
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (use postgres or sqlite)", cfg.DBDriver)
	}
	if err := scheduler.ValidateSpec(cfg.SnapshotCron); err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_CRON %q: %w", cfg.SnapshotCron, err)
	}
	if err := scheduler.ValidateSpec(cfg.FreezeCron); err != nil {
		return nil, fmt.Errorf("invalid FREEZE_CRON %q: %w", cfg.FreezeCron, err)
	}

	mu.Lock()
	appConfig = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the application configuration
func Get() *Config {
	mu.Lock()
	cfg := appConfig
	mu.Unlock()
	if cfg == nil {
		var err error
		cfg, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return cfg
}

// Set replaces the cached configuration. Tests use it to inject settings.
func Set(cfg *Config) {
	mu.Lock()
	appConfig = cfg
	mu.Unlock()
}

// PostgresDSN returns the gorm connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// PostgresURL returns the URL form used by golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// SMTPAddr returns host:port of the mail relay.
func (c *Config) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}
