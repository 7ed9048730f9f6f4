package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Imports  ImportsConfig  `yaml:"imports"`
	Overview OverviewConfig `yaml:"overview"`
	Sync     SyncConfig     `yaml:"sync"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the listen host. Containers listen on all interfaces.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is the host:port the API server binds.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the Postgres connection.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
	MigrationsDir   string `yaml:"migrations_dir"`
}

func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Minute
}

// RedisConfig holds the cache and lock backend. An empty URL disables Redis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig holds the optional AWS archive and audit targets.
type StorageConfig struct {
	S3Bucket      string `yaml:"s3_bucket"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"` // S3-compatible endpoint (minio, localstack)
	AuditTTLDays  int    `yaml:"audit_ttl_days"`
}

// GetAWSProfile resolves the profile, preferring IAM roles when running on AWS.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// Enabled reports whether any AWS target is configured.
func (c StorageConfig) Enabled() bool {
	return c.S3Bucket != "" || c.DynamoDBTable != ""
}

// ImportsConfig tunes revenue file imports.
type ImportsConfig struct {
	DefaultCurrency string `yaml:"default_currency"`
	CheckpointRows  int    `yaml:"checkpoint_rows"`
	InsertBatchSize int    `yaml:"insert_batch_size"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
	ArchiveUploads  bool   `yaml:"archive_uploads"`
	PreviewRows     int    `yaml:"preview_rows"`
}

func (c ImportsConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// OverviewConfig tunes overview computation.
type OverviewConfig struct {
	CacheTTLSeconds  int    `yaml:"cache_ttl_seconds"`
	EngagementMode   string `yaml:"engagement_mode"` // ratio_of_sums or mean_of_rates
	DefaultRangeDays int    `yaml:"default_range_days"`
}

func (c OverviewConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// SyncConfig controls the platform sync worker.
type SyncConfig struct {
	IntervalMinutes int      `yaml:"interval_minutes"`
	LookbackDays    int      `yaml:"lookback_days"`
	Concurrency     int      `yaml:"concurrency"`
	LockTTLMinutes  int      `yaml:"lock_ttl_minutes"`
	S3Prefix        string   `yaml:"s3_prefix"`
	Platforms       []string `yaml:"platforms"`
}

func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c SyncConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.AuditTTLDays == 0 {
		cfg.Storage.AuditTTLDays = 365
	}
	if cfg.Imports.DefaultCurrency == "" {
		cfg.Imports.DefaultCurrency = "EUR"
	}
	if cfg.Imports.CheckpointRows == 0 {
		cfg.Imports.CheckpointRows = 500
	}
	if cfg.Imports.InsertBatchSize == 0 {
		cfg.Imports.InsertBatchSize = 500
	}
	if cfg.Imports.MaxUploadMB == 0 {
		cfg.Imports.MaxUploadMB = 20
	}
	if cfg.Imports.PreviewRows == 0 {
		cfg.Imports.PreviewRows = 5
	}
	if cfg.Overview.CacheTTLSeconds == 0 {
		cfg.Overview.CacheTTLSeconds = 300
	}
	if cfg.Overview.EngagementMode == "" {
		cfg.Overview.EngagementMode = "ratio_of_sums"
	}
	if cfg.Overview.DefaultRangeDays == 0 {
		cfg.Overview.DefaultRangeDays = 30
	}
	if cfg.Sync.IntervalMinutes == 0 {
		cfg.Sync.IntervalMinutes = 60
	}
	if cfg.Sync.LookbackDays == 0 {
		cfg.Sync.LookbackDays = 7
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 4
	}
	if cfg.Sync.LockTTLMinutes == 0 {
		cfg.Sync.LockTTLMinutes = 15
	}
	if cfg.Sync.S3Prefix == "" {
		cfg.Sync.S3Prefix = "platform-exports"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Storage.DynamoDBTable = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("SYNC_PLATFORMS"); v != "" {
		cfg.Sync.Platforms = splitList(v)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
