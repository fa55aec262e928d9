// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketDNPhotos() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides settings for the asynq queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SheetsConfig provides settings for the Google spreadsheet mirror.
type SheetsConfig interface {
	GetGoogleCredentialsJSON() string
	GetSpreadsheetID() string
	GetSheetPrefix() string
	GetSheetWriteTimeout() time.Duration
}

// SyncConfig provides settings for periodic reconciliation and archiving.
type SyncConfig interface {
	GetSyncInterval() time.Duration
	GetSyncInitialDelay() time.Duration
	GetSyncLogPath() string
	GetArchiveThresholdDays() int
	GetArchiveInterval() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinIOMaxFileSize      int64
	MinioBucketDNPhotos   string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	GoogleCredentialsJSON string
	SpreadsheetID         string
	SheetPrefix           string
	SheetWriteTimeout     time.Duration
	SyncInterval          time.Duration
	SyncInitialDelay      time.Duration
	SyncLogPath           string
	ArchiveThresholdDays  int
	ArchiveInterval       time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string       { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string      { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string      { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool           { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64     { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketDNPhotos() string { return c.MinioBucketDNPhotos }
func (c *Config) IsMinIOEnabled() bool           { return c.MinIOEndpoint != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SheetsConfig implementation
func (c *Config) GetGoogleCredentialsJSON() string     { return c.GoogleCredentialsJSON }
func (c *Config) GetSpreadsheetID() string             { return c.SpreadsheetID }
func (c *Config) GetSheetPrefix() string               { return c.SheetPrefix }
func (c *Config) GetSheetWriteTimeout() time.Duration { return c.SheetWriteTimeout }

// SyncConfig implementation
func (c *Config) GetSyncInterval() time.Duration     { return c.SyncInterval }
func (c *Config) GetSyncInitialDelay() time.Duration { return c.SyncInitialDelay }
func (c *Config) GetSyncLogPath() string             { return c.SyncLogPath }
func (c *Config) GetArchiveThresholdDays() int       { return c.ArchiveThresholdDays }
func (c *Config) GetArchiveInterval() time.Duration  { return c.ArchiveInterval }

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:      mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "10485760")),
		MinioBucketDNPhotos:   getEnv("MINIO_BUCKET_DN_PHOTOS", "dn-photos"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		GoogleCredentialsJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_CREDENTIALS", ""),
		SpreadsheetID:         getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetPrefix:           getEnv("DN_SHEET_PREFIX", "Plan MOS"),
		SheetWriteTimeout:     mustDuration(getEnv("DN_SHEET_WRITE_TIMEOUT", "15s")),
		SyncInterval:          mustDuration(getEnv("DN_SYNC_INTERVAL", "300s")),
		SyncInitialDelay:      mustDuration(getEnv("DN_SYNC_INITIAL_DELAY", "5s")),
		SyncLogPath:           getEnv("DN_SYNC_LOG_PATH", "/tmp/dn_sync.log"),
		ArchiveThresholdDays:  mustInt(getEnv("DN_ARCHIVE_THRESHOLD_DAYS", "7")),
		ArchiveInterval:       mustDuration(getEnv("DN_ARCHIVE_INTERVAL", "24h")),
	}

	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = SpreadsheetIDFromURL(getEnv("GOOGLE_SPREADSHEET_URL", ""))
	}
	if strings.EqualFold(getEnv("DATABASE_REQUIRE_SSL", "false"), "true") {
		cfg.DatabaseURL = requireSSL(cfg.DatabaseURL)
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTAccessSecret == "" {
		missing = append(missing, "JWT_ACCESS_SECRET")
	}
	if cfg.GoogleCredentialsJSON == "" {
		missing = append(missing, "GOOGLE_SERVICE_ACCOUNT_CREDENTIALS")
	}
	if cfg.SpreadsheetID == "" {
		missing = append(missing, "GOOGLE_SPREADSHEET_URL")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing env variables: %s", strings.Join(missing, ", "))
	}

	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("DN_SYNC_INTERVAL must be a positive duration")
	}
	if cfg.ArchiveThresholdDays < 0 {
		return nil, fmt.Errorf("DN_ARCHIVE_THRESHOLD_DAYS must be non-negative")
	}

	return cfg, nil
}

// SpreadsheetIDFromURL extracts the document ID from a Google Sheets URL.
// A bare ID is returned unchanged.
func SpreadsheetIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := spreadsheetIDPattern.FindStringSubmatch(raw); len(m) == 2 {
		return m[1]
	}
	if strings.Contains(raw, "/") {
		return ""
	}
	return raw
}

func requireSSL(databaseURL string) string {
	if databaseURL == "" || strings.Contains(databaseURL, "sslmode=") {
		return databaseURL
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return databaseURL
	}
	q := u.Query()
	q.Set("sslmode", "require")
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
