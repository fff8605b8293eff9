package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Supported values of DATA_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath  string
	DatabaseURL   string
	DBMaxConns    int
	DBMinConns    int
	CaseListLimit int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Scheduled report exports
	ReportSchedule string
	ReportDir      string
	ReportOwners   []string
	ReportTimezone string

	// Seed data for the memory backend
	SeedDir string

	// Per-owner case view cache
	CacheTTL  time.Duration
	CacheSize int
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", BackendMemory),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/casebook.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:    getEnvInt("DB_MIN_CONNS", 1),
		CaseListLimit: getEnvInt("CASE_LIST_LIMIT", 1000),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "casebook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "case_events"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Cases"),

		ReportSchedule: getEnv("REPORT_SCHEDULE", "0 2 1 * *"),
		ReportDir:      getEnv("REPORT_DIR", "./data/reports"),
		ReportOwners:   getEnvList("REPORT_OWNERS"),
		ReportTimezone: getEnv("REPORT_TIMEZONE", "UTC"),

		SeedDir: getEnv("SEED_DIR", "./data"),

		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 256),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
		if c.DBMaxConns < 1 {
			errors = append(errors, fmt.Sprintf("invalid DB_MAX_CONNS %d: must be at least 1", c.DBMaxConns))
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			errors = append(errors, fmt.Sprintf("invalid DB_MIN_CONNS %d: must be between 0 and DB_MAX_CONNS", c.DBMinConns))
		}
	}

	if c.CaseListLimit < 1 || c.CaseListLimit > 1000 {
		errors = append(errors, fmt.Sprintf("invalid case list limit %d: must be between 1 and 1000", c.CaseListLimit))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReportSchedule != "" {
		if _, err := cron.ParseStandard(c.ReportSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid report schedule '%s': %v", c.ReportSchedule, err))
		}
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid report timezone '%s': %v", c.ReportTimezone, err))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location returns the report time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
