package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"apbn/internal/loader"
	"apbn/internal/sheets"
	"apbn/internal/sheets/google"
	"apbn/internal/sheets/memory"
	"apbn/internal/sheets/object"
)

// DefaultSources is the stock five-year APBN file set.
const DefaultSources = "2012=realisasi-apbn-2012.xlsx,2013=realisasi-apbn-2013.xlsx," +
	"2014=realisasi-apbn-2014.xlsx,2015=realisasi-apbn-2015.xlsx,2016=realisasi-apbn-2016.xlsx"

type Config struct {
	// HTTP Server
	Port           string
	TrustedProxies []string

	// Sources
	DataDir           string
	SourceList        string
	StrictFileColumns bool
	LoadConcurrency   int

	// Load log
	SQLiteDBPath string

	// AMQP (optional)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets sources
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Dashboard cache
	CacheTTL  time.Duration
	CacheSize int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),

		DataDir:           getEnv("DATA_DIR", "."),
		SourceList:        getEnv("APBN_SOURCES", DefaultSources),
		StrictFileColumns: getEnvBool("STRICT_FILE_COLUMNS", false),
		LoadConcurrency:   getEnvInt("LOAD_CONCURRENCY", 4),

		SQLiteDBPath: getEnvAllowEmpty("SQLITE_DB_PATH", "./data/apbn.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "apbn"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "load.completed"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 100),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Sources parses the configured year=location list, keeping its order.
func (c *Config) Sources() ([]loader.Source, error) {
	return loader.ParseSources(c.SourceList)
}

// UsesGoogleSheets reports whether any configured source is a Google sheet.
func (c *Config) UsesGoogleSheets() bool {
	return c.UsesScheme(google.Scheme)
}

// UsesScheme reports whether any configured source has the given scheme.
func (c *Config) UsesScheme(scheme string) bool {
	sources, err := c.Sources()
	if err != nil {
		return false
	}
	for _, s := range sources {
		if got, _, ok := sheets.SplitScheme(s.Location); ok && got == scheme {
			return true
		}
	}
	return false
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// Validate sources
	sources, err := c.Sources()
	if err != nil {
		errors = append(errors, fmt.Sprintf("invalid APBN_SOURCES: %v", err))
	}
	for _, s := range sources {
		scheme, _, ok := sheets.SplitScheme(s.Location)
		if !ok {
			continue
		}
		switch scheme {
		case "file", google.Scheme, memory.Scheme:
		case object.SchemeGCS, object.SchemeS3:
			if _, _, err := object.ParseLocation(scheme, s.Location); err != nil {
				errors = append(errors, fmt.Sprintf("year %s: %v", s.Year, err))
			}
		default:
			errors = append(errors, fmt.Sprintf("unsupported source scheme '%s' for year %s", scheme, s.Year))
		}
	}
	if info, err := os.Stat(c.DataDir); err != nil {
		errors = append(errors, fmt.Sprintf("data directory '%s' is not accessible: %v", c.DataDir, err))
	} else if !info.IsDir() {
		errors = append(errors, fmt.Sprintf("data directory '%s' is not a directory", c.DataDir))
	}

	if c.LoadConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid load concurrency %d: must be at least 1", c.LoadConcurrency))
	} else if c.LoadConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid load concurrency %d: must be at most 64", c.LoadConcurrency))
	}

	// Validate SQLite path; empty disables the load log
	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	// Google credentials are only needed when a gsheets:// source is configured
	if c.UsesGoogleSheets() {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for gsheets:// sources")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate cache
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}

	// Validate logging
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
