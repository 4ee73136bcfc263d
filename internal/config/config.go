package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	defaultAddonSlug     = "finance_assistant"
	defaultSupervisorURL = "http://supervisor"
	defaultLocalHAURL    = "http://localhost:8123"
	devAddonURL          = "http://localhost:8000/api"
	addonAPIPort         = 8000
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Add-on connection
	AddonSlug           string
	AddonURL            string
	SupervisorURL       string
	SupervisorToken     string
	AddonSupervisorPath string
	RequestTimeout      time.Duration
	SetupRetryInterval  time.Duration

	// Home Assistant
	HAURL   string
	HAToken string

	// Coordinator and publishing
	ScanInterval       time.Duration
	TimeZone           string
	CurrencyUnit       string
	PublishConcurrency int
	PublishRate        float64
	StateRefreshTTL    time.Duration
	PriceCacheTTL      time.Duration
	EntityRulesFile    string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	HistoryRetention time.Duration
	ExportSchedule   string
	PruneSchedule    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	slug := getEnv("ADDON_SLUG", defaultAddonSlug)
	supervisorToken := getEnv("SUPERVISOR_TOKEN", "")

	cfg := &Config{
		Port:     getEnv("PORT", "8099"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AddonSlug:           slug,
		AddonURL:            getEnv("ADDON_URL", ""),
		SupervisorURL:       strings.TrimRight(getEnv("SUPERVISOR_URL", defaultSupervisorURL), "/"),
		SupervisorToken:     supervisorToken,
		AddonSupervisorPath: getEnv("ADDON_SUPERVISOR_PATH", "/addons/"+slug+"/api"),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		SetupRetryInterval:  getEnvDuration("SETUP_RETRY_INTERVAL", 30*time.Second),

		HAURL:   getEnv("HA_URL", ""),
		HAToken: getEnv("HA_TOKEN", ""),

		ScanInterval:       getEnvDuration("SCAN_INTERVAL", 5*time.Minute),
		TimeZone:           getEnv("TIME_ZONE", "Local"),
		CurrencyUnit:       getEnv("CURRENCY_UNIT", "$"),
		PublishConcurrency: getEnvInt("PUBLISH_CONCURRENCY", 4),
		PublishRate:        getEnvFloat("PUBLISH_RATE", 20),
		StateRefreshTTL:    getEnvDuration("STATE_REFRESH_TTL", time.Hour),
		PriceCacheTTL:      getEnvDuration("PRICE_CACHE_TTL", 30*time.Second),
		EntityRulesFile:    getEnv("ENTITY_RULES_FILE", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finance.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sensor_snapshots"),

		HistoryRetention: getEnvDuration("HISTORY_RETENTION", 90*24*time.Hour),
		ExportSchedule:   getEnv("EXPORT_SCHEDULE", "55 23 * * *"),
		PruneSchedule:    getEnv("PRUNE_SCHEDULE", "0 4 * * *"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Net Worth"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

// SupervisorAddonURL is the add-on API base reached through the Supervisor proxy.
func (c *Config) SupervisorAddonURL() string {
	return c.SupervisorURL + "/" + strings.TrimLeft(c.AddonSupervisorPath, "/")
}

// DirectAddonURL is the add-on API base used without the Supervisor proxy.
// Under the Supervisor the add-on is reachable by its slug hostname.
func (c *Config) DirectAddonURL(underSupervisor bool) string {
	if c.AddonURL != "" {
		return strings.TrimRight(c.AddonURL, "/")
	}
	if underSupervisor {
		return fmt.Sprintf("http://%s:%d/api", c.AddonSlug, addonAPIPort)
	}
	return devAddonURL
}

// HomeAssistant returns the Home Assistant base URL and token to use.
// Under the Supervisor the core API proxy and the Supervisor token are the defaults.
func (c *Config) HomeAssistant(underSupervisor bool) (string, string) {
	base, token := c.HAURL, c.HAToken
	if base == "" {
		if underSupervisor {
			base = c.SupervisorURL + "/core"
		} else {
			base = defaultLocalHAURL
		}
	}
	if token == "" && underSupervisor {
		token = c.SupervisorToken
	}
	return strings.TrimRight(base, "/"), token
}

// Location resolves TimeZone. "Local" and "" map to the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// SheetsEnabled reports whether the daily export has a destination.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// AMQPEnabled reports whether snapshots are routed through the broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
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

	if strings.TrimSpace(c.AddonSlug) == "" {
		errors = append(errors, "add-on slug cannot be empty")
	}

	for name, raw := range map[string]string{
		"add-on URL":         c.AddonURL,
		"Supervisor URL":     c.SupervisorURL,
		"Home Assistant URL": c.HAURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", name, raw, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", name, u.Scheme))
		}
	}

	if c.ScanInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid scan interval %v: must be at least 1 minute", c.ScanInterval))
	} else if c.ScanInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid scan interval %v: must be at most 24 hours", c.ScanInterval))
	}

	if c.RequestTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 1 second", c.RequestTimeout))
	}
	if c.SetupRetryInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid setup retry interval %v: must be at least 1 second", c.SetupRetryInterval))
	}

	if c.PublishConcurrency < 1 || c.PublishConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid publish concurrency %d: must be between 1 and 64", c.PublishConcurrency))
	}
	if c.PublishRate <= 0 {
		errors = append(errors, fmt.Sprintf("invalid publish rate %v: must be positive", c.PublishRate))
	}
	if c.StateRefreshTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid state refresh TTL %v: must be at least 1 minute", c.StateRefreshTTL))
	}
	if c.PriceCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid price cache TTL %v: must not be negative", c.PriceCacheTTL))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid time zone '%s': %v", c.TimeZone, err))
	}

	if c.EntityRulesFile != "" {
		if _, err := os.Stat(c.EntityRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("entity rules file does not exist: %s", c.EntityRulesFile))
		}
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.HistoryRetention < 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid history retention %v: must be at least 24 hours", c.HistoryRetention))
	}
	for name, spec := range map[string]string{"export": c.ExportSchedule, "prune": c.PruneSchedule} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s schedule '%s': %v", name, spec, err))
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheet export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
