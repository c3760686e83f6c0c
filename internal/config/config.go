package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cfocopilot/internal/core"

	"github.com/spf13/viper"
)

// Backends lists the accepted DATA_BACKEND values.
var Backends = []string{"memory", "xlsx", "sheets", "sqlite", "postgres"}

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	LogLevel string

	// Backend selection
	DataBackend string

	// Memory backend (CSV files)
	DataDir string

	// Excel workbook
	XLSXPath string

	// Database
	SQLiteDBPath string
	DatabaseURL  string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Table names per source (tab, CSV stem or database table)
	SheetActuals string
	SheetBudget  string
	SheetCash    string
	SheetFX      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Periodic reload as a fallback for missed AMQP messages; 0 disables.
	ReloadInterval time.Duration

	// Metrics
	RunwayWindowMonths int
	TrendWindowMonths  int

	// Classifier
	ClassifierRulesFile string

	// Result cache
	ResultCacheSize int
	ResultCacheTTL  time.Duration

	RateLimitPerMinute int
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("data_backend", "memory")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("xlsx_path", "./data/data.xlsx")
	v.SetDefault("sqlite_db_path", "./data/cfo.db")
	v.SetDefault("database_url", "")
	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_service_account_json", "")
	v.SetDefault("google_service_account_file", "")
	v.SetDefault("sheet_actuals", "actuals")
	v.SetDefault("sheet_budget", "budget")
	v.SetDefault("sheet_cash", "cash")
	v.SetDefault("sheet_fx", "fx")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "cfocopilot")
	v.SetDefault("amqp_queue", "ledger_reload")
	v.SetDefault("reload_interval", time.Duration(0))
	v.SetDefault("runway_window_months", 3)
	v.SetDefault("trend_window_months", 3)
	v.SetDefault("classifier_rules_file", "")
	v.SetDefault("result_cache_size", 256)
	v.SetDefault("result_cache_ttl", 10*time.Minute)
	v.SetDefault("rate_limit_per_minute", 60)
}

// Load reads defaults, then the optional file named by CFO_CONFIG, then
// environment variables (PORT, DATA_BACKEND, ...), later sources winning.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)

	if path := strings.TrimSpace(os.Getenv("CFO_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	return &Config{
		Port:            v.GetString("port"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		LogLevel:        v.GetString("log_level"),

		DataBackend:  strings.ToLower(strings.TrimSpace(v.GetString("data_backend"))),
		DataDir:      v.GetString("data_dir"),
		XLSXPath:     v.GetString("xlsx_path"),
		SQLiteDBPath: v.GetString("sqlite_db_path"),
		DatabaseURL:  v.GetString("database_url"),

		GoogleSpreadsheetID:      v.GetString("google_spreadsheet_id"),
		GoogleServiceAccountJSON: v.GetString("google_service_account_json"),
		GoogleServiceAccountFile: v.GetString("google_service_account_file"),

		SheetActuals: v.GetString("sheet_actuals"),
		SheetBudget:  v.GetString("sheet_budget"),
		SheetCash:    v.GetString("sheet_cash"),
		SheetFX:      v.GetString("sheet_fx"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		ReloadInterval: v.GetDuration("reload_interval"),

		RunwayWindowMonths: v.GetInt("runway_window_months"),
		TrendWindowMonths:  v.GetInt("trend_window_months"),

		ClassifierRulesFile: v.GetString("classifier_rules_file"),

		ResultCacheSize: v.GetInt("result_cache_size"),
		ResultCacheTTL:  v.GetDuration("result_cache_ttl"),

		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
	}, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range Backends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "memory":
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using memory backend")
		}
	case "xlsx":
		if c.XLSXPath == "" {
			errors = append(errors, "workbook path cannot be empty when using xlsx backend")
		} else if _, err := os.Stat(c.XLSXPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("workbook does not exist: %s", c.XLSXPath))
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
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

	if c.ReloadInterval != 0 && (c.ReloadInterval < 10*time.Second || c.ReloadInterval > 24*time.Hour) {
		errors = append(errors, fmt.Sprintf("invalid reload interval %v: must be 0 or between 10 seconds and 24 hours", c.ReloadInterval))
	}

	if c.RunwayWindowMonths < 1 || c.RunwayWindowMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid runway window %d: must be between 1 and 24 months", c.RunwayWindowMonths))
	}
	if c.TrendWindowMonths < 1 || c.TrendWindowMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid trend window %d: must be between 1 and 24 months", c.TrendWindowMonths))
	}

	if c.ClassifierRulesFile != "" {
		if _, err := os.Stat(c.ClassifierRulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("classifier rules file does not exist: %s", c.ClassifierRulesFile))
		}
	}

	if c.ResultCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid result cache size %d: must not be negative", c.ResultCacheSize))
	}
	if c.ResultCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid result cache ttl %v: must not be negative", c.ResultCacheTTL))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SheetNames maps the canonical table names to the configured ones.
func (c *Config) SheetNames() map[string]string {
	return map[string]string{
		core.SheetActuals: c.SheetActuals,
		core.SheetBudget:  c.SheetBudget,
		core.SheetCash:    c.SheetCash,
		core.SheetFX:      c.SheetFX,
	}
}
