package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mamadbah2/broiler/internal/apperror"
)

// Store drivers.
const (
	DriverMemory  = "memory"
	DriverMongoDB = "mongodb"
	DriverSQLite  = "sqlite"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	SQLite    SQLiteConfig
	Costs     CostsConfig
	Breeds    BreedsConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	LogLevel string
}

// StoreConfig selects the records store backend.
type StoreConfig struct {
	Driver string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
	// SnapshotReads enables snapshot sessions for aggregation (replica sets only).
	SnapshotReads bool
}

// SQLiteConfig holds settings for the SQLite store.
type SQLiteConfig struct {
	Path string
}

// CostsConfig holds the farm-wide cost rates used for cycle financials.
// FeedPricePerKg is an estimate applied to consumed feed, not a purchase price
// reconciled against the ledger.
type CostsConfig struct {
	Currency                      string
	FeedPricePerKg                float64
	DefaultLaborRatePerBirdPerDay float64
	ElectricityPerDay             float64
	RentPerDay                    float64
}

// BreedsConfig points at an optional YAML file of extra growth curves.
type BreedsConfig struct {
	CurvesPath string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	VerifyToken     string
	BaseURL         string
	APIVersion      string
	ReportRecipient string
}

// Enabled reports whether outbound WhatsApp messaging is configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	ReportRange     string
}

// Enabled reports whether the Google Sheets report sink is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	Enabled      bool
	CronSchedule string
	Timezone     string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	p := &parser{}
	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "8080"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverMemory)),
		},
		MongoDB: MongoDBConfig{
			URI:           getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName:        getenvWithDefault("MONGODB_DB_NAME", "broiler"),
			SnapshotReads: p.bool("MONGODB_SNAPSHOT_READS", "false"),
		},
		SQLite: SQLiteConfig{
			Path: getenvWithDefault("SQLITE_PATH", "data/broiler.db"),
		},
		Costs: CostsConfig{
			Currency:                      getenvWithDefault("CURRENCY", "SAR"),
			FeedPricePerKg:                p.float("FEED_PRICE_PER_KG", "2"),
			DefaultLaborRatePerBirdPerDay: p.float("LABOR_RATE_PER_BIRD_PER_DAY", "0.01"),
			ElectricityPerDay:             p.float("ELECTRICITY_PER_DAY", "50"),
			RentPerDay:                    p.float("RENT_PER_DAY", "0"),
		},
		Breeds: BreedsConfig{
			CurvesPath: os.Getenv("BREED_CURVES_PATH"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:     os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ReportRecipient: os.Getenv("WHATSAPP_REPORT_RECIPIENT"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_REPORT_ID"),
			ReportRange:     getenvWithDefault("GOOGLE_SHEET_REPORT_RANGE", "Reports!A:N"),
		},
		Reporting: ReportingConfig{
			Enabled:      p.bool("REPORT_ENABLED", "true"),
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Asia/Riyadh"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	case DriverSQLite:
		if c.SQLite.Path == "" {
			return errors.New("SQLITE_PATH must be provided")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of memory, mongodb, sqlite", c.Store.Driver)
	}

	if err := c.Costs.Validate(); err != nil {
		return err
	}

	if c.WhatsApp.Enabled() {
		if c.WhatsApp.BaseURL == "" {
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		}
		if c.WhatsApp.APIVersion == "" {
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.ReportRange == "" {
		return errors.New("GOOGLE_SHEET_REPORT_RANGE must not be empty")
	}

	if c.Reporting.Enabled {
		if c.Reporting.CronSchedule == "" {
			return errors.New("REPORT_CRON_SCHEDULE must be provided")
		}
		if c.Reporting.Timezone == "" {
			return errors.New("TIMEZONE must be provided")
		}
	}

	return nil
}

// Validate rejects missing, negative or non-finite rates.
func (c CostsConfig) Validate() error {
	if !(c.FeedPricePerKg > 0) || math.IsInf(c.FeedPricePerKg, 0) {
		return apperror.InvalidConfiguration("feed_price_per_kg", "must be a positive number")
	}
	rates := []struct {
		field string
		value float64
	}{
		{"default_labor_rate_per_bird_per_day", c.DefaultLaborRatePerBirdPerDay},
		{"electricity_per_day", c.ElectricityPerDay},
		{"rent_per_day", c.RentPerDay},
	}
	for _, r := range rates {
		if !(r.value >= 0) || math.IsInf(r.value, 0) {
			return apperror.InvalidConfiguration(r.field, "must be a non-negative number")
		}
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parser records the first malformed numeric or boolean variable.
type parser struct {
	err error
}

func (p *parser) float(key, fallback string) float64 {
	raw := getenvWithDefault(key, fallback)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return v
}

func (p *parser) bool(key, fallback string) bool {
	raw := getenvWithDefault(key, fallback)
	v, err := strconv.ParseBool(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be true or false, got %q", key, raw)
	}
	return v
}
