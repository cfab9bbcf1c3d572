package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderAPIKey is the value shipped in the sample config
const PlaceholderAPIKey = "YOUR_API_KEY"

// Config holds all application configuration
type Config struct {
	Paths         PathsConfig
	ShipStation   AccountConfig
	ShipStationCA AccountConfig
	Sage          SageConfig
	Settings      SettingsConfig
	ShipFrom      ShipFromConfig
	Log           LogConfig
	Metrics       MetricsConfig
	Telemetry     TelemetryConfig

	// File is the config file that was read, empty when none was found
	File string
}

// PathsConfig holds the shared-drive folders
type PathsConfig struct {
	QuikPAKIn          string
	QuikPAKInProcessed string
	QuikPAKInError     string
	QuikPAKOut         string
	QuikPAKPending     string
	LogDir             string
}

// AccountConfig holds the credentials of one ShipStation account
type AccountConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	StoreID   *int
}

// Configured returns true if the account has an API key
func (a AccountConfig) Configured() bool {
	return a.APIKey != ""
}

// SageConfig holds the Sage 300 database connection settings
type SageConfig struct {
	Driver   string // sqlserver, postgres
	Server   string
	Port     int
	Database string
	Username string
	Password string
	DSN      string // overrides the fields above when set
}

// Enabled returns true if a lookup database is configured
func (s SageConfig) Enabled() bool {
	return s.DSN != "" || (s.Server != "" && s.Database != "")
}

// SettingsConfig holds run tunables
type SettingsConfig struct {
	RetryAttempts      int
	RetryDelay         time.Duration
	RequestTimeout     time.Duration
	RequestsPerMinute  int
	Flow2StateFile     string
	FirstPollLookback  time.Duration
	ForeignCountry     string
	HoldingTankBackend string // file, sqlite
	PageSize           int
}

// ShipFromConfig is the warehouse address echoed in outbound headers
type ShipFromConfig struct {
	AccountNo string
	Name      string
	Addr1     string
	Addr2     string
	Addr3     string
	Addr4     string
	City      string
	State     string
	Zip       string
	Country   string
	Contact   string
	Phone     string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// MetricsConfig holds run metrics output settings
type MetricsConfig struct {
	Textfile string // node-exporter textfile path, empty disables
}

// TelemetryConfig holds OpenTelemetry trace export settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	Insecure          bool
}

// Load loads configuration from a TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with QPSS_ prefix (e.g., QPSS_SHIPSTATION_API_SECRET)
// 2. .env.local, .env next to the working directory
// 3. config.toml
// 4. Built-in defaults
//
// An empty path searches for config.toml in the working directory.
func Load(path string, dryRun bool) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")

	v.SetEnvPrefix("QPSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	domesticStore, err := parseStoreID(v.GetString("shipstation.store_id"))
	if err != nil {
		return nil, fmt.Errorf("shipstation.store_id: %w", err)
	}
	foreignStore, err := parseStoreID(v.GetString("shipstation_ca.store_id"))
	if err != nil {
		return nil, fmt.Errorf("shipstation_ca.store_id: %w", err)
	}

	cfg := &Config{
		File: v.ConfigFileUsed(),
		Paths: PathsConfig{
			QuikPAKIn:          v.GetString("paths.quikpak_in"),
			QuikPAKInProcessed: v.GetString("paths.quikpak_in_processed"),
			QuikPAKInError:     v.GetString("paths.quikpak_in_error"),
			QuikPAKOut:         v.GetString("paths.quikpak_out"),
			QuikPAKPending:     v.GetString("paths.quikpak_pending"),
			LogDir:             v.GetString("paths.log_dir"),
		},
		ShipStation: AccountConfig{
			APIKey:    v.GetString("shipstation.api_key"),
			APISecret: v.GetString("shipstation.api_secret"),
			BaseURL:   v.GetString("shipstation.base_url"),
			StoreID:   domesticStore,
		},
		ShipStationCA: AccountConfig{
			APIKey:    v.GetString("shipstation_ca.api_key"),
			APISecret: v.GetString("shipstation_ca.api_secret"),
			BaseURL:   v.GetString("shipstation_ca.base_url"),
			StoreID:   foreignStore,
		},
		Sage: SageConfig{
			Driver:   v.GetString("sage300.driver"),
			Server:   v.GetString("sage300.server"),
			Port:     v.GetInt("sage300.port"),
			Database: v.GetString("sage300.database"),
			Username: v.GetString("sage300.username"),
			Password: v.GetString("sage300.password"),
			DSN:      v.GetString("sage300.dsn"),
		},
		Settings: SettingsConfig{
			RetryAttempts:      v.GetInt("settings.retry_attempts"),
			RetryDelay:         v.GetDuration("settings.retry_delay"),
			RequestTimeout:     v.GetDuration("settings.request_timeout"),
			RequestsPerMinute:  v.GetInt("settings.requests_per_minute"),
			Flow2StateFile:     v.GetString("settings.flow2_state_file"),
			FirstPollLookback:  v.GetDuration("settings.first_poll_lookback"),
			ForeignCountry:     v.GetString("settings.foreign_country"),
			HoldingTankBackend: v.GetString("settings.holding_tank_backend"),
			PageSize:           v.GetInt("settings.page_size"),
		},
		ShipFrom: ShipFromConfig{
			AccountNo: v.GetString("ship_from.account_no"),
			Name:      v.GetString("ship_from.name"),
			Addr1:     v.GetString("ship_from.addr1"),
			Addr2:     v.GetString("ship_from.addr2"),
			Addr3:     v.GetString("ship_from.addr3"),
			Addr4:     v.GetString("ship_from.addr4"),
			City:      v.GetString("ship_from.city"),
			State:     v.GetString("ship_from.state"),
			Zip:       v.GetString("ship_from.zip"),
			Country:   v.GetString("ship_from.country"),
			Contact:   v.GetString("ship_from.contact"),
			Phone:     v.GetString("ship_from.phone"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics: MetricsConfig{
			Textfile: v.GetString("metrics.textfile"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	// retry_delay_seconds is the older integer form of retry_delay
	if cfg.Settings.RetryDelay == 0 {
		if secs := v.GetInt("settings.retry_delay_seconds"); secs > 0 {
			cfg.Settings.RetryDelay = time.Duration(secs) * time.Second
		}
	}

	applyDefaults(cfg)

	if err := cfg.validate(dryRun); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles loads credentials from .env files. Variables already set win,
// and .env.local is read first so it overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

func parseStoreID(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid store id %q", s)
	}
	return &id, nil
}

// baseDir is where relative defaults are anchored: the config file's folder
func (c *Config) baseDir() string {
	if c.File != "" {
		return filepath.Dir(c.File)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	base := cfg.baseDir()
	if cfg.Paths.QuikPAKPending == "" {
		cfg.Paths.QuikPAKPending = filepath.Join(base, "QuikPAK", "Pending")
	}
	if cfg.Settings.Flow2StateFile == "" {
		cfg.Settings.Flow2StateFile = filepath.Join(base, "flow2_state.json")
	}
	if cfg.ShipStation.BaseURL == "" {
		cfg.ShipStation.BaseURL = "https://ssapi.shipstation.com"
	}
	if cfg.ShipStationCA.BaseURL == "" {
		cfg.ShipStationCA.BaseURL = cfg.ShipStation.BaseURL
	}
	if cfg.Sage.Driver == "" {
		cfg.Sage.Driver = "sqlserver"
	}
	if cfg.Sage.Port == 0 {
		if cfg.Sage.Driver == "postgres" {
			cfg.Sage.Port = 5432
		} else {
			cfg.Sage.Port = 1433
		}
	}
	if cfg.Settings.RetryAttempts == 0 {
		cfg.Settings.RetryAttempts = 3
	}
	if cfg.Settings.RetryDelay == 0 {
		cfg.Settings.RetryDelay = 5 * time.Second
	}
	if cfg.Settings.RequestTimeout == 0 {
		cfg.Settings.RequestTimeout = 30 * time.Second
	}
	if cfg.Settings.RequestsPerMinute == 0 {
		cfg.Settings.RequestsPerMinute = 40
	}
	if cfg.Settings.FirstPollLookback == 0 {
		cfg.Settings.FirstPollLookback = 7 * 24 * time.Hour
	}
	if cfg.Settings.ForeignCountry == "" {
		cfg.Settings.ForeignCountry = "CA"
	}
	if cfg.Settings.HoldingTankBackend == "" {
		cfg.Settings.HoldingTankBackend = "file"
	}
	if cfg.Settings.PageSize == 0 {
		cfg.Settings.PageSize = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// validate performs validation on the configuration
func (c *Config) validate(dryRun bool) error {
	required := []struct{ key, value string }{
		{"paths.quikpak_in", c.Paths.QuikPAKIn},
		{"paths.quikpak_in_processed", c.Paths.QuikPAKInProcessed},
		{"paths.quikpak_in_error", c.Paths.QuikPAKInError},
		{"paths.log_dir", c.Paths.LogDir},
		{"shipstation.api_key", c.ShipStation.APIKey},
		{"shipstation.api_secret", c.ShipStation.APISecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing %s in config", r.key)
		}
	}

	if !dryRun && c.ShipStation.APIKey == PlaceholderAPIKey {
		return fmt.Errorf("replace %s in shipstation.api_key with your ShipStation API key", PlaceholderAPIKey)
	}
	if c.ShipStationCA.Configured() && c.ShipStationCA.APISecret == "" {
		return fmt.Errorf("shipstation_ca.api_secret is required when shipstation_ca.api_key is set")
	}

	if c.Settings.RetryAttempts < 1 {
		return fmt.Errorf("settings.retry_attempts must be at least 1, got %d", c.Settings.RetryAttempts)
	}
	if c.Settings.RequestsPerMinute < 0 {
		return fmt.Errorf("settings.requests_per_minute cannot be negative")
	}
	if c.Settings.PageSize < 1 || c.Settings.PageSize > 500 {
		return fmt.Errorf("settings.page_size must be between 1 and 500, got %d", c.Settings.PageSize)
	}
	switch c.Settings.HoldingTankBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("settings.holding_tank_backend must be file or sqlite, got %q", c.Settings.HoldingTankBackend)
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}
	switch c.Sage.Driver {
	case "sqlserver", "postgres":
	default:
		return fmt.Errorf("sage300.driver must be sqlserver or postgres, got %q", c.Sage.Driver)
	}

	return nil
}

// DataSourceName returns the lookup database connection string with properly escaped values
func (s *SageConfig) DataSourceName() string {
	if s.DSN != "" {
		return s.DSN
	}
	u := url.URL{
		Scheme: s.Driver,
		Host:   fmt.Sprintf("%s:%d", s.Server, s.Port),
	}
	if s.Username != "" {
		u.User = url.UserPassword(s.Username, s.Password)
	}
	q := u.Query()
	if s.Driver == "postgres" {
		u.Path = s.Database
		q.Set("sslmode", "disable")
	} else {
		q.Set("database", s.Database)
		q.Set("app name", "qpss")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
