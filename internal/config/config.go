package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"matpulse/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Index     IndexConfig     `mapstructure:"index"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the batch cadences.
type SchedulerConfig struct {
	AlertCron  string        `mapstructure:"alert_cron"`
	IndexCron  string        `mapstructure:"index_cron"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// IndexConfig holds the composite index category weights and the window
// within which a material's price may stand in for the target date.
type IndexConfig struct {
	Weights    map[string]float64 `mapstructure:"weights"`
	WindowDays int                `mapstructure:"window_days"`
}

// ForecastConfig bounds the history fed to the baseline forecaster.
type ForecastConfig struct {
	MaxLookback int `mapstructure:"max_lookback"`
}

// AlertingConfig defines alert dispatch behaviour and transports.
type AlertingConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	SendTimeout time.Duration  `mapstructure:"send_timeout"`
	Email       EmailConfig    `mapstructure:"email"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	WhatsApp    WhatsAppConfig `mapstructure:"whatsapp"`
}

// EmailConfig describes the HTTP mail relay transport.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	RelayURL string `mapstructure:"relay_url"`
	APIKey   string `mapstructure:"api_key"`
	From     string `mapstructure:"from"`
	Subject  string `mapstructure:"subject"`
}

// TelegramConfig describes the Telegram bot transport.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// WhatsAppConfig describes the WhatsApp gateway transport.
type WhatsAppConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	GatewayURL string `mapstructure:"gateway_url"`
	Token      string `mapstructure:"token"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// MetricsConfig exposes the prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MATPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "matpulse")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.alert_cron", "0 * * * *")
	v.SetDefault("scheduler.index_cron", "15 0 * * *")
	v.SetDefault("scheduler.job_timeout", "15m")

	v.SetDefault("index.weights", map[string]float64{
		"metals":      0.4,
		"energy":      0.3,
		"agriculture": 0.3,
	})
	v.SetDefault("index.window_days", 7)

	v.SetDefault("forecast.max_lookback", 365)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.send_timeout", "10s")
	v.SetDefault("alerting.email.enabled", false)
	v.SetDefault("alerting.email.subject", "Price alert")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.whatsapp.enabled", false)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("scheduler.job_timeout must be greater than zero")
	}
	if c.Index.WindowDays <= 0 {
		return fmt.Errorf("index.window_days must be greater than zero")
	}
	if c.Forecast.MaxLookback <= 0 {
		return fmt.Errorf("forecast.max_lookback must be greater than zero")
	}
	if err := c.validateWeights(); err != nil {
		return err
	}
	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.RelayURL == "" {
			return fmt.Errorf("alerting.email.relay_url is required when email is enabled")
		}
		if c.Alerting.Email.From == "" {
			return fmt.Errorf("alerting.email.from is required when email is enabled")
		}
	}
	if c.Alerting.Telegram.Enabled && c.Alerting.Telegram.BotToken == "" {
		return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
	}
	if c.Alerting.WhatsApp.Enabled && c.Alerting.WhatsApp.GatewayURL == "" {
		return fmt.Errorf("alerting.whatsapp.gateway_url is required when whatsapp is enabled")
	}
	return nil
}

// validateWeights insists the category weights form a proper partition.
func (c *Config) validateWeights() error {
	if len(c.Index.Weights) == 0 {
		return fmt.Errorf("index.weights must define at least one category")
	}
	sum := 0.0
	for category, weight := range c.Index.Weights {
		if weight < 0 {
			return fmt.Errorf("index.weights.%s cannot be negative", category)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("index.weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// IndexWindow converts the configured day window into a duration.
func (c *Config) IndexWindow() time.Duration {
	return time.Duration(c.Index.WindowDays) * 24 * time.Hour
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
