package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds process-level configuration for the API and CLI binaries.
// Backtest run parameters themselves live in backtest.Config; this Config
// governs the surrounding process (HTTP server, results store, logging).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	RunsPerSecond      float64       `mapstructure:"runs_per_second"`
	RunsBurst          int           `mapstructure:"runs_burst"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig holds the results store's connection settings.
type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	MaxConns    int           `mapstructure:"max_conns"`
	MinConns    int           `mapstructure:"min_conns"`
	MaxConnLife time.Duration `mapstructure:"max_conn_life"`
}

// BacktestConfig holds process-wide defaults applied when a run request
// doesn't specify them explicitly.
type BacktestConfig struct {
	DefaultCash           float64 `mapstructure:"default_cash"`
	DefaultCommissionRate float64 `mapstructure:"default_commission_rate"`
	DefaultMinCommission  float64 `mapstructure:"default_min_commission"`
	DefaultSlippageBps    float64 `mapstructure:"default_slippage_bps"`
	DefaultStampTaxRate   float64 `mapstructure:"default_stamp_tax_rate"`
	MetricsNamespace      string  `mapstructure:"metrics_namespace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" or "console"
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from the given YAML file, applying defaults
// first and environment variable overrides (BT_ prefix) last.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("BT")
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if v.IsSet("DB_HOST") {
		config.Database.Host = v.GetString("DB_HOST")
	}
	if v.IsSet("DB_PORT") {
		config.Database.Port = v.GetInt("DB_PORT")
	}
	if v.IsSet("DB_USER") {
		config.Database.User = v.GetString("DB_USER")
	}
	if v.IsSet("DB_PASSWORD") {
		config.Database.Password = v.GetString("DB_PASSWORD")
	}
	if v.IsSet("DB_NAME") {
		config.Database.Database = v.GetString("DB_NAME")
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.runs_per_second", 1.0)
	v.SetDefault("server.runs_burst", 5)
	v.SetDefault("server.cors_allowed_origins", "*")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "backtest")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "backtest_results")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_life", 5*time.Minute)

	v.SetDefault("backtest.default_cash", 100000.0)
	v.SetDefault("backtest.default_commission_rate", 0.0005)
	v.SetDefault("backtest.default_min_commission", 5.0)
	v.SetDefault("backtest.default_slippage_bps", 1.0)
	v.SetDefault("backtest.default_stamp_tax_rate", 0.001)
	v.SetDefault("backtest.metrics_namespace", "backtest")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", time.RFC3339)
}

// ConnectionString returns a PostgreSQL connection string for the results
// store.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// Defaults returns a backtest.Config-shaped default set, expressed as plain
// values so internal/backtest need not import internal/config.
func (c *BacktestConfig) Defaults() (cash, commissionRate, minCommission, slippageBps, stampTaxRate float64) {
	return c.DefaultCash, c.DefaultCommissionRate, c.DefaultMinCommission, c.DefaultSlippageBps, c.DefaultStampTaxRate
}
