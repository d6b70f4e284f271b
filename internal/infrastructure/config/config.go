package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Oracle    OracleConfig
	Matching  MatchingConfig
	Telemetry TelemetryConfig
}

// AppConfig identifies the service instance.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds postgres connection and pool settings. Lifetime and
// idle time are in minutes.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or a file path
}

// HTTPConfig holds server timeouts and CORS policy.
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// OracleConfig holds settings for the text-generation matching oracle.
type OracleConfig struct {
	Enabled    bool
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// MatchingConfig holds reconciliation run settings.
type MatchingConfig struct {
	RunLockTTL time.Duration
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64 // 0.0 to 1.0
	ServiceName       string
	Insecure          bool
}

// Load reads configuration in ascending priority: built-in defaults, then
// config.toml, then ARFLOW_-prefixed environment variables (for example
// ARFLOW_DATABASE_PASSWORD overrides database.password).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is fine; env vars and defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ARFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Oracle: OracleConfig{
			Enabled:    v.GetBool("oracle.enabled"),
			Endpoint:   v.GetString("oracle.endpoint"),
			APIKey:     v.GetString("oracle.api_key"),
			Model:      v.GetString("oracle.model"),
			Timeout:    v.GetDuration("oracle.timeout"),
			MaxRetries: v.GetInt("oracle.max_retries"),
		},
		Matching: MatchingConfig{
			RunLockTTL: v.GetDuration("matching.run_lock_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fallbackString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func fallbackInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

func fallbackDuration(field *time.Duration, value time.Duration) {
	if *field == 0 {
		*field = value
	}
}

// setDefaults fills zero-valued fields. A zero value from the environment is
// indistinguishable from "not set" and also falls back.
func (c *Config) setDefaults() {
	fallbackString(&c.App.Name, "arflow-backend")
	fallbackString(&c.App.Env, "development")
	fallbackString(&c.App.Port, "8080")

	fallbackString(&c.Database.Host, "localhost")
	fallbackInt(&c.Database.Port, 5432)
	fallbackString(&c.Database.User, "postgres")
	fallbackString(&c.Database.DBName, "arflow")
	fallbackString(&c.Database.SSLMode, "disable")
	fallbackInt(&c.Database.MaxOpenConns, 25)
	fallbackInt(&c.Database.MaxIdleConns, 5)
	fallbackInt(&c.Database.ConnMaxLifetime, 60)
	fallbackInt(&c.Database.ConnMaxIdleTime, 30)

	fallbackString(&c.Redis.Host, "localhost")
	fallbackInt(&c.Redis.Port, 6379)

	fallbackString(&c.Log.Level, "info")
	fallbackString(&c.Log.Format, "console")
	fallbackString(&c.Log.Output, "stdout")

	fallbackDuration(&c.HTTP.ReadTimeout, 15*time.Second)
	fallbackDuration(&c.HTTP.WriteTimeout, 15*time.Second)
	fallbackDuration(&c.HTTP.IdleTimeout, 60*time.Second)
	fallbackInt(&c.HTTP.MaxHeaderBytes, 1<<20)
	// CORS origins deliberately stay empty until configured; an empty list
	// rejects every cross-origin request.
	if len(c.HTTP.CORSAllowMethods) == 0 {
		c.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(c.HTTP.CORSAllowHeaders) == 0 {
		c.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}

	fallbackString(&c.Oracle.Model, "gpt-4o-mini")
	// The oracle gets a short budget: a slow or flaky endpoint must not
	// stall a matching run, and a failed call just falls through to
	// needs_review. Retries are opt-in.
	fallbackDuration(&c.Oracle.Timeout, 5*time.Second)

	fallbackDuration(&c.Matching.RunLockTTL, 10*time.Minute)

	fallbackString(&c.Telemetry.CollectorEndpoint, "localhost:4317")
	if c.Telemetry.SamplingRatio == 0 {
		c.Telemetry.SamplingRatio = 1.0
	}
	fallbackString(&c.Telemetry.ServiceName, "arflow-backend")
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Oracle.Enabled && c.Oracle.Endpoint == "" {
		return fmt.Errorf("oracle.endpoint is required when the oracle is enabled")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

// validateProduction enforces settings that are unsafe to leave loose
// outside development.
func (c *Config) validateProduction() error {
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database.sslmode cannot be 'disable' in production")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}
	if c.Oracle.Enabled && c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle.api_key is required when the oracle is enabled in production")
	}
	return nil
}

// DSN renders a postgres connection URL with escaped credentials.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
