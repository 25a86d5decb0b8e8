package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Supported artifact storage drivers
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Render    RenderConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite, mongo
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SQLitePath      string
	MongoURI        string
	MongoDatabase   string
	AutoMigrate     bool // create tables through gorm instead of the migrate CLI
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int

	SettingsLocalTTL  time.Duration
	SettingsSharedTTL time.Duration
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	IdleTimeout           time.Duration
	MaxHeaderBytes        int
	MaxBodySize           int64
	RateLimitEnabled      bool
	RateLimitRequests     int
	RateLimitWindow       time.Duration
	AuthRateLimitEnabled  bool
	AuthRateLimitRequests int
	AuthRateLimitWindow   time.Duration
	CORSAllowOrigins      []string
	CORSAllowMethods      []string
	CORSAllowHeaders      []string
	TrustedProxies        []string
}

// StorageConfig selects where rendered PDFs are kept
type StorageConfig struct {
	Driver            string // local, s3
	LocalPath         string
	BaseURL           string
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	S3Prefix          string

	// Orphan sweep: PDFs no report points at are removed periodically
	SweepEnabled     bool
	SweepInterval    time.Duration
	SweepGracePeriod time.Duration
	SweepMaxDeletes  int
}

// RenderConfig holds headless browser settings
type RenderConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	RemoteURL   string // ws:// URL of an already running Chrome; empty launches a local one
	ExecPath    string
	Headless    bool
	NoSandbox   bool
	PaperSize   string
	MarginMM    int
	LockTTL     time.Duration // per-report lock held while a saved report renders
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration

	MetricsEnabled        bool
	MetricsExportInterval time.Duration
	LogsEnabled           bool // ship zap logs to the collector as well as the local output

	ProfilingEnabled  bool
	ProfilerAddress   string   // e.g. http://pyroscope:4040
	ProfileTypes      []string // cpu, alloc_space, inuse_space, goroutines, mutex, block
	SpanProfiles      bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with REPORTS_ prefix (e.g., REPORTS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("REPORTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be told apart from "unset" after the fact.
	v.SetDefault("render.headless", true)
	v.SetDefault("render.no_sandbox", true)
	v.SetDefault("http.rate_limit_enabled", true)
	v.SetDefault("http.auth_rate_limit_enabled", true)
	v.SetDefault("storage.sweep_enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
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
			SQLitePath:      v.GetString("database.sqlite_path"),
			MongoURI:        v.GetString("database.mongo_uri"),
			MongoDatabase:   v.GetString("database.mongo_database"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),

			SettingsLocalTTL:  v.GetDuration("redis.settings_local_ttl"),
			SettingsSharedTTL: v.GetDuration("redis.settings_shared_ttl"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
			Issuer:     v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:           v.GetDuration("http.read_timeout"),
			WriteTimeout:          v.GetDuration("http.write_timeout"),
			IdleTimeout:           v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:        v.GetInt("http.max_header_bytes"),
			MaxBodySize:           v.GetInt64("http.max_body_size"),
			RateLimitEnabled:      v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests:     v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:       v.GetDuration("http.rate_limit_window"),
			AuthRateLimitEnabled:  v.GetBool("http.auth_rate_limit_enabled"),
			AuthRateLimitRequests: v.GetInt("http.auth_rate_limit_requests"),
			AuthRateLimitWindow:   v.GetDuration("http.auth_rate_limit_window"),
			CORSAllowOrigins:      v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:      v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:      v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:        v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Driver:            v.GetString("storage.driver"),
			LocalPath:         v.GetString("storage.local_path"),
			BaseURL:           v.GetString("storage.base_url"),
			S3Endpoint:        v.GetString("storage.s3_endpoint"),
			S3Region:          v.GetString("storage.s3_region"),
			S3Bucket:          v.GetString("storage.s3_bucket"),
			S3AccessKeyID:     v.GetString("storage.s3_access_key_id"),
			S3SecretAccessKey: v.GetString("storage.s3_secret_access_key"),
			S3UsePathStyle:    v.GetBool("storage.s3_use_path_style"),
			S3Prefix:          v.GetString("storage.s3_prefix"),

			SweepEnabled:     v.GetBool("storage.sweep_enabled"),
			SweepInterval:    v.GetDuration("storage.sweep_interval"),
			SweepGracePeriod: v.GetDuration("storage.sweep_grace_period"),
			SweepMaxDeletes:  v.GetInt("storage.sweep_max_deletes"),
		},
		Render: RenderConfig{
			Timeout:     v.GetDuration("render.timeout"),
			MaxAttempts: v.GetInt("render.max_attempts"),
			Backoff:     v.GetDuration("render.backoff"),
			RemoteURL:   v.GetString("render.remote_url"),
			ExecPath:    v.GetString("render.exec_path"),
			Headless:    v.GetBool("render.headless"),
			NoSandbox:   v.GetBool("render.no_sandbox"),
			PaperSize:   v.GetString("render.paper_size"),
			MarginMM:    v.GetInt("render.margin_mm"),
			LockTTL:     v.GetDuration("render.lock_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_thresh"),

			MetricsEnabled:        v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:           v.GetBool("telemetry.logs_enabled"),

			ProfilingEnabled: v.GetBool("telemetry.profiling_enabled"),
			ProfilerAddress:  v.GetString("telemetry.profiler_address"),
			ProfileTypes:     v.GetStringSlice("telemetry.profile_types"),
			SpanProfiles:     v.GetBool("telemetry.span_profiles"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "clinic-reports"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == "postgresql" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "medical_imaging"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "medical_imaging.db"
	}
	if cfg.Database.MongoURI == "" {
		cfg.Database.MongoURI = "mongodb://localhost:27017"
	}
	if cfg.Database.MongoDatabase == "" {
		cfg.Database.MongoDatabase = cfg.Database.DBName
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 24 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "clinic-reports"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// a render may take up to three 60s attempts
		cfg.HTTP.WriteTimeout = 4 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 50 << 20 // 50MB, images arrive base64 encoded
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = 15 * time.Minute
	}
	if cfg.HTTP.AuthRateLimitRequests == 0 {
		cfg.HTTP.AuthRateLimitRequests = 5
	}
	if cfg.HTTP.AuthRateLimitWindow == 0 {
		cfg.HTTP.AuthRateLimitWindow = 15 * time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageLocal
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "reports"
	}
	if cfg.Storage.SweepInterval == 0 {
		cfg.Storage.SweepInterval = 6 * time.Hour
	}
	if cfg.Storage.SweepGracePeriod == 0 {
		cfg.Storage.SweepGracePeriod = time.Hour
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/reports"
	}
	if cfg.Storage.S3Region == "" {
		cfg.Storage.S3Region = "us-east-1"
	}
	if cfg.Storage.S3Prefix == "" {
		cfg.Storage.S3Prefix = "reports"
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = 60 * time.Second
	}
	if cfg.Render.MaxAttempts == 0 {
		cfg.Render.MaxAttempts = 3
	}
	if cfg.Render.Backoff == 0 {
		cfg.Render.Backoff = time.Second
	}
	if cfg.Render.PaperSize == "" {
		cfg.Render.PaperSize = "A4"
	}
	if cfg.Render.MarginMM == 0 {
		cfg.Render.MarginMM = 15
	}
	if cfg.Render.LockTTL == 0 {
		cfg.Render.LockTTL = 4 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if len(cfg.Telemetry.ProfileTypes) == 0 {
		cfg.Telemetry.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space"}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("database.driver must be one of postgres, sqlite, mongo, got %q", c.Database.Driver)
	}
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

	switch c.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required when storage.driver is s3")
		}
	default:
		return fmt.Errorf("storage.driver must be local or s3, got %q", c.Storage.Driver)
	}

	if c.Render.MaxAttempts < 1 {
		return fmt.Errorf("render.max_attempts must be at least 1")
	}
	if c.Render.MarginMM < 0 || c.Render.MarginMM > 100 {
		return fmt.Errorf("render.margin_mm must be between 0 and 100")
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == DriverPostgres {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		if c.Database.Driver == DriverSQLite {
			return fmt.Errorf("database.driver sqlite is not supported in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilerAddress == "" {
		return fmt.Errorf("telemetry.profiler_address is required when profiling is enabled")
	}

	return nil
}

// IsProduction reports whether the app runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
