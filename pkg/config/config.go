package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Pipeline  PipelineConfig
	Posting   PostingConfig
	Publisher PublisherConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// DSN is either a postgres:// URL or a path to a sqlite file.
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// PipelineConfig holds orchestrator configuration
type PipelineConfig struct {
	SourcesFile       string
	TemplatesFile     string
	DiscoveryInterval time.Duration
	AnalysisInterval  time.Duration
	RenderInterval    time.Duration
	ScheduleInterval  time.Duration
	PublishInterval   time.Duration
	ExpiryInterval    time.Duration
	WorkerCount       int
	MaxRetries        int
	RetryBackoff      time.Duration
	MaxArticleAge     time.Duration
	CallTimeout       time.Duration
	BatchSize         int
}

// PostingConfig holds scheduling policy configuration
type PostingConfig struct {
	PreferredTimes      []string
	MinInterval         time.Duration
	MaxPostsPerDay      int
	LookaheadDays       int
	ImportanceThreshold float64
	Timezone            string
}

// PublisherConfig holds publishing endpoint and rate limit configuration
type PublisherConfig struct {
	URL            string
	AccessToken    string
	Account        string
	HourlyCap      int
	DailyCap       int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // "json" or "text"
	FlatFields bool   // Enable flattened JSON format for log shippers
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	PrometheusPort    int
	ServiceName       string
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	// Load from environment
	viper.SetEnvPrefix("NEWS")
	viper.AutomaticEnv()

	// Load from config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.newspipe")
	viper.AddConfigPath("/etc/newspipe")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			DSN: getString("database_dsn", "news_pipeline.db"),
		},
		Redis: RedisConfig{
			URL:     getString("redis_url", ""),
			Enabled: getString("redis_url", "") != "",
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8080),
			Host: getString("http_server_host", "0.0.0.0"),
		},
		Pipeline: PipelineConfig{
			SourcesFile:       getString("sources_file", "sources.yaml"),
			TemplatesFile:     getString("templates_file", "templates.yaml"),
			DiscoveryInterval: getSeconds("discovery_interval", 30*time.Minute),
			AnalysisInterval:  getSeconds("analysis_interval", time.Minute),
			RenderInterval:    getSeconds("render_interval", time.Minute),
			ScheduleInterval:  getSeconds("schedule_interval", time.Minute),
			PublishInterval:   getSeconds("publish_interval", time.Minute),
			ExpiryInterval:    getSeconds("expiry_interval", 10*time.Minute),
			WorkerCount:       getInt("worker_count", 4),
			MaxRetries:        getInt("max_retries", 3),
			RetryBackoff:      getSeconds("retry_backoff", 2*time.Minute),
			MaxArticleAge:     getSeconds("max_article_age", 24*time.Hour),
			CallTimeout:       getSeconds("call_timeout", 60*time.Second),
			BatchSize:         getInt("batch_size", 50),
		},
		Posting: PostingConfig{
			PreferredTimes:      getStringSlice("preferred_times", []string{"09:00", "12:00", "15:00", "18:00", "21:00"}),
			MinInterval:         getSeconds("min_post_interval", 3*time.Hour),
			MaxPostsPerDay:      getInt("max_posts_per_day", 5),
			LookaheadDays:       getInt("schedule_lookahead_days", 7),
			ImportanceThreshold: getFloat("importance_threshold", 0.6),
			Timezone:            getString("posting_timezone", "UTC"),
		},
		Publisher: PublisherConfig{
			URL:            getString("publisher_url", ""),
			AccessToken:    getString("publisher_access_token", ""),
			Account:        getString("publisher_account", "default"),
			HourlyCap:      getInt("publish_hourly_cap", 3),
			DailyCap:       getInt("publish_daily_cap", 10),
			BackoffBase:    getSeconds("publish_backoff_base", 30*time.Second),
			BackoffCap:     getSeconds("publish_backoff_cap", 5*time.Minute),
			MaxAttempts:    getInt("publish_max_attempts", 3),
			RequestTimeout: getSeconds("publish_request_timeout", 90*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getString("log_level", "INFO"),
			Format:     getString("log_format", "json"),
			FlatFields: getBool("log_flat_fields", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", true),
			PrometheusPort:    getInt("prometheus_port", 9090),
			ServiceName:       getString("service_name", "news-pipeline"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("database_dsn", "news_pipeline.db")
	viper.SetDefault("http_server_port", 8080)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("sources_file", "sources.yaml")
	viper.SetDefault("worker_count", 4)
	viper.SetDefault("max_retries", 3)
	viper.SetDefault("batch_size", 50)
	viper.SetDefault("max_posts_per_day", 5)
	viper.SetDefault("schedule_lookahead_days", 7)
	viper.SetDefault("importance_threshold", 0.6)
	viper.SetDefault("publish_hourly_cap", 3)
	viper.SetDefault("publish_daily_cap", 10)
	viper.SetDefault("publish_max_attempts", 3)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("prometheus_enabled", true)
	viper.SetDefault("prometheus_port", 9090)
	viper.SetDefault("service_name", "news-pipeline")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv("NEWS_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv("NEWS_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	if val := os.Getenv("NEWS_" + toEnvKey(key)); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv("NEWS_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

// getSeconds reads a duration config value expressed in seconds.
func getSeconds(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return time.Duration(viper.GetInt(key)) * time.Second
	}
	if val := os.Getenv("NEWS_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return defaultValue
}

func getStringSlice(key string, defaultValue []string) []string {
	if viper.IsSet(key) {
		if vals := viper.GetStringSlice(key); len(vals) > 0 {
			return vals
		}
	}
	return defaultValue
}

func toEnvKey(key string) string {
	// Convert snake_case to UPPER_SNAKE_CASE
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database_dsn is required")
	}
	if c.Pipeline.SourcesFile == "" {
		return fmt.Errorf("sources_file is required")
	}
	if c.Pipeline.WorkerCount <= 0 || c.Pipeline.WorkerCount > 64 {
		return fmt.Errorf("worker_count must be between 1 and 64")
	}
	if c.Pipeline.MaxRetries < 0 || c.Pipeline.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be between 0 and 10")
	}
	if c.Pipeline.RetryBackoff <= 0 {
		return fmt.Errorf("retry_backoff must be positive")
	}
	if c.Posting.MaxPostsPerDay <= 0 {
		return fmt.Errorf("max_posts_per_day must be positive")
	}
	if c.Posting.LookaheadDays <= 0 || c.Posting.LookaheadDays > 30 {
		return fmt.Errorf("schedule_lookahead_days must be between 1 and 30")
	}
	if c.Posting.ImportanceThreshold < 0 || c.Posting.ImportanceThreshold > 1 {
		return fmt.Errorf("importance_threshold must be between 0.0 and 1.0")
	}
	if len(c.Posting.PreferredTimes) == 0 {
		return fmt.Errorf("preferred_times must not be empty")
	}
	if _, err := time.LoadLocation(c.Posting.Timezone); err != nil {
		return fmt.Errorf("invalid posting_timezone %q: %w", c.Posting.Timezone, err)
	}
	if c.Publisher.HourlyCap <= 0 || c.Publisher.DailyCap <= 0 {
		return fmt.Errorf("publish caps must be positive")
	}
	if c.Publisher.HourlyCap > c.Publisher.DailyCap {
		return fmt.Errorf("publish_hourly_cap must not exceed publish_daily_cap")
	}
	if c.Publisher.MaxAttempts <= 0 {
		return fmt.Errorf("publish_max_attempts must be positive")
	}
	return nil
}

// GetDuration returns a duration from config key, with default
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return defaultValue
}
