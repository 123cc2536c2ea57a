package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	Redis    RedisConfig    `json:"redis" mapstructure:"redis"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
	Report   ReportConfig   `json:"report" mapstructure:"report"`
	Email    EmailConfig    `json:"email" mapstructure:"email"`
	PDF      PDFConfig      `json:"pdf" mapstructure:"pdf"`
	Security SecurityConfig `json:"security" mapstructure:"security"`
	Metrics  MetricsConfig  `json:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig contains the loopback HTTP surface configuration
type ServerConfig struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	AllowedOrigins []string      `json:"allowed_origins" mapstructure:"allowed_origins"`
	SendRateLimit  float64       `json:"send_rate_limit" mapstructure:"send_rate_limit"`
	SendRateBurst  int           `json:"send_rate_burst" mapstructure:"send_rate_burst"`
}

// DatabaseConfig contains store connection configuration
type DatabaseConfig struct {
	Driver          string        `json:"driver" mapstructure:"driver"`
	Path            string        `json:"path" mapstructure:"path"`
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	Name            string        `json:"name" mapstructure:"name"`
	User            string        `json:"user" mapstructure:"user"`
	Password        string        `json:"password" mapstructure:"password"`
	SSLMode         string        `json:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// RedisConfig contains Redis connection configuration for the recipients cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
	PoolSize int    `json:"pool_size" mapstructure:"pool_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
	Output string `json:"output" mapstructure:"output"`
}

// ReportConfig contains report rendering configuration
type ReportConfig struct {
	AssetScheme          string `json:"asset_scheme" mapstructure:"asset_scheme"`
	InlineImageThreshold int64  `json:"inline_image_threshold" mapstructure:"inline_image_threshold"`
	ExportDir            string `json:"export_dir" mapstructure:"export_dir"`
	DateFormat           string `json:"date_format" mapstructure:"date_format"`
	RecentRecipients     int    `json:"recent_recipients" mapstructure:"recent_recipients"`
}

// EmailConfig contains SMTP transport tuning
type EmailConfig struct {
	ConnectionTimeout time.Duration `json:"connection_timeout" mapstructure:"connection_timeout"`
	GreetingTimeout   time.Duration `json:"greeting_timeout" mapstructure:"greeting_timeout"`
	SocketTimeout     time.Duration `json:"socket_timeout" mapstructure:"socket_timeout"`
	SendTimeout       time.Duration `json:"send_timeout" mapstructure:"send_timeout"`
	MaxAttempts       int           `json:"max_attempts" mapstructure:"max_attempts"`
	RetryDelay        time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	DedupWindow       time.Duration `json:"dedup_window" mapstructure:"dedup_window"`
}

// PDFConfig contains headless browser configuration
type PDFConfig struct {
	ChromePath string        `json:"chrome_path" mapstructure:"chrome_path"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	NoSandbox  bool          `json:"no_sandbox" mapstructure:"no_sandbox"`
}

// SecurityConfig contains secrets used to protect data at rest
type SecurityConfig struct {
	SecretKey string `json:"-" mapstructure:"secret_key"`
}

// MetricsConfig contains Prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled" mapstructure:"enabled"`
	JaegerEndpoint string  `json:"jaeger_endpoint" mapstructure:"jaeger_endpoint"`
	SampleRate     float64 `json:"sample_rate" mapstructure:"sample_rate"`
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:           getEnvString("SERVER_HOST", "127.0.0.1"),
			Port:           getEnvInt("SERVER_PORT", 8765),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			AllowedOrigins: getEnvList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			SendRateLimit:  getEnvFloat("SERVER_SEND_RATE_LIMIT", 1),
			SendRateBurst:  getEnvInt("SERVER_SEND_RATE_BURST", 3),
		},
		Database: DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", "sqlite"),
			Path:            getEnvString("DB_PATH", defaultDataPath("vanguard.db")),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "vanguard"),
			User:            getEnvString("DB_USER", "vanguard"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 4),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "text"),
			Output: getEnvString("LOG_OUTPUT", "stderr"),
		},
		Report: ReportConfig{
			AssetScheme:          getEnvString("REPORT_ASSET_SCHEME", "vanguard"),
			InlineImageThreshold: getEnvInt64("REPORT_INLINE_IMAGE_THRESHOLD", 2*1024*1024),
			ExportDir:            getEnvString("REPORT_EXPORT_DIR", defaultDataPath("exports")),
			DateFormat:           getEnvString("REPORT_DATE_FORMAT", "2006-01-02"),
			RecentRecipients:     getEnvInt("REPORT_RECENT_RECIPIENTS", 8),
		},
		Email: EmailConfig{
			ConnectionTimeout: getEnvDuration("EMAIL_CONNECTION_TIMEOUT", 7*time.Second),
			GreetingTimeout:   getEnvDuration("EMAIL_GREETING_TIMEOUT", 7*time.Second),
			SocketTimeout:     getEnvDuration("EMAIL_SOCKET_TIMEOUT", 12*time.Second),
			SendTimeout:       getEnvDuration("EMAIL_SEND_TIMEOUT", 60*time.Second),
			MaxAttempts:       getEnvInt("EMAIL_MAX_ATTEMPTS", 3),
			RetryDelay:        getEnvDuration("EMAIL_RETRY_DELAY", 500*time.Millisecond),
			DedupWindow:       getEnvDuration("EMAIL_DEDUP_WINDOW", 5*time.Second),
		},
		PDF: PDFConfig{
			ChromePath: getEnvString("CHROME_PATH", ""),
			Timeout:    getEnvDuration("PDF_TIMEOUT", 60*time.Second),
			NoSandbox:  getEnvBool("PDF_NO_SANDBOX", true),
		},
		Security: SecurityConfig{
			SecretKey: getEnvString("VANGUARD_SECRET_KEY", ""),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Namespace: getEnvString("METRICS_NAMESPACE", "vanguard"),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("TRACING_ENABLED", false),
			JaegerEndpoint: getEnvString("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SampleRate:     getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadFile loads the environment defaults and overlays the given config file.
// Keys use the mapstructure names, e.g. email.dedup_window, and may be
// overridden by VANGUARD_EMAIL_DEDUP_WINDOW style variables.
func LoadFile(path string) (*Config, error) {
	config, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("VANGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database host and name are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Report.AssetScheme == "" {
		return fmt.Errorf("report asset scheme is required")
	}

	if c.Report.InlineImageThreshold <= 0 {
		return fmt.Errorf("inline image threshold must be positive")
	}

	if c.Email.MaxAttempts < 1 {
		return fmt.Errorf("email max attempts must be at least 1")
	}

	if c.Email.DedupWindow < 0 {
		return fmt.Errorf("email dedup window cannot be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}

	return nil
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "vanguard", name)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
