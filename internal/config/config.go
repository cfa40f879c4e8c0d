// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Site      SiteConfig      `koanf:"site"`
	Email     EmailConfig     `koanf:"email"`
	Storage   StorageConfig   `koanf:"storage"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type SiteConfig struct {
	BaseURL string `koanf:"base_url"`
}

// EmailConfig configures the SendGrid sender used by newsletter dispatch.
// An empty APIKey selects the log-only sender.
type EmailConfig struct {
	SendGridAPIKey string        `koanf:"sendgrid_api_key"`
	FromAddress    string        `koanf:"from_address"`
	FromName       string        `koanf:"from_name"`
	RatePerSecond  float64       `koanf:"rate_per_second"`
	Burst          int           `koanf:"burst"`
	MaxRetries     uint64        `koanf:"max_retries"`
	RetryBase      time.Duration `koanf:"retry_base"`
	SendTimeout    time.Duration `koanf:"send_timeout"`
}

// StorageConfig points at an S3-compatible bucket holding article images.
type StorageConfig struct {
	Endpoint      string `koanf:"endpoint"`
	Region        string `koanf:"region"`
	Bucket        string `koanf:"bucket"`
	AccessKey     string `koanf:"access_key"`
	SecretKey     string `koanf:"secret_key"`
	PublicBaseURL string `koanf:"public_base_url"`
	UsePathStyle  bool   `koanf:"use_path_style"`
	MaxUploadSize int64  `koanf:"max_upload_size"`
}

type DispatchConfig struct {
	PageSize int           `koanf:"page_size"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

// ErrInvalid wraps every validation failure returned by Parse.
var ErrInvalid = errors.New("invalid configuration")

// Load reads the process configuration once; later calls return the
// first result.
func Load(configPath string) (*Config, error) {
	once.Do(func() {
		cfg, loadErr = Parse(configPath)
	})
	return cfg, loadErr
}

// Parse layers defaults, the optional YAML file and the environment, each
// overriding the one before.
func Parse(configPath string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

var defaults = map[string]any{
	"app.name":        "WealthSuperNova",
	"app.version":     "1.0.0",
	"app.environment": "development",

	"server.host":             "0.0.0.0",
	"server.port":             8080,
	"server.read_timeout":     "30s",
	"server.write_timeout":    "60s",
	"server.idle_timeout":     "120s",
	"server.shutdown_timeout": "15s",

	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  "1h",
	"database.conn_max_idle_time": "30m",

	"redis.pool_size":      10,
	"redis.min_idle_conns": 2,

	"jwt.access_token_expire":  "15m",
	"jwt.refresh_token_expire": "168h",
	"jwt.issuer":               "supernova",
	"jwt.audience":             "supernova-api",
	"jwt.private_key_path":     "keys/private.pem",
	"jwt.public_key_path":      "keys/public.pem",

	"rate_limit.requests": 100,
	"rate_limit.window":   "1m",
	"rate_limit.burst":    20,

	"cors.allowed_origins":   []string{"http://localhost:3000"},
	"cors.allowed_methods":   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"cors.allowed_headers":   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
	"cors.allow_credentials": true,
	"cors.max_age":           300,

	"log.level":  "info",
	"log.format": "json",

	"otel.enabled":      false,
	"otel.insecure":     true,
	"otel.sample_rate":  0.1,
	"otel.service_name": "supernova",

	"site.base_url": "http://localhost:3000",

	"email.from_address":    "newsletter@wealthsupernova.com",
	"email.from_name":       "WealthSuperNova",
	"email.rate_per_second": 10.0,
	"email.burst":           5,
	"email.max_retries":     3,
	"email.retry_base":      "500ms",
	"email.send_timeout":    "10s",

	"storage.region":          "us-east-1",
	"storage.bucket":          "public",
	"storage.use_path_style":  true,
	"storage.max_upload_size": 5 * 1024 * 1024,

	"dispatch.page_size": 500,
	"dispatch.lock_ttl":  "15m",
}

// envKeys maps the deployment's environment variables onto config keys.
// Anything not listed is ignored.
var envKeys = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"SITE_BASE_URL":               "site.base_url",
	"SENDGRID_API_KEY":            "email.sendgrid_api_key",
	"EMAIL_FROM_ADDRESS":          "email.from_address",
	"EMAIL_FROM_NAME":             "email.from_name",
	"EMAIL_RATE_PER_SECOND":       "email.rate_per_second",
	"EMAIL_BURST":                 "email.burst",
	"EMAIL_MAX_RETRIES":           "email.max_retries",
	"EMAIL_SEND_TIMEOUT":          "email.send_timeout",
	"STORAGE_ENDPOINT":            "storage.endpoint",
	"STORAGE_REGION":              "storage.region",
	"STORAGE_BUCKET":              "storage.bucket",
	"STORAGE_ACCESS_KEY":          "storage.access_key",
	"STORAGE_SECRET_KEY":          "storage.secret_key",
	"STORAGE_PUBLIC_BASE_URL":     "storage.public_base_url",
	"STORAGE_USE_PATH_STYLE":      "storage.use_path_style",
	"STORAGE_MAX_UPLOAD_SIZE":     "storage.max_upload_size",
	"DISPATCH_PAGE_SIZE":          "dispatch.page_size",
	"DISPATCH_LOCK_TTL":           "dispatch.lock_ttl",
}

func envKey(name string) string {
	return envKeys[name]
}

// Validate reports every problem at once, joined, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Database.URL != "", "DATABASE_URL is required")
	check(c.Redis.URL != "", "REDIS_URL is required")
	check(c.JWT.PrivateKeyPath != "", "JWT_PRIVATE_KEY_PATH is required")
	check(c.JWT.PublicKeyPath != "", "JWT_PUBLIC_KEY_PATH is required")
	check(c.Site.BaseURL != "", "SITE_BASE_URL is required")
	check(c.Storage.Bucket != "", "STORAGE_BUCKET is required")

	check(c.Server.ReadTimeout > 0, "server.read_timeout must be positive, got %s", c.Server.ReadTimeout)
	check(c.Server.WriteTimeout > 0, "server.write_timeout must be positive, got %s", c.Server.WriteTimeout)
	check(c.Server.ShutdownTimeout >= 0, "server.shutdown_timeout must not be negative")
	check(c.Storage.MaxUploadSize > 0, "storage.max_upload_size must be positive")
	check(c.Email.RatePerSecond > 0, "email.rate_per_second must be positive")
	check(c.Dispatch.PageSize > 0, "dispatch.page_size must be positive, got %d", c.Dispatch.PageSize)
	check(c.Dispatch.LockTTL >= 0, "dispatch.lock_ttl must not be negative")

	if c.CORS.AllowCredentials {
		check(!slices.Contains(c.CORS.AllowedOrigins, "*"),
			"cors.allowed_origins cannot contain '*' when credentials are allowed")
	}
	if c.IsProduction() && c.Otel.Enabled {
		check(!c.Otel.Insecure, "OTEL_INSECURE must be false in production")
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// PublicURL returns the public URL for an object key, preferring the
// configured CDN base over the raw endpoint.
func (s *StorageConfig) PublicURL(key string) string {
	base := s.PublicBaseURL
	if base == "" {
		base = s.Endpoint + "/" + s.Bucket
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
