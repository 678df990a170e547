// Package config loads service configuration from defaults, an optional
// phonecheck.yaml, a local .env file and PHONECHECK_* environment variables,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"phonecheck/internal/scoring"
)

const envPrefix = "PHONECHECK"

// Backend names accepted by the storage selectors.
const (
	BackendMemory   = "memory"
	BackendJSON     = "json"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Log         LogConfig       `mapstructure:"log"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Postgres    PostgresConfig  `mapstructure:"postgres"`
	Providers   ProvidersConfig `mapstructure:"providers"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	RateLimit   RateLimitConfig `mapstructure:"ratelimit"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	OTP         OTPConfig       `mapstructure:"otp"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	Version           string        `mapstructure:"version"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	Disabled      bool          `mapstructure:"disabled"`
	JWTSigningKey string        `mapstructure:"jwt_signing_key"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	AdminToken    string        `mapstructure:"admin_token"`
}

// StorageConfig selects a backend per store.
type StorageConfig struct {
	Safelist     string `mapstructure:"safelist"`
	SafelistFile string `mapstructure:"safelist_file"`
	History      string `mapstructure:"history"`
	Blacklist    string `mapstructure:"blacklist"`
	OTP          string `mapstructure:"otp"`
	RateLimit    string `mapstructure:"ratelimit"`
}

type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	PoolSize         int           `mapstructure:"pool_size"`
	MinIdleConns     int           `mapstructure:"min_idle_conns"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type ProvidersConfig struct {
	Twilio   TwilioConfig `mapstructure:"twilio"`
	Search   SearchConfig `mapstructure:"search"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Carrier  TimeoutOnly  `mapstructure:"carrier"`
	Judgment TimeoutOnly  `mapstructure:"judgment"`
}

type TimeoutOnly struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type TwilioConfig struct {
	AccountSID string        `mapstructure:"account_sid"`
	AuthToken  string        `mapstructure:"auth_token"`
	LookupURL  string        `mapstructure:"lookup_url"`
	APIURL     string        `mapstructure:"api_url"`
	From       string        `mapstructure:"from"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SearchConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type PipelineConfig struct {
	Freshness          time.Duration   `mapstructure:"freshness"`
	DefaultCallingCode string          `mapstructure:"default_calling_code"`
	Weights            scoring.Weights `mapstructure:"weights"`
	Keywords           []string        `mapstructure:"keywords"`
}

type RateLimitConfig struct {
	Disabled     bool          `mapstructure:"disabled"`
	PerIP        int           `mapstructure:"per_ip"`
	IPWindow     time.Duration `mapstructure:"ip_window"`
	Global       int           `mapstructure:"global"`
	GlobalWindow time.Duration `mapstructure:"global_window"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

// Enabled reports whether analytics events go to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	Debug       bool   `mapstructure:"debug"`
	PollTimeout int    `mapstructure:"poll_timeout"`
}

type OTPConfig struct {
	Sender      string        `mapstructure:"sender"`
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type AnalyticsConfig struct {
	Capacity int `mapstructure:"capacity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.version", "dev")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.jwt_signing_key", "")
	v.SetDefault("auth.issuer", "phonecheck")
	v.SetDefault("auth.audience", "phonecheck-api")
	v.SetDefault("auth.default_ttl", 720*time.Hour)
	v.SetDefault("auth.admin_token", "")

	v.SetDefault("storage.safelist", BackendJSON)
	v.SetDefault("storage.safelist_file", "data/safe_numbers.json")
	v.SetDefault("storage.history", BackendMemory)
	v.SetDefault("storage.blacklist", BackendMemory)
	v.SetDefault("storage.otp", BackendMemory)
	v.SetDefault("storage.ratelimit", BackendMemory)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.history_retention", 30*24*time.Hour)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)

	v.SetDefault("providers.twilio.account_sid", "")
	v.SetDefault("providers.twilio.auth_token", "")
	v.SetDefault("providers.twilio.lookup_url", "https://lookups.twilio.com")
	v.SetDefault("providers.twilio.api_url", "https://api.twilio.com")
	v.SetDefault("providers.twilio.from", "")
	v.SetDefault("providers.twilio.timeout", 5*time.Second)
	v.SetDefault("providers.search.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("providers.search.timeout", 8*time.Second)
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.carrier.timeout", 5*time.Second)
	v.SetDefault("providers.judgment.timeout", 15*time.Second)

	defaults := scoring.DefaultWeights()
	v.SetDefault("pipeline.freshness", 24*time.Hour)
	v.SetDefault("pipeline.default_calling_code", "")
	v.SetDefault("pipeline.weights.judgment", defaults.Judgment)
	v.SetDefault("pipeline.weights.keywords", defaults.Keywords)
	v.SetDefault("pipeline.weights.carrier", defaults.Carrier)
	v.SetDefault("pipeline.keywords", []string{})

	v.SetDefault("ratelimit.disabled", false)
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.ip_window", time.Hour)
	v.SetDefault("ratelimit.global", 1000)
	v.SetDefault("ratelimit.global_window", time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "phonecheck.lookups")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.poll_timeout", 60)

	v.SetDefault("otp.sender", "log")
	v.SetDefault("otp.ttl", 300*time.Second)
	v.SetDefault("otp.max_attempts", 5)

	v.SetDefault("analytics.capacity", 10_000)
}

// legacyEnv maps keys to the plain variable names used by existing .env files.
var legacyEnv = map[string]string{
	"providers.twilio.account_sid": "TWILIO_ACCOUNT_SID",
	"providers.twilio.auth_token":  "TWILIO_AUTH_TOKEN",
	"providers.twilio.from":        "TWILIO_PHONE_NUMBER",
	"providers.openai.api_key":     "OPENAI_API_KEY",
	"telegram.token":               "TELEGRAM_BOT_TOKEN",
	"redis.url":                    "REDIS_URL",
	"postgres.dsn":                 "DATABASE_URL",
}

// Load reads the configuration. path names an explicit config file; when
// empty, phonecheck.yaml is looked up in . and ./config and may be absent.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("phonecheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Pipeline.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.weights: %w", err))
	}
	if !c.Auth.Disabled && len(c.Auth.JWTSigningKey) > 0 && len(c.Auth.JWTSigningKey) < 32 {
		errs = append(errs, errors.New("auth.jwt_signing_key must be at least 32 bytes"))
	}
	for name, backend := range map[string]string{
		"storage.history":   c.Storage.History,
		"storage.blacklist": c.Storage.Blacklist,
		"storage.otp":       c.Storage.OTP,
		"storage.ratelimit": c.Storage.RateLimit,
	} {
		if backend == BackendRedis && c.Redis.URL == "" {
			errs = append(errs, fmt.Errorf("%s=redis requires redis.url", name))
		}
	}
	switch c.Storage.Safelist {
	case BackendMemory, BackendJSON:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.safelist=postgres requires postgres.dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.safelist: unknown backend %q", c.Storage.Safelist))
	}
	if c.Storage.History == BackendPostgres && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("storage.history=postgres requires postgres.dsn"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
