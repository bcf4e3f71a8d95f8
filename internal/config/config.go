package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. COURSEFORM_ADDR.
const EnvPrefix = "COURSEFORM"

// Config holds all configuration values.
type Config struct {
	Addr     string `mapstructure:"ADDR"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Draft storage: "memory" or "redis".
	DraftStore    string        `mapstructure:"DRAFT_STORE"`
	DraftTTL      time.Duration `mapstructure:"DRAFT_TTL"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`

	UploadDir   string `mapstructure:"UPLOAD_DIR"`
	MaxUploadMB int64  `mapstructure:"MAX_UPLOAD_MB"`
	SlotPolicy  string `mapstructure:"SLOT_POLICY"`

	// Submitter is "log" or "sqlite".
	Submitter   string `mapstructure:"SUBMITTER"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	SlowQueryMS int    `mapstructure:"SLOW_QUERY_MS"`

	// NotifyTo is a comma-separated recipient list for submission notices; empty disables them.
	NotifyTo     string `mapstructure:"NOTIFY_TO"`
	NotifyFrom   string `mapstructure:"NOTIFY_FROM"`
	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`

	// CSRFKey is hex-encoded, 32 bytes.
	CSRFKey            string `mapstructure:"CSRF_KEY"`
	RateLimitPerSecond int    `mapstructure:"RATE_LIMIT_PER_SECOND"`
	SlowRequestMS      int    `mapstructure:"SLOW_REQUEST_MS"`
}

var defaults = map[string]any{
	"ADDR":                  ":8080",
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "text",
	"DRAFT_STORE":           "memory",
	"DRAFT_TTL":             "24h",
	"REDIS_ADDR":            "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"UPLOAD_DIR":            "uploads",
	"MAX_UPLOAD_MB":         10,
	"SLOT_POLICY":           "permissive",
	"SUBMITTER":             "log",
	"SQLITE_PATH":           "courseform.db",
	"SLOW_QUERY_MS":         50,
	"NOTIFY_TO":             "",
	"NOTIFY_FROM":           "Course Office <courses@localhost>",
	"RESEND_API_KEY":        "",
	"CSRF_KEY":              "",
	"RATE_LIMIT_PER_SECOND": 10,
	"SLOW_REQUEST_MS":       200,
}

// Load reads configuration from defaults, an optional YAML file and COURSEFORM_* env vars,
// in increasing order of precedence.
// If configFile is empty, courseform.yaml is looked up in . and ./config and may be absent.
func Load(configFile string) (Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("courseform")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// SlogLevel maps LogLevel to a slog level. Unknown names fall back to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// MaxUploadBytes is the request body limit for file uploads.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// NotifyRecipients splits NotifyTo into trimmed, non-empty addresses.
func (c Config) NotifyRecipients() []string {
	var to []string
	for _, addr := range strings.Split(c.NotifyTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return to
}

// CSRFKeyBytes decodes the CSRF key. ok is false when no key is configured.
func (c Config) CSRFKeyBytes() (key []byte, ok bool, err error) {
	if c.CSRFKey == "" {
		return nil, false, nil
	}
	key, err = hex.DecodeString(c.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, false, errors.New("CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, true, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.DraftStore) {
	case "memory", "redis":
	default:
		return fmt.Errorf("DRAFT_STORE must be memory or redis, got %q", c.DraftStore)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	switch strings.ToLower(c.Submitter) {
	case "log", "sqlite":
	default:
		return fmt.Errorf("SUBMITTER must be log or sqlite, got %q", c.Submitter)
	}
	if strings.EqualFold(c.Submitter, "sqlite") && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required when SUBMITTER=sqlite")
	}
	if c.DraftTTL <= 0 {
		return errors.New("DRAFT_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if _, _, err := c.CSRFKeyBytes(); err != nil {
		return err
	}
	if c.IsProduction() && c.CSRFKey == "" {
		return errors.New("CSRF_KEY is required in production")
	}
	return nil
}
