// Package config loads CLI settings from an optional mjtree.yaml file,
// MJTREE_ environment variables and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MJTREE_STORE_KIND.
const EnvPrefix = "MJTREE"

type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Render RenderConfig `mapstructure:"render"`
	Server ServerConfig `mapstructure:"server"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type StoreConfig struct {
	Kind     string      `mapstructure:"kind" validate:"oneof=memory file redis"`
	Dir      string      `mapstructure:"dir"`
	ReadOnly bool        `mapstructure:"read_only"`
	Redis    RedisConfig `mapstructure:"redis"`
	// EncryptionKey is a base64 AES-256 key; when set, markup is sealed at rest.
	EncryptionKey string   `mapstructure:"encryption_key" validate:"omitempty,base64"`
	FallbackKeys  []string `mapstructure:"fallback_keys" validate:"dive,base64"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
	Prefix   string `mapstructure:"prefix"`
}

type RenderConfig struct {
	Endpoint  string        `mapstructure:"endpoint" validate:"omitempty,url"`
	AppID     string        `mapstructure:"app_id"`
	SecretKey string        `mapstructure:"secret_key"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"min=0"`
	Retries   int           `mapstructure:"retries" validate:"min=0,max=10"`
	Minify    bool          `mapstructure:"minify"`
	Sanitize  bool          `mapstructure:"sanitize"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Enabled reports whether remote rendering has credentials.
func (r RenderConfig) Enabled() bool {
	return r.AppID != "" && r.SecretKey != ""
}

// SlogLevel maps Level to a slog level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a viper instance with defaults, env overrides and the config
// file search path set up. Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("mjtree")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mjtree")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key, which also lets AutomaticEnv see them
// during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("store.kind", "file")
	v.SetDefault("store.dir", ".mjtree/templates")
	v.SetDefault("store.read_only", false)
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.fallback_keys", []string{})
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "mjtree:template:")
	v.SetDefault("render.endpoint", "https://api.mjml.io/v1")
	v.SetDefault("render.app_id", "")
	v.SetDefault("render.secret_key", "")
	v.SetDefault("render.timeout", 30*time.Second)
	v.SetDefault("render.retries", 3)
	v.SetDefault("render.minify", false)
	v.SetDefault("render.sanitize", false)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
}

// Load reads the config file if present, then decodes and validates.
// An explicit path must exist; the default search path may come up empty.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks field ranges and the store settings each kind needs.
func Validate(cfg *Config) error {
	v := validator.New()
	v.RegisterStructValidation(storeValidation, StoreConfig{})
	if err := v.Struct(cfg); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return err
		}
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q %s", f.Namespace(), f.Tag(), f.Param()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

func storeValidation(sl validator.StructLevel) {
	s := sl.Current().Interface().(StoreConfig)
	switch s.Kind {
	case "file":
		if s.Dir == "" {
			sl.ReportError(s.Dir, "Dir", "Dir", "required_for_file", "")
		}
	case "redis":
		if s.Redis.Addr == "" {
			sl.ReportError(s.Redis.Addr, "Addr", "Addr", "required_for_redis", "")
		}
	}
}
