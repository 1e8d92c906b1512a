// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package config loads BestWishes settings from defaults, a YAML file,
// command-line flags and secret environment variables, in that order.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/bestwishes/bestwishes/internal/logging"
	"github.com/bestwishes/bestwishes/internal/session"
	"github.com/bestwishes/bestwishes/internal/token"
	"github.com/bestwishes/bestwishes/internal/xdg"
)

// Token store backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Secret environment variables. They override file and flag values.
const (
	EnvDatabaseURL   = "DATABASE_URL"
	EnvSessionSecret = "BESTWISHES_SESSION_SECRET"
	EnvSMTPPassword  = "BESTWISHES_SMTP_PASSWORD"
	EnvRedisPassword = "BESTWISHES_REDIS_PASSWORD"
	EnvS3SecretKey   = "BESTWISHES_S3_SECRET_ACCESS_KEY"
)

// Config is the complete server configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Tokens   TokensConfig   `koanf:"tokens"`
	Session  SessionConfig  `koanf:"session"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	S3       S3Config       `koanf:"s3"`
	App      AppConfig      `koanf:"app"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type DatabaseConfig struct {
	URL             string `koanf:"url"`
	MaxConns        int32  `koanf:"max_conns"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`
}

type TokensConfig struct {
	Backend       string        `koanf:"backend"`
	VerifyTTL     time.Duration `koanf:"verify_ttl"`
	ResetTTL      time.Duration `koanf:"reset_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	Redis         RedisConfig   `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type SessionConfig struct {
	Secret   string        `koanf:"secret"`
	Validity time.Duration `koanf:"validity"`
	Issuer   string        `koanf:"issuer"`
}

// SMTPConfig configures outbound mail. An empty Host logs mail instead.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	Attempts uint64 `koanf:"attempts"`
}

// S3Config configures object storage. An empty Bucket stores uploads on disk.
type S3Config struct {
	Region          string `koanf:"region"`
	Bucket          string `koanf:"bucket"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	UsePathStyle    bool   `koanf:"use_path_style"`
	PublicBaseURL   string `koanf:"public_base_url"`
}

type AppConfig struct {
	ResetURL                 string `koanf:"reset_url"`
	RequireSellerForProducts bool   `koanf:"require_seller_for_products"`
	UploadDir                string `koanf:"upload_dir"`
	UploadBaseURL            string `koanf:"upload_base_url"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
		},
		Tokens: TokensConfig{
			Backend:       BackendPostgres,
			VerifyTTL:     token.DefaultVerifyTTL,
			ResetTTL:      token.DefaultResetTTL,
			SweepInterval: 10 * time.Minute,
			Redis:         RedisConfig{Addr: "localhost:6379", Prefix: "bestwishes:token"},
		},
		Session: SessionConfig{Validity: session.DefaultValidity, Issuer: "bestwishes"},
		SMTP: SMTPConfig{
			Port:     587,
			From:     "no-reply@bestwishes.local",
			FromName: "BestWishes",
			Attempts: 3,
		},
		S3: S3Config{Region: "us-east-1"},
		App: AppConfig{
			ResetURL:      "http://localhost:3000/reset-password",
			UploadDir:     xdg.UploadsDir(),
			UploadBaseURL: "/uploads",
		},
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"http-addr":     "http.addr",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"token-backend": "tokens.backend",
	"redis-addr":    "tokens.redis.addr",
	"upload-dir":    "app.upload_dir",
}

// RegisterFlags adds the overridable settings to fs. Only flags the user
// sets take effect.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("token-backend", d.Tokens.Backend, "token store backend (postgres, redis or memory)")
	fs.String("redis-addr", d.Tokens.Redis.Addr, "redis address for the redis token backend")
	fs.String("upload-dir", d.App.UploadDir, "directory for uploads when S3 is not configured")
}

// Load builds the configuration. path names a YAML file; when empty the
// XDG config file is read if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		EnvDatabaseURL:   &c.Database.URL,
		EnvSessionSecret: &c.Session.Secret,
		EnvSMTPPassword:  &c.SMTP.Password,
		EnvRedisPassword: &c.Tokens.Redis.Password,
		EnvS3SecretKey:   &c.S3.SecretAccessKey,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
}

// Validate checks the settings needed to serve.
func (c Config) Validate() error {
	switch {
	case c.HTTP.Addr == "":
		return invalid("http.addr", "is required")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "must be 'json' or 'text'")
	case c.Database.URL == "":
		return invalid("database.url", "is required (set "+EnvDatabaseURL+")")
	case c.Tokens.VerifyTTL <= 0 || c.Tokens.ResetTTL <= 0:
		return invalid("tokens", "ttls must be positive")
	case c.Tokens.Backend == BackendRedis && c.Tokens.Redis.Addr == "":
		return invalid("tokens.redis.addr", "is required for the redis backend")
	case len(c.Session.Secret) < session.MinSecretLength:
		return invalid("session.secret", "must be at least 32 bytes (set "+EnvSessionSecret+")")
	case c.Session.Validity <= 0:
		return invalid("session.validity", "must be positive")
	case c.App.ResetURL == "":
		return invalid("app.reset_url", "is required")
	case c.S3.Bucket == "" && c.App.UploadDir == "":
		return invalid("app.upload_dir", "is required when s3.bucket is empty")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}
	switch c.Tokens.Backend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return invalid("tokens.backend", "must be postgres, redis or memory")
	}
	return nil
}

func invalid(field, problem string) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s %s", field, strings.TrimSpace(problem))
}
