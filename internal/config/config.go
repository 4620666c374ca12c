// Package config loads filedesk configuration from defaults, an optional
// YAML file, a .env file and FD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"filedesk/internal/files"
	"filedesk/internal/logger"
)

// EnvPrefix prefixes every environment variable, e.g. FD_SERVER_ADDR.
const EnvPrefix = "FD"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      logger.Config  `mapstructure:"log"`
	Build    BuildConfig    `mapstructure:"build"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig points at PostgreSQL. An empty URL selects the in-memory
// metadata store.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // disk, minio
	Dir     string      `mapstructure:"dir"`
	MinIO   MinIOConfig `mapstructure:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
}

type UploadConfig struct {
	Policy   string `mapstructure:"policy"`    // any, documents
	MaxBytes int64  `mapstructure:"max_bytes"` // 0 means unlimited
}

// AuthConfig configures login and session cookies. An empty SessionSecret
// disables session cookies; identity then comes from request parameters.
type AuthConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	LoginRate     float64       `mapstructure:"login_rate"` // attempts per second per IP
	LoginBurst    int           `mapstructure:"login_burst"`
}

type BuildConfig struct {
	Version string `mapstructure:"version"`
	Commit  string `mapstructure:"commit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("storage.backend", "disk")
	v.SetDefault("storage.dir", "uploads")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "")

	v.SetDefault("upload.policy", string(files.PolicyAny))
	v.SetDefault("upload.max_bytes", 0)

	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("auth.cookie_name", "fd_session")
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.login_rate", 0.2)
	v.SetDefault("auth.login_burst", 5)

	d := logger.DefaultConfig()
	v.SetDefault("log.level", d.Level)
	v.SetDefault("log.format", d.Format)
	v.SetDefault("log.output", d.Output)
	v.SetDefault("log.enable_stacktrace", d.EnableStacktrace)
	v.SetDefault("log.file.filename", d.File.Filename)
	v.SetDefault("log.file.max_size", d.File.MaxSize)
	v.SetDefault("log.file.max_age", d.File.MaxAge)
	v.SetDefault("log.file.max_backups", d.File.MaxBackups)
	v.SetDefault("log.file.compress", d.File.Compress)

	v.SetDefault("build.version", "dev")
	v.SetDefault("build.commit", "")
}

// Load reads configuration. path may be empty, in which case FD_CONFIG is
// consulted; with neither set only defaults and the environment apply. A
// .env file in the working directory is loaded first when present and never
// overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
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

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	v := &Validator{}

	v.Required("server.addr", c.Server.Addr)
	v.ListenAddr("server.addr", c.Server.Addr)
	if c.Server.ReadHeaderTimeout <= 0 {
		v.AddError("server.read_header_timeout", "must be positive")
	}

	v.DatabaseURL("database.url", c.Database.URL)
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		v.AddError("database.max_open_conns", "pool sizes must not be negative")
	}

	v.OneOf("storage.backend", c.Storage.Backend, "disk", "minio")
	switch c.Storage.Backend {
	case "disk":
		v.Required("storage.dir", c.Storage.Dir)
	case "minio":
		v.Required("storage.minio.endpoint", c.Storage.MinIO.Endpoint)
		v.Required("storage.minio.access_key", c.Storage.MinIO.AccessKey)
		v.Required("storage.minio.secret_key", c.Storage.MinIO.SecretKey)
		v.Required("storage.minio.bucket", c.Storage.MinIO.Bucket)
	}

	if _, err := files.ParsePolicy(c.Upload.Policy); err != nil {
		v.AddError("upload.policy", err.Error())
	}
	if c.Upload.MaxBytes < 0 {
		v.AddError("upload.max_bytes", "must not be negative")
	}

	v.MinLength("auth.session_secret", c.Auth.SessionSecret, 16)
	if c.Auth.SessionSecret != "" && c.Auth.SessionTTL <= 0 {
		v.AddError("auth.session_ttl", "must be positive")
	}
	if c.Auth.LoginRate <= 0 {
		v.AddError("auth.login_rate", "must be positive")
	}
	if c.Auth.LoginBurst < 1 {
		v.AddError("auth.login_burst", "must be at least 1")
	}

	if err := c.Log.Validate(); err != nil {
		v.AddError("log", err.Error())
	}

	return v.Err()
}
