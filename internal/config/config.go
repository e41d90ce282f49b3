package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type RemoteConfig struct {
	URL                  string  `mapstructure:"url"`
	AccessKey            string  `mapstructure:"access_key"`
	TimeoutSeconds       int     `mapstructure:"timeout_seconds"`
	RateLimit            float64 `mapstructure:"rate_limit"`
	RateBurst            int     `mapstructure:"rate_burst"`
	ProbeIntervalSeconds int     `mapstructure:"probe_interval_seconds"`
}

// IsConfigured reports whether both the endpoint and the access key are set.
// An unconfigured remote is the local-only mode.
func (r RemoteConfig) IsConfigured() bool {
	return strings.TrimSpace(r.URL) != "" && strings.TrimSpace(r.AccessKey) != ""
}

func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (r RemoteConfig) ProbeInterval() time.Duration {
	return time.Duration(r.ProbeIntervalSeconds) * time.Second
}

type SyncConfig struct {
	MaxRetries         int `mapstructure:"max_retries"`
	RetentionKeep      int `mapstructure:"retention_keep"`
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
	BackoffMaxSeconds  int `mapstructure:"backoff_max_seconds"`
	IntervalSeconds    int `mapstructure:"interval_seconds"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type Config struct {
	DataDir    string       `mapstructure:"data_dir"`
	DBPath     string       `mapstructure:"db_path"`
	ListenAddr string       `mapstructure:"listen_addr"`
	AdminKey   string       `mapstructure:"admin_key"`
	Log        LogConfig    `mapstructure:"log"`
	Remote     RemoteConfig `mapstructure:"remote"`
	Sync       SyncConfig   `mapstructure:"sync"`
}

// ServerConfig configures the remote store server.
type ServerConfig struct {
	Port        string    `mapstructure:"port"`
	DatabaseURL string    `mapstructure:"database_url"`
	AuthToken   string    `mapstructure:"auth_token"`
	Log         LogConfig `mapstructure:"log"`
}

// Load reads the client configuration from an optional file and FITLOG_*
// environment variables. An empty path searches the working directory and
// the data directory for fitlog.{yaml,json,toml}.
func Load(path string) (Config, error) {
	v := newViper("FITLOG")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("db_path", "")
	v.SetDefault("listen_addr", "127.0.0.1:5002")
	v.SetDefault("admin_key", "")
	setLogDefaults(v)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.access_key", "")
	v.SetDefault("remote.timeout_seconds", 30)
	v.SetDefault("remote.rate_limit", 10.0)
	v.SetDefault("remote.rate_burst", 5)
	v.SetDefault("remote.probe_interval_seconds", 15)
	v.SetDefault("sync.max_retries", 5)
	v.SetDefault("sync.retention_keep", 100)
	v.SetDefault("sync.backoff_base_seconds", 2)
	v.SetDefault("sync.backoff_max_seconds", 300)
	v.SetDefault("sync.interval_seconds", 60)

	if err := readConfigFile(v, path, "fitlog", v.GetString("data_dir")); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

// LoadServer reads the remote store server configuration from an optional
// file and REMOTESTORE_* environment variables. PORT overrides the port.
func LoadServer(path string) (ServerConfig, error) {
	v := newViper("REMOTESTORE")
	v.SetDefault("port", "8090")
	v.SetDefault("database_url", "file:remotestore.db")
	v.SetDefault("auth_token", "")
	setLogDefaults(v)

	if err := readConfigFile(v, path, "remotestore", "."); err != nil {
		return ServerConfig{}, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServerConfig{}, err
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	return cfg, nil
}

func (c *Config) normalize() {
	c.Remote.URL = strings.TrimRight(strings.TrimSpace(c.Remote.URL), "/")
	c.Remote.AccessKey = strings.TrimSpace(c.Remote.AccessKey)
	c.AdminKey = strings.TrimSpace(c.AdminKey)
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = 30
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = 5
	}
	if c.Sync.RetentionKeep < 0 {
		c.Sync.RetentionKeep = 100
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = filepath.Join(c.DataDir, "fitlog.db")
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (s SyncConfig) BackoffBase() time.Duration {
	return time.Duration(s.BackoffBaseSeconds) * time.Second
}

func (s SyncConfig) BackoffMax() time.Duration {
	return time.Duration(s.BackoffMaxSeconds) * time.Second
}

func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func newViper(prefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setLogDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 3)
}

func readConfigFile(v *viper.Viper, path, name string, dirs ...string) error {
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}
	v.SetConfigName(name)
	v.AddConfigPath(".")
	for _, d := range dirs {
		if strings.TrimSpace(d) != "" {
			v.AddConfigPath(d)
		}
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "fitlog")
	}
	return ".fitlog"
}
