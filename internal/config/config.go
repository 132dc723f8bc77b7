package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from flags, files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	TargetsFile    string `mapstructure:"targets_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	// URL switches the binary into single-fetch mode.
	URL string `mapstructure:"url"`

	Port               int           `mapstructure:"port"`
	DialTimeoutSeconds int64         `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds int64         `mapstructure:"read_timeout_seconds"`
	DialTimeout        time.Duration `mapstructure:"-"`
	ReadTimeout        time.Duration `mapstructure:"-"`

	FetchIntervalSeconds int64         `mapstructure:"fetch_interval"`
	FetchInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from command-line flags, environment variables and configs/.env.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-rawfetch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("targets_file", "./configs/targets.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("port", 443)
	v.SetDefault("dial_timeout_seconds", 10)
	v.SetDefault("read_timeout_seconds", 30)
	v.SetDefault("fetch_interval", 0) // single pass
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/pages.db")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	fs := pflag.NewFlagSet("rawfetch", pflag.ContinueOnError)
	fs.String("url", "", "fetch a single https URL and print its text")
	fs.String("log_level", "info", "log level (debug, info, warn, error)")
	fs.String("targets_file", "./configs/targets.yaml", "targets registry file (YAML or JSON)")
	fs.String("publishers_file", "./configs/publishers.yaml", "publishers registry file (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if fs.NArg() > 0 && !fs.Changed("url") {
		v.Set("url", fs.Arg(0))
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.URL = strings.TrimSpace(cfg.URL)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.DialTimeoutSeconds < 0 || cfg.ReadTimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid timeouts (must be zero or positive seconds)")
	}
	cfg.DialTimeout = time.Duration(cfg.DialTimeoutSeconds) * time.Second
	cfg.ReadTimeout = time.Duration(cfg.ReadTimeoutSeconds) * time.Second

	if cfg.FetchIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid fetch_interval (must be zero or positive seconds)")
	}
	cfg.FetchInterval = time.Duration(cfg.FetchIntervalSeconds) * time.Second

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}
