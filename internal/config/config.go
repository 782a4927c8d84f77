package config

import (
	"fmt"
	"time"

	"github.com/hzrd149/process-pastry/internal/logger"
	"github.com/spf13/viper"
)

// Config is the daemon's own configuration, loaded from a TOML file.
// It is distinct from the managed process's env file: this file tells
// the daemon what to run and where to listen; the env file is the
// thing the daemon edits on the operator's behalf.
type Config struct {
	Listen      string        `toml:"listen" mapstructure:"listen"`
	Command     string        `toml:"command" mapstructure:"command"`
	WorkDir     string        `toml:"workdir" mapstructure:"workdir"`
	EnvFile     string        `toml:"env_file" mapstructure:"env_file"`
	ExampleFile string        `toml:"example_file" mapstructure:"example_file"` // defaults to env_file + ".example"
	SettleDelay time.Duration `toml:"settle_delay" mapstructure:"settle_delay"`
	StopTimeout time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
	LogLevel    string        `toml:"log_level" mapstructure:"log_level"`
	ProxyTarget string        `toml:"proxy_target" mapstructure:"proxy_target"` // unmatched routes proxy here
	StaticDir   string        `toml:"static_dir" mapstructure:"static_dir"`     // UI assets
	Auth        AuthConfig    `toml:"auth" mapstructure:"auth"`
	TLS         *TLSConfig    `toml:"tls" mapstructure:"tls"`
	Log         logger.Config `toml:"log" mapstructure:"log"`
}

// AuthConfig holds the single basic-auth credential pair guarding the
// API. Auth is enabled whenever a username is set.
type AuthConfig struct {
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
}

func (a AuthConfig) Enabled() bool { return a.Username != "" }

// TLSConfig configures the HTTPS listener.
type TLSConfig struct {
	Enabled      bool   `toml:"enabled" mapstructure:"enabled"`
	CertFile     string `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string `toml:"key_file" mapstructure:"key_file"`
	Dir          string `toml:"dir" mapstructure:"dir"`                     // directory-based certs (tls.crt/tls.key)
	AutoGenerate bool   `toml:"auto_generate" mapstructure:"auto_generate"` // self-sign into Dir when absent
}

// Load reads the TOML config at path and applies defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if c.Command == "" {
		return Config{}, fmt.Errorf("config %s: command is required", path)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.EnvFile == "" {
		c.EnvFile = ".env"
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
}
