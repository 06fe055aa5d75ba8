package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of bountyd.
type Config struct {
	HTTPAddr    string        `mapstructure:"http_addr"`
	StoreDriver string        `mapstructure:"store_driver"`
	PGDSN       string        `mapstructure:"pg_dsn"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	AuthMaxSkew time.Duration `mapstructure:"auth_max_skew"`

	RateLimitCapacity int `mapstructure:"rate_limit_capacity"`
	RateLimitRefill   int `mapstructure:"rate_limit_refill"`

	EnableFaucet bool   `mapstructure:"enable_faucet"`
	MCPIdentity  string `mapstructure:"mcp_identity"`
}

var drivers = map[string]bool{"memory": true, "postgres": true, "sqlite": true}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":3002")
	v.SetDefault("store_driver", "memory")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("sqlite_path", "bountyd.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("auth_max_skew", 5*time.Minute)
	v.SetDefault("rate_limit_capacity", 100)
	v.SetDefault("rate_limit_refill", 10)
	v.SetDefault("enable_faucet", false)
	v.SetDefault("mcp_identity", "")
}

// Load reads defaults, then an optional config file, then BOUNTY_* env vars.
// An empty path searches for bountyd.yaml in the working directory.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOUNTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bountyd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if !drivers[c.StoreDriver] {
		return fmt.Errorf("unknown store driver %q (want memory, postgres or sqlite)", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && strings.TrimSpace(c.PGDSN) == "" {
		return errors.New("BOUNTY_PG_DSN required when BOUNTY_STORE_DRIVER=postgres")
	}
	if c.AuthMaxSkew <= 0 {
		return errors.New("auth_max_skew must be positive")
	}
	if c.RateLimitCapacity <= 0 || c.RateLimitRefill <= 0 {
		return errors.New("rate limit capacity and refill must be positive")
	}
	return nil
}
