package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode            string        `mapstructure:"mode"`
	Port            int           `mapstructure:"port"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	Secret          string        `mapstructure:"secret"`
	ChannelLifetime time.Duration `mapstructure:"channel_lifetime"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	RequestLimit    int           `mapstructure:"request_limit"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
}

// Load reads the yaml config at path. An empty path falls back to
// config/config.<CONFIG_ENV>.yaml with env dev; a missing file leaves
// the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = fmt.Sprintf("config/config.%s.yaml", env)
	}

	v.SetConfigFile(path)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("channel_lifetime", "60s")
	v.SetDefault("sweep_interval", "10s")
	v.SetDefault("request_limit", 50)
	v.SetDefault("request_interval", "10s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", path)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d\n", cfg.Mode, cfg.Port)
	return &cfg, nil
}
