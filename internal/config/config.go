package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	SignalURL  string `mapstructure:"signal_url"`
	MeetAPIURL string `mapstructure:"meet_api_url"`

	RoomID      string `mapstructure:"room_id"`
	DisplayName string `mapstructure:"display_name"`
	UserID      string `mapstructure:"user_id"`

	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectBackoff  time.Duration `mapstructure:"reconnect_backoff"`
	PendingWindow     time.Duration `mapstructure:"pending_window"`
	StaleGrace        time.Duration `mapstructure:"stale_grace"`

	StatusPort int `mapstructure:"status_port"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("signal_url", "ws://localhost:4001/ws")
	v.SetDefault("meet_api_url", "http://localhost:4000")
	v.SetDefault("display_name", "guest")
	v.SetDefault("reconnect_attempts", 5)
	v.SetDefault("reconnect_backoff", "500ms")
	v.SetDefault("pending_window", "5s")
	v.SetDefault("stale_grace", "4s")
	v.SetDefault("status_port", 8090)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
