package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	PushGatewayURL    string `env:"PUSH_GATEWAY_URL,required=true"`
	EmailRelayURL     string `env:"EMAIL_RELAY_URL,required=true"`
	DirectoryURL      string `env:"DIRECTORY_URL,required=true"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	ChannelTimeoutSec int    `env:"CHANNEL_TIMEOUT_SEC,default=10"`
	SweepIntervalSec  int    `env:"SWEEP_INTERVAL_SEC,default=5"`
	SweepLimit        int    `env:"SWEEP_LIMIT,default=100"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
