package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	// RabbitMQURL switches delivery dispatch to the broker + cmd/worker
	// mode; empty means detached in-process dispatch.
	RabbitMQURL string `env:"RABBITMQ_URL"`

	MailAPIURL       string `env:"MAIL_API_URL,required=true"`
	MailAPIKey       string `env:"MAIL_API_KEY"`
	MailFrom         string `env:"MAIL_FROM,required=true"`
	OrderNotifyEmail string `env:"ORDER_NOTIFY_EMAIL,required=true"`

	// PublicBaseURL overrides the link origin used in notification emails;
	// deployment-provided URLs and a default domain back it up.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	MaxEmailRetries  int `env:"MAX_EMAIL_RETRIES,default=5"`
	SweepIntervalSec int `env:"SWEEP_INTERVAL_SEC,default=60"`
	SweepLimit       int `env:"SWEEP_LIMIT,default=50"`
	SendTimeoutSec   int `env:"SEND_TIMEOUT_SEC,default=15"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
