package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	WSURL       string        `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	APIURL      string        `env:"API_URL" envDefault:"http://localhost:8080/api"`
	Username    string        `env:"BOT_USERNAME" envDefault:"bot"`
	Password    string        `env:"BOT_PASSWORD" envDefault:"bot-password"`
	RoundID     string        `env:"ROUND_ID"`
	TapInterval time.Duration `env:"TAP_INTERVAL" envDefault:"200ms"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
