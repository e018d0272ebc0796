package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

const minJWTSecretLen = 16

var ErrJWTSecretTooShort = errors.New("JWT_SECRET must be at least 16 characters")

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	SecureCookie bool          `env:"SECURE_COOKIE" envDefault:"false"`

	RoundDuration    time.Duration `env:"ROUND_DURATION" envDefault:"60s"`
	CooldownDuration time.Duration `env:"COOLDOWN_DURATION" envDefault:"30s"`
	TapLockTimeout   time.Duration `env:"TAP_LOCK_TIMEOUT" envDefault:"2s"`

	LoginRatePerSec float64 `env:"LOGIN_RATE_PER_SEC" envDefault:"5"`
	LoginBurst      int     `env:"LOGIN_BURST" envDefault:"10"`

	WSSendBuffer int `env:"WS_SEND_BUFFER" envDefault:"32"`

	PushEnabled           bool          `env:"ROUND_PUSH_ENABLED" envDefault:"false"`
	PushTargetsJSON       string        `env:"ROUND_PUSH_TARGETS_JSON"`
	PushConfigPath        string        `env:"ROUND_PUSH_CONFIG_PATH"`
	PushConfigReload      time.Duration `env:"ROUND_PUSH_CONFIG_RELOAD" envDefault:"1s"`
	PushWorkers           int           `env:"ROUND_PUSH_WORKERS" envDefault:"2"`
	PushRetryMax          int           `env:"ROUND_PUSH_RETRY_MAX" envDefault:"3"`
	PushRetryBase         time.Duration `env:"ROUND_PUSH_RETRY_BASE" envDefault:"500ms"`
	PushUpdateMinInterval time.Duration `env:"ROUND_PUSH_UPDATE_MIN_INTERVAL" envDefault:"3s"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return cfg, ErrJWTSecretTooShort
	}
	return cfg, nil
}
