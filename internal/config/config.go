package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config carries all runtime settings, sourced from the environment.
type Config struct {
	Addr           string        `env:"COLLEGIA_ADDR" envDefault:":8080"`
	PGDSN          string        `env:"COLLEGIA_PG_DSN"`
	AuthSecret     string        `env:"COLLEGIA_AUTH_SECRET"`
	TokenTTL       time.Duration `env:"COLLEGIA_TOKEN_TTL" envDefault:"30m"`
	RateLimitRPS   int           `env:"COLLEGIA_RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int           `env:"COLLEGIA_RATE_LIMIT_BURST" envDefault:"100"`
	MaxBodyBytes   int64         `env:"COLLEGIA_MAX_BODY_BYTES" envDefault:"1048576"`
	AuditBuffer    int           `env:"COLLEGIA_AUDIT_BUFFER" envDefault:"1024"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
