package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"DATABASE_URL"`
	} `yaml:"postgres"`
	Game struct {
		AccessCodeLength int    `yaml:"access_code_length" env:"ACCESS_CODE_LENGTH"`
		InviteBaseURL    string `yaml:"invite_base_url" env:"APP_URL"`
		QuestionCacheTTL string `yaml:"question_cache_ttl" env:"QUESTION_CACHE_TTL"`
		Prices           struct {
			Basic   int `yaml:"basic" env:"PRICE_BASIC"`
			Premium int `yaml:"premium" env:"PRICE_PREMIUM"`
		} `yaml:"prices"`
	} `yaml:"game"`
}

// Load reads YAML config from path, then applies environment overrides and
// defaults. A missing file is not an error so the service can run on
// environment variables alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file if present. Variables already
// set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Game.AccessCodeLength <= 0 {
		cfg.Game.AccessCodeLength = 6
	}
	if cfg.Game.InviteBaseURL == "" {
		cfg.Game.InviteBaseURL = "https://mrandmrs.tech"
	}
	if cfg.Game.Prices.Basic <= 0 {
		cfg.Game.Prices.Basic = 299
	}
	if cfg.Game.Prices.Premium <= 0 {
		cfg.Game.Prices.Premium = 499
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
