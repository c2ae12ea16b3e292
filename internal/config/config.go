package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		DSN string `yaml:"dsn"`
	} `yaml:"sqlite"`
	Quiz struct {
		TTL             string `yaml:"ttl"`
		QuestionSeconds int    `yaml:"questionSeconds"`
		StoreExpiration string `yaml:"storeExpiration"`
		SweepInterval   string `yaml:"sweepInterval"`
	} `yaml:"quiz"`
	Attendance struct {
		Secret          string `yaml:"secret"`
		Validity        string `yaml:"validity"`
		RefreshInterval string `yaml:"refreshInterval"`
		RecordURL       string `yaml:"recordURL"`
		ReplayTTL       string `yaml:"replayTTL"`
		Retries         *int   `yaml:"retries"`
	} `yaml:"attendance"`
	Auth struct {
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"tokenTTL"`
		Users    []User `yaml:"users"`
	} `yaml:"auth"`
	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`
}

// User is a login account; PasswordHash is produced by the hash-password command.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"`
	Role         string `yaml:"role"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("QR_SECRET")); v != "" {
		cfg.Attendance.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_SECRET")); v != "" {
		cfg.Auth.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Postgres.URL = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
