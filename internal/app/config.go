package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/specialistvlad/questgrid/internal/auth"
)

// Settings holds all the configuration a Runtime needs.
type Settings struct {
	SuitePath string `env:"QUESTGRID_SUITE"`

	LogFormat       string        `env:"QUESTGRID_LOG_FORMAT" envDefault:"text"`
	LogLevel        string        `env:"QUESTGRID_LOG_LEVEL" envDefault:"info"`
	AuthScope       string        `env:"QUESTGRID_AUTH_SCOPE" envDefault:"credentials"`
	AuthTTL         time.Duration `env:"QUESTGRID_AUTH_TTL"`
	Workers         int           `env:"QUESTGRID_WORKERS" envDefault:"4"`
	HealthcheckPort int           `env:"QUESTGRID_HEALTHCHECK_PORT"`

	// CheckDatabases makes the command connect to every suite database.
	CheckDatabases bool `env:"QUESTGRID_CHECK_DATABASES"`
}

// SettingsFromEnv loads settings from environment variables and validates
// them.
func SettingsFromEnv() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return NewSettings(s)
}

// NewSettings validates s and returns a normalized copy.
func NewSettings(s Settings) (*Settings, error) {
	s.LogFormat = strings.ToLower(s.LogFormat)
	if s.LogFormat == "" {
		s.LogFormat = "text"
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	s.LogLevel = strings.ToLower(s.LogLevel)
	switch s.LogLevel {
	case "":
		s.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	if _, err := auth.ParseScope(s.AuthScope); err != nil {
		return nil, err
	}
	if s.AuthTTL < 0 {
		return nil, errors.New("auth ttl must not be negative")
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.HealthcheckPort < 0 || s.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", s.HealthcheckPort)
	}
	return &s, nil
}
