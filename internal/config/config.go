package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	GupshupAPIKey  string `env:"GUPSHUP_API_KEY"`
	GupshupSource  string `env:"GUPSHUP_SOURCE"`
	GupshupAppName string `env:"GUPSHUP_APP_NAME" envDefault:"RolesClubBotToastmasters"`
	VerifyToken    string `env:"VERIFY_TOKEN" envDefault:"rolesclub-verify"`
	ClubsDir       string `env:"CLUBS_DIR" envDefault:"data/clubs"`
	Port           string `env:"PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env if present, then parses the environment. It fails fast
// when a required variable is missing.
func Load() (*Config, error) {
	// A missing .env file is fine; variables may come from the real env.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	var missing []string
	if cfg.GupshupAPIKey == "" {
		missing = append(missing, "GUPSHUP_API_KEY")
	}
	if cfg.GupshupSource == "" {
		missing = append(missing, "GUPSHUP_SOURCE")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}
