// Package config loads the wizard server configuration from the
// environment. Flags in main may override individual fields.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr         string `env:"WIZARD_ADDR" envDefault:":8090"`
	BackendURL   string `env:"VALUERPRO_API_URL" envDefault:"http://localhost:8000"`
	BackendToken string `env:"VALUERPRO_API_TOKEN"`
	DBPath       string `env:"WIZARD_DB_PATH" envDefault:"wizard.db"`
	FlowDir      string `env:"WIZARD_FLOW_DIR"`
	Currency     string `env:"WIZARD_CURRENCY" envDefault:"LKR"`

	AutosaveDelay time.Duration `env:"WIZARD_AUTOSAVE_DELAY" envDefault:"2s"`
	SaveMaxTries  uint          `env:"WIZARD_SAVE_MAX_TRIES" envDefault:"3"`
	SaveTimeout   time.Duration `env:"WIZARD_SAVE_TIMEOUT" envDefault:"30s"`

	ChromePath string `env:"WIZARD_CHROME_PATH"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BackendURL) == "" {
		return errors.New("config: VALUERPRO_API_URL is required")
	}
	if strings.TrimSpace(c.BackendToken) == "" {
		return errors.New("config: VALUERPRO_API_TOKEN is required")
	}
	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("config: autosave delay %v must be positive", c.AutosaveDelay)
	}
	if c.SaveMaxTries == 0 {
		return errors.New("config: save max tries must be at least 1")
	}
	return nil
}
