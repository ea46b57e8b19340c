// Package config loads process settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings are the process-level knobs shared by the CLI and server.
type Settings struct {
	DBPath    string `env:"ABACUS_DB_PATH"    envDefault:"./abacus.db"`
	Port      int    `env:"ABACUS_PORT"       envDefault:"8080"`
	Workers   int    `env:"ABACUS_WORKERS"    envDefault:"0"`
	LogLevel  string `env:"ABACUS_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"ABACUS_LOG_FORMAT" envDefault:"console"`
	// APIToken protects the /api routes of the server when set.
	APIToken string `env:"ABACUS_API_TOKEN"`
}

// Load reads a .env file from the working directory when present, then
// parses Settings from the environment.
func Load() (Settings, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// Defaults returns the settings used when no environment is set.
func Defaults() Settings {
	s, _ := parse(env.Options{Environment: map[string]string{}})
	return s
}

func parse(opts env.Options) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}
