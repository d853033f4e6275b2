// Package config reads the module's configuration from the environment.
package config

import (
	"fmt"
	"time"

	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config carries everything the CLI subcommands need. FILMWEB_SECRET is
// the long-lived `_artuser_prm` cookie value the token exchange consumes;
// it is only required by sync.
type Config struct {
	Secret  string `env:"FILMWEB_SECRET"`
	BaseURL string `env:"FILMWEB_BASE_URL" envDefault:"https://www.filmweb.pl/api/v1"`
	DBPath  string `env:"DB_PATH" envDefault:"filmweb.db"`

	ExportPath string `env:"EXPORT_PATH" envDefault:"filmweb.csv"`

	// Politeness delay before every outbound call, optionally jittered.
	Throttle       time.Duration `env:"FETCH_THROTTLE" envDefault:"200ms"`
	ThrottleJitter bool          `env:"FETCH_THROTTLE_JITTER" envDefault:"true"`

	MovieTTL       time.Duration `env:"MOVIE_TTL" envDefault:"168h"`
	MovieRatingTTL time.Duration `env:"MOVIE_RATING_TTL" envDefault:"2h"`
	PrimaryUserTTL time.Duration `env:"PRIMARY_USER_TTL" envDefault:"60s"`
	FriendTTL      time.Duration `env:"FRIEND_TTL" envDefault:"24h"`

	ListenAddr string     `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
