package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr   string
	APIURL       string
	APITimeout   time.Duration
	Secret       string
	SessionKey   string
	CookieSecure bool
	ChallengeTTL time.Duration
	// empty driver means challenges are kept in memory
	ChallengeDBDriver string
	ChallengeDBURL    string
	LogLevel          slog.Level
}

// LoadEnvFile loads .env into the process environment when the file exists.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment. SECRET, API_URL and
// SESSION_KEY have no defaults.
func Load() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		ListenAddr:        get("LISTEN_ADDR", ":8080"),
		APIURL:            get("API_URL", ""),
		Secret:            get("SECRET", ""),
		SessionKey:        get("SESSION_KEY", ""),
		ChallengeDBDriver: get("CHALLENGE_DB_DRIVER", ""),
		ChallengeDBURL:    get("CHALLENGE_DB_URL", ""),
	}

	var errs []error
	if cfg.Secret == "" {
		errs = append(errs, errors.New("SECRET is required"))
	}
	if cfg.APIURL == "" {
		errs = append(errs, errors.New("API_URL is required"))
	}
	if len(cfg.SessionKey) < 32 {
		errs = append(errs, errors.New("SESSION_KEY must be at least 32 bytes"))
	}

	var err error
	if cfg.APITimeout, err = time.ParseDuration(get("API_TIMEOUT", "10s")); err != nil {
		errs = append(errs, fmt.Errorf("API_TIMEOUT: %w", err))
	}
	if cfg.ChallengeTTL, err = time.ParseDuration(get("CHALLENGE_TTL", "15m")); err != nil {
		errs = append(errs, fmt.Errorf("CHALLENGE_TTL: %w", err))
	}
	if cfg.CookieSecure, err = strconv.ParseBool(get("COOKIE_SECURE", "true")); err != nil {
		errs = append(errs, fmt.Errorf("COOKIE_SECURE: %w", err))
	}
	if err = cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	switch cfg.ChallengeDBDriver {
	case "":
	case "pgx", "sqlite":
		if cfg.ChallengeDBURL == "" {
			errs = append(errs, errors.New("CHALLENGE_DB_URL is required when CHALLENGE_DB_DRIVER is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("CHALLENGE_DB_DRIVER %q: want pgx or sqlite", cfg.ChallengeDBDriver))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}
