// Package config builds the service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is constructed once at start and passed to each component.
type Config struct {
	AppTitle   string
	AppVersion string
	AppEnv     string
	LogLevel   slog.Level
	Port       string

	DatabaseURL   string
	MigrationsDir string
	RedisURL      string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	Cities         []string
	UpdateInterval time.Duration
	RefreshEnabled bool

	RateLimitPerMinute int
}

var defaultCities = []string{"London", "Almaty", "New York", "Tokyo", "Moscow"}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AppTitle:      getEnv("APP_TITLE", "Weather Service"),
		AppVersion:    getEnv("APP_VERSION", "dev"),
		Port:          getEnv("PORT", "8080"),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),
		WeatherAPIURL: getEnv("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5"),
	}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.DatabaseURL, err = databaseURL(); err != nil {
		return nil, err
	}
	cfg.RedisURL = redisURL()

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY is required")
	}

	if cfg.WeatherAPITimeout, err = time.ParseDuration(getEnv("WEATHER_API_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid WEATHER_API_TIMEOUT: %w", err)
	}

	cfg.Cities = parseCities(os.Getenv("CITIES_TO_TRACK"))

	seconds, err := getEnvInt("UPDATE_INTERVAL_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("UPDATE_INTERVAL_SECONDS must be positive, got %d", seconds)
	}
	cfg.UpdateInterval = time.Duration(seconds) * time.Second

	if cfg.RefreshEnabled, err = strconv.ParseBool(getEnv("REFRESH_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("invalid REFRESH_ENABLED: %w", err)
	}

	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// POSTGRES_* variables.
func databaseURL() (string, error) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}

	var missing []string
	get := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	user := get("POSTGRES_USER")
	password := get("POSTGRES_PASSWORD")
	db := get("POSTGRES_DB")
	host := get("POSTGRES_HOST")
	if len(missing) > 0 {
		return "", fmt.Errorf("DATABASE_URL or %s must be set", strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + getEnv("POSTGRES_PORT", "5432"),
		Path:   "/" + db,
	}
	return u.String(), nil
}

// redisURL prefers REDIS_URL and otherwise uses REDIS_HOST/REDIS_PORT.
func redisURL() string {
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v
	}
	return fmt.Sprintf("redis://%s:%s/0", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379"))
}

func parseCities(s string) []string {
	if strings.TrimSpace(s) == "" {
		return append([]string(nil), defaultCities...)
	}
	var cities []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cities = append(cities, c)
		}
	}
	return cities
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
