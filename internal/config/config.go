// Package config assembles the weatherbot configuration on top of the core config.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/weatherbot/core/config"
	coredatabase "github.com/m3rciful/weatherbot/core/database"
)

const (
	// DefaultWeatherEndpoint is the OpenWeatherMap current-weather endpoint.
	DefaultWeatherEndpoint = "https://api.openweathermap.org/data/2.5/weather"
	// DefaultGeocodeEndpoint is the OpenCage reverse-geocoding endpoint.
	DefaultGeocodeEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	// DefaultUpstreamTimeout bounds a single provider call.
	DefaultUpstreamTimeout = 10 * time.Second

	// StateBackendMemory keeps conversation steps in process.
	StateBackendMemory = "memory"
	// StateBackendRedis keeps conversation steps in Redis.
	StateBackendRedis = "redis"
)

// WeatherConfig configures the weather provider.
type WeatherConfig struct {
	APIKey   string        `yaml:"api_key" envconfig:"WEATHER_API_KEY"`
	Endpoint string        `yaml:"endpoint" envconfig:"WEATHER_ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"WEATHER_TIMEOUT"`
	// DefaultCity is used when no geocoding key is configured.
	DefaultCity string `yaml:"default_city" envconfig:"CITY"`
}

// GeocodeConfig configures reverse geocoding.
type GeocodeConfig struct {
	APIKey   string        `yaml:"api_key" envconfig:"GEOCODE_API_KEY"`
	Endpoint string        `yaml:"endpoint" envconfig:"GEOCODE_ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"GEOCODE_TIMEOUT"`
}

// AdminConfig configures the admin HTTP API. An empty Listen disables it.
type AdminConfig struct {
	Listen string `yaml:"listen" envconfig:"ADMIN_LISTEN"`
	Token  string `yaml:"token" envconfig:"ADMIN_TOKEN"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// StateConfig selects where conversation steps live.
type StateConfig struct {
	Backend string        `yaml:"backend" envconfig:"STATE_BACKEND"`
	TTL     time.Duration `yaml:"ttl" envconfig:"STATE_TTL"`
	Redis   RedisConfig   `yaml:"redis"`
}

// AppConfig is the full weatherbot configuration.
type AppConfig struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Weather  WeatherConfig       `yaml:"weather"`
	Geocode  GeocodeConfig       `yaml:"geocode"`
	Admin    AdminConfig         `yaml:"admin"`
	State    StateConfig         `yaml:"state"`
}

// UsesDatabase reports whether subscribers are kept in Postgres. Without a
// database host they live in memory and are lost on restart.
func (c *AppConfig) UsesDatabase() bool {
	return c != nil && c.Database.Host != ""
}

// CoreConfig exposes the embedded core configuration.
func (c *AppConfig) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, applies env overrides and validates the result.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	cfg.Database.Host = strings.TrimSpace(cfg.Database.Host)
	if cfg.Database.Host != "" {
		if cfg.Database.Name == "" {
			return fmt.Errorf("database.name is required when database.host is set")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
	}

	cfg.Weather.Endpoint = strings.TrimSpace(cfg.Weather.Endpoint)
	if cfg.Weather.Endpoint == "" {
		cfg.Weather.Endpoint = DefaultWeatherEndpoint
	}
	if cfg.Weather.Timeout <= 0 {
		cfg.Weather.Timeout = DefaultUpstreamTimeout
	}
	cfg.Weather.DefaultCity = strings.TrimSpace(cfg.Weather.DefaultCity)

	cfg.Geocode.Endpoint = strings.TrimSpace(cfg.Geocode.Endpoint)
	if cfg.Geocode.Endpoint == "" {
		cfg.Geocode.Endpoint = DefaultGeocodeEndpoint
	}
	if cfg.Geocode.Timeout <= 0 {
		cfg.Geocode.Timeout = DefaultUpstreamTimeout
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.State.Backend))
	switch backend {
	case "":
		backend = StateBackendMemory
	case StateBackendMemory:
	case StateBackendRedis:
		if strings.TrimSpace(cfg.State.Redis.Addr) == "" {
			return fmt.Errorf("state.redis.addr is required when state.backend is 'redis'")
		}
	default:
		return fmt.Errorf("invalid state.backend %q; allowed: memory, redis", cfg.State.Backend)
	}
	cfg.State.Backend = backend
	if cfg.State.TTL < 0 {
		return fmt.Errorf("state.ttl must be >= 0")
	}

	cfg.Admin.Listen = strings.TrimSpace(cfg.Admin.Listen)
	return nil
}
