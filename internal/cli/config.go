package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/planviz/planviz/pkg/cache"
	"github.com/planviz/planviz/pkg/errors"
	"github.com/planviz/planviz/pkg/narrate"
	"github.com/planviz/planviz/pkg/render"
)

// Cache backends selectable in the config file.
const (
	cacheBackendFile  = "file"
	cacheBackendRedis = "redis"
	cacheBackendNone  = "none"
)

// Config holds user preferences loaded from ~/.config/planviz/config.toml.
// All fields have working defaults so the file is optional.
type Config struct {
	Render  RenderConfig  `toml:"render"`
	Narrate NarrateConfig `toml:"narrate"`
	Cache   CacheConfig   `toml:"cache"`
}

// RenderConfig sets default rendering preferences.
type RenderConfig struct {
	// Formats rendered when --format is not given.
	Formats []string `toml:"formats"`

	// Detailed includes resource names in node labels.
	Detailed bool `toml:"detailed"`
}

// NarrateConfig points at the local model used for prose summaries.
type NarrateConfig struct {
	Host  string `toml:"host"`
	Model string `toml:"model"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	// Backend is one of "file", "redis" or "none".
	Backend string `toml:"backend"`

	// Redis connection settings, used when Backend is "redis".
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Render: RenderConfig{
			Formats: []string{render.FormatSVG},
		},
		Narrate: NarrateConfig{
			Host:  narrate.DefaultHost,
			Model: narrate.DefaultModel,
		},
		Cache: CacheConfig{
			Backend: cacheBackendFile,
		},
	}
}

// LoadConfig reads the config file, layering it over the defaults.
// A missing file is not an error; a malformed one is.
func LoadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return DefaultConfig(), errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if err := cfg.validate(); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// validate checks the fields a typo would most likely break.
func (c *Config) validate() error {
	switch c.Cache.Backend {
	case cacheBackendFile, cacheBackendRedis, cacheBackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown cache backend %q (must be %q, %q or %q)",
			c.Cache.Backend, cacheBackendFile, cacheBackendRedis, cacheBackendNone)
	}
	for _, f := range c.Render.Formats {
		if err := render.ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// redisOptions converts the cache section into redis client options.
func (c *Config) redisOptions() cache.RedisOptions {
	return cache.RedisOptions{
		Addr:     c.Cache.RedisAddr,
		Password: c.Cache.RedisPassword,
		DB:       c.Cache.RedisDB,
		Prefix:   appName,
	}
}

// configPath returns the config file path using XDG standard
// (~/.config/planviz/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
