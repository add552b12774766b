package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zitrono/totalis-supabase-sub000/internal/services"
	"github.com/zitrono/totalis-supabase-sub000/internal/utils"
)

// Config is loaded from an optional YAML file and then overridden by
// environment variables. All fields have working defaults so the server
// starts with no file at all.
type Config struct {
	Addr          string `yaml:"addr"`
	SQLitePath    string `yaml:"sqlite_path"`
	MigrationsDir string `yaml:"migrations_dir"`
	// MemoryStore selects the in-memory store instead of SQLite.
	MemoryStore bool `yaml:"memory_store"`

	RateLimit       int `yaml:"rate_limit"`
	RateLimitWindow int `yaml:"rate_limit_window_seconds"`

	// Templates override the built-in question sets per category.
	Templates []services.QuestionTemplate `yaml:"templates"`
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		SQLitePath:      "totalis.db",
		RateLimit:       120,
		RateLimitWindow: 60,
	}
}

// Load reads the YAML file at path (or TOTALIS_CONFIG, or nothing) and
// applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TOTALIS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = utils.SafeEnv("TOTALIS_ADDR", c.Addr)
	c.SQLitePath = utils.SafeEnv("TOTALIS_SQLITE_PATH", c.SQLitePath)
	c.MigrationsDir = utils.SafeEnv("TOTALIS_MIGRATIONS_DIR", c.MigrationsDir)
	if v := os.Getenv("TOTALIS_MEMORY_STORE"); v != "" {
		c.MemoryStore = v == "1" || v == "true"
	}
	if v := os.Getenv("TOTALIS_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimit = n
		}
	}
	if v := os.Getenv("TOTALIS_RATE_LIMIT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimitWindow = n
		}
	}
}
