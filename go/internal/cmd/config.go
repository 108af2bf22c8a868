package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the host-provided configuration, read once at startup.
type Config struct {
	Source struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"source"`
	Overlay struct {
		AutoHideSeconds int  `yaml:"auto_hide_seconds"`
		HideArtwork     bool `yaml:"hide_artwork"`
	} `yaml:"overlay"`
	Status struct {
		Addr string `yaml:"addr"`
	} `yaml:"status"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Source.Host = "localhost"
	cfg.Source.Port = 8765
	cfg.Status.Addr = ":8766"
	return cfg
}

// loadConfig reads the optional yaml config file and applies environment
// overrides on top. A missing file is fine; a broken one is not.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	cfg.Source.Host = getEnv("WOLFWAVE_SOURCE_HOST", cfg.Source.Host)
	cfg.Status.Addr = getEnv("WOLFWAVE_STATUS_ADDR", cfg.Status.Addr)

	// Numeric overrides fail fast rather than falling back: a bad port is a
	// setup error only the operator can fix.
	if v := os.Getenv("WOLFWAVE_SOURCE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WOLFWAVE_SOURCE_PORT %q is not a number: %w", v, err)
		}
		cfg.Source.Port = port
	}
	if v := os.Getenv("WOLFWAVE_AUTO_HIDE_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WOLFWAVE_AUTO_HIDE_SECONDS %q is not a number: %w", v, err)
		}
		cfg.Overlay.AutoHideSeconds = secs
	}
	if v := os.Getenv("WOLFWAVE_HIDE_ARTWORK"); v != "" {
		hide, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WOLFWAVE_HIDE_ARTWORK %q is not a boolean: %w", v, err)
		}
		cfg.Overlay.HideArtwork = hide
	}
	return nil
}

func (c *Config) validate() error {
	if c.Source.Host == "" {
		return fmt.Errorf("source host must not be empty")
	}
	if c.Source.Port < 1 || c.Source.Port > 65535 {
		return fmt.Errorf("source port %d out of range", c.Source.Port)
	}
	if c.Overlay.AutoHideSeconds < 0 {
		return fmt.Errorf("auto_hide_seconds must not be negative")
	}
	return nil
}

// SourceURL builds the ws:// endpoint of the playback source.
func (c *Config) SourceURL() string {
	return fmt.Sprintf("ws://%s:%d", c.Source.Host, c.Source.Port)
}

// AutoHide returns the auto-hide duration; zero disables auto-hide.
func (c *Config) AutoHide() time.Duration {
	return time.Duration(c.Overlay.AutoHideSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
