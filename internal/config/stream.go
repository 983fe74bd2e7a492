package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// StreamConfig is the part of the config file that can change while the
// server runs.
type StreamConfig struct {
	Input struct {
		URL string `toml:"url"`
	} `toml:"input"`
	FFmpeg struct {
		Options   []string `toml:"options"`
		ExtraArgs string   `toml:"extra_args"`
	} `toml:"ffmpeg"`
}

// InputURL returns the configured input, with HLSNODE_INPUT_URL taking
// precedence over the file like it does at startup.
func (c StreamConfig) InputURL() string {
	if env := os.Getenv(EnvPrefix + "INPUT_URL"); env != "" {
		return env
	}
	return c.Input.URL
}

// LoadStreamConfig reads the reloadable stream settings from a TOML file.
func LoadStreamConfig(path string) (StreamConfig, error) {
	var cfg StreamConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
