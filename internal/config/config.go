// Package config loads the gqoi command-line configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gqoi configuration.
type Config struct {
	Encode EncodeConfig `yaml:"encode"`
	Decode DecodeConfig `yaml:"decode"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// EncodeConfig contains encoder defaults.
type EncodeConfig struct {
	Framing     string `yaml:"framing"`       // rows, sequential
	Merge       string `yaml:"merge"`         // sequential, prefix-sum
	Workers     int    `yaml:"workers"`       // 0 = one per CPU
	Channels    int    `yaml:"channels"`      // 0 = auto, 3, 4
	Colorspace  string `yaml:"colorspace"`    // srgb, linear
	MaxMemoryMB int    `yaml:"max_memory_mb"` // 0 = unlimited
}

// DecodeConfig contains decoder defaults.
type DecodeConfig struct {
	Framing string `yaml:"framing"` // rows, sequential
	Format  string `yaml:"format"`  // png, jpeg
}

// OutputConfig controls how encoded files are written.
type OutputConfig struct {
	Zstd      bool `yaml:"zstd"`       // wrap the stream in a zstd frame
	ZstdLevel int  `yaml:"zstd_level"` // 1 fastest .. 4 best
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Encode: EncodeConfig{
			Framing:    "rows",
			Merge:      "sequential",
			Colorspace: "srgb",
		},
		Decode: DecodeConfig{
			Framing: "rows",
			Format:  "png",
		},
		Output: OutputConfig{ZstdLevel: 2},
		Log:    LogConfig{Level: "warn"},
	}
}

// Load reads and parses a YAML configuration file. Fields missing from
// the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
