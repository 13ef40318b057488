package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration and normalizes enum strings to
// lower case.
func Validate(cfg *Config) error {
	cfg.Encode.Framing = strings.ToLower(cfg.Encode.Framing)
	cfg.Encode.Merge = strings.ToLower(cfg.Encode.Merge)
	cfg.Encode.Colorspace = strings.ToLower(cfg.Encode.Colorspace)
	cfg.Decode.Framing = strings.ToLower(cfg.Decode.Framing)
	cfg.Decode.Format = strings.ToLower(cfg.Decode.Format)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := oneOf("encode.framing", cfg.Encode.Framing, "rows", "sequential"); err != nil {
		return err
	}
	if err := oneOf("encode.merge", cfg.Encode.Merge, "sequential", "prefix-sum"); err != nil {
		return err
	}
	if err := oneOf("encode.colorspace", cfg.Encode.Colorspace, "srgb", "linear"); err != nil {
		return err
	}
	if cfg.Encode.Workers < 0 {
		return fmt.Errorf("encode.workers must be >= 0, got %d", cfg.Encode.Workers)
	}
	switch cfg.Encode.Channels {
	case 0, 3, 4:
	default:
		return fmt.Errorf("encode.channels must be 0, 3 or 4, got %d", cfg.Encode.Channels)
	}
	if cfg.Encode.MaxMemoryMB < 0 {
		return fmt.Errorf("encode.max_memory_mb must be >= 0, got %d", cfg.Encode.MaxMemoryMB)
	}

	if err := oneOf("decode.framing", cfg.Decode.Framing, "rows", "sequential"); err != nil {
		return err
	}
	if err := oneOf("decode.format", cfg.Decode.Format, "png", "jpeg", "jpg"); err != nil {
		return err
	}

	if cfg.Output.ZstdLevel < 1 || cfg.Output.ZstdLevel > 4 {
		return fmt.Errorf("output.zstd_level must be 1-4, got %d", cfg.Output.ZstdLevel)
	}

	if err := oneOf("log.level", cfg.Log.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}

	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", field, strings.Join(allowed, "/"), value)
}
