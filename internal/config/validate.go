package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/recipecast/config.toml"
		}
		return fmt.Errorf("server.base_url is required; edit %s (create with 'recipecast config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("server.base_url %q is not a valid URL", c.Server.BaseURL)
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.SizeCeilingBytes == 0 {
		return errors.New("video.size_ceiling_bytes must be positive")
	}
	if c.Video.MaxDimension == 0 {
		return errors.New("video.max_dimension must be positive")
	}
	if c.Video.TargetBitrateBps == 0 {
		return errors.New("video.target_bitrate_bps must be positive")
	}
	if c.Video.FrameRate == 0 {
		return errors.New("video.frame_rate must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
