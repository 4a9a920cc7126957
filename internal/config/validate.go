package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	if c.API.UploadTimeoutSeconds <= 0 {
		return errors.New("api.upload_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MatchThreshold < 0 || c.Upload.MatchThreshold > 1 {
		return fmt.Errorf("upload.match_threshold must be between 0 and 1, got %v", c.Upload.MatchThreshold)
	}
	if c.Upload.AutoUpdateThreshold < 0 || c.Upload.AutoUpdateThreshold > 1 {
		return fmt.Errorf("upload.auto_update_threshold must be between 0 and 1, got %v", c.Upload.AutoUpdateThreshold)
	}
	if c.Upload.HeartbeatSeconds <= 0 {
		return errors.New("upload.heartbeat_seconds must be positive")
	}
	if c.Upload.IdentifyAfterSeconds <= 0 {
		return errors.New("upload.identify_after_seconds must be positive")
	}
	if c.Upload.RevealMillis < 0 {
		return errors.New("upload.reveal_millis must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
