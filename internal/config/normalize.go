package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv overrides file values with SPEAKERDASH_* variables.
func (c *Config) applyEnv() error {
	if value, ok := lookup("SPEAKERDASH_API_URL"); ok {
		c.API.BaseURL = value
	}
	if err := envInt("SPEAKERDASH_API_TIMEOUT", &c.API.TimeoutSeconds); err != nil {
		return err
	}
	if err := envInt("SPEAKERDASH_UPLOAD_TIMEOUT", &c.API.UploadTimeoutSeconds); err != nil {
		return err
	}
	if err := envFloat("SPEAKERDASH_MATCH_THRESHOLD", &c.Upload.MatchThreshold); err != nil {
		return err
	}
	if err := envFloat("SPEAKERDASH_AUTO_UPDATE_THRESHOLD", &c.Upload.AutoUpdateThreshold); err != nil {
		return err
	}
	if value, ok := lookup("SPEAKERDASH_LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
	if value, ok := lookup("SPEAKERDASH_LOG_FORMAT"); ok {
		c.Logging.Format = value
	}
	if value, ok := lookup("SPEAKERDASH_LOG_FILE"); ok {
		c.Logging.File = value
	}
	if value, ok := lookup("SPEAKERDASH_FIXTURE_ADDR"); ok {
		c.Fixture.Addr = value
	}
	if value, ok := lookup("SPEAKERDASH_FIXTURE_DB"); ok {
		c.Fixture.DBPath = value
	}
	return nil
}

func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func envInt(key string, dst *int) error {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, value)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	value, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", key, value)
	}
	*dst = f
	return nil
}

func (c *Config) normalize() error {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}

	c.Fixture.Addr = strings.TrimSpace(c.Fixture.Addr)
	if c.Fixture.Addr == "" {
		c.Fixture.Addr = defaultFixtureAddr
	}
	if strings.TrimSpace(c.Fixture.DBPath) == "" {
		c.Fixture.DBPath = defaultFixtureDB
	}
	if c.Fixture.DBPath, err = expandPath(strings.TrimSpace(c.Fixture.DBPath)); err != nil {
		return fmt.Errorf("fixture.db_path: %w", err)
	}
	return nil
}
