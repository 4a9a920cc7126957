package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// API contains backend connection settings.
type API struct {
	BaseURL              string `toml:"base_url"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	UploadTimeoutSeconds int    `toml:"upload_timeout_seconds"`
}

// Upload contains defaults for conversation uploads and the progress display.
type Upload struct {
	MatchThreshold       float64 `toml:"match_threshold"`
	AutoUpdateThreshold  float64 `toml:"auto_update_threshold"`
	HeartbeatSeconds     int     `toml:"heartbeat_seconds"`
	IdentifyAfterSeconds int     `toml:"identify_after_seconds"`
	RevealMillis         int     `toml:"reveal_millis"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Fixture contains settings for the local reference backend.
type Fixture struct {
	Addr   string `toml:"addr"`
	DBPath string `toml:"db_path"`
}

// Config encapsulates all configuration values for speakerdash.
type Config struct {
	API     API     `toml:"api"`
	Upload  Upload  `toml:"upload"`
	Logging Logging `toml:"logging"`
	Fixture Fixture `toml:"fixture"`
}

// DefaultConfigPath returns the absolute path of the user config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses and validates a configuration file. An explicit path
// that does not exist is not an error; defaults apply. The returned config
// has environment overrides applied and paths expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads ./.env, or the file named by SPEAKERDASH_ENV_FILE. Values
// already present in the environment win.
func loadDotEnv() error {
	envFile := strings.TrimSpace(os.Getenv("SPEAKERDASH_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
		if _, err := os.Stat(envFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("speakerdash.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// RequestTimeout is the deadline for ordinary API calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// UploadTimeout is the deadline for conversation uploads.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.API.UploadTimeoutSeconds) * time.Second
}

// Heartbeat is the interval of the upload progress heartbeat.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Upload.HeartbeatSeconds) * time.Second
}

// IdentifyAfter is how long after the upload body is sent the progress
// display assumes speaker identification has started.
func (c *Config) IdentifyAfter() time.Duration {
	return time.Duration(c.Upload.IdentifyAfterSeconds) * time.Second
}

// Reveal is the spacing between revealed upload log lines.
func (c *Config) Reveal() time.Duration {
	return time.Duration(c.Upload.RevealMillis) * time.Millisecond
}

// CreateSample writes the default configuration to path.
func CreateSample(path string) error {
	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode sample config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	if pathValue == ":memory:" {
		return pathValue, nil
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
