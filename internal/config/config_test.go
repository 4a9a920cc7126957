package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jwulff/speakerdash/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"SPEAKERDASH_ENV_FILE", "SPEAKERDASH_API_URL", "SPEAKERDASH_API_TIMEOUT",
		"SPEAKERDASH_UPLOAD_TIMEOUT", "SPEAKERDASH_MATCH_THRESHOLD", "SPEAKERDASH_AUTO_UPDATE_THRESHOLD",
		"SPEAKERDASH_LOG_LEVEL", "SPEAKERDASH_LOG_FORMAT", "SPEAKERDASH_LOG_FILE",
		"SPEAKERDASH_FIXTURE_ADDR", "SPEAKERDASH_FIXTURE_DB",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "speakerdash", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.RequestTimeout() != 30*time.Second || cfg.UploadTimeout() != 10*time.Minute {
		t.Fatalf("unexpected timeouts %v / %v", cfg.RequestTimeout(), cfg.UploadTimeout())
	}
	if cfg.Upload.MatchThreshold != 0.40 || cfg.Upload.AutoUpdateThreshold != 0.50 {
		t.Fatalf("unexpected thresholds %+v", cfg.Upload)
	}
	if cfg.Heartbeat() != 5*time.Second || cfg.IdentifyAfter() != time.Minute || cfg.Reveal() != 50*time.Millisecond {
		t.Fatalf("unexpected upload timings %+v", cfg.Upload)
	}
	if cfg.Logging.File != filepath.Join(home, ".local", "state", "speakerdash", "speakerdash.log") {
		t.Fatalf("log file not expanded: %q", cfg.Logging.File)
	}
	if cfg.Fixture.DBPath != filepath.Join(home, ".local", "share", "speakerdash", "fixture.sqlite") {
		t.Fatalf("fixture db not expanded: %q", cfg.Fixture.DBPath)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
[api]
base_url = "https://speakers.example.com/"
timeout_seconds = 12

[upload]
match_threshold = 0.3

[logging]
level = "DEBUG"
format = "json"

[fixture]
db_path = ":memory:"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.API.BaseURL != "https://speakers.example.com" {
		t.Errorf("trailing slash kept: %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 12 || cfg.API.UploadTimeoutSeconds != 600 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Upload.MatchThreshold != 0.3 || cfg.Upload.AutoUpdateThreshold != 0.5 {
		t.Errorf("upload = %+v", cfg.Upload)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Fixture.DBPath != ":memory:" {
		t.Errorf("in-memory db path rewritten to %q", cfg.Fixture.DBPath)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "[api]\nbase_ulr = \"http://x\"\n")
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected an error for a misspelled key")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "[api]\nbase_url = \"http://file:8000\"\ntimeout_seconds = 5\n")
	t.Setenv("SPEAKERDASH_API_URL", "http://env:9000")
	t.Setenv("SPEAKERDASH_API_TIMEOUT", "45")
	t.Setenv("SPEAKERDASH_LOG_LEVEL", "warn")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://env:9000" || cfg.API.TimeoutSeconds != 45 || cfg.Logging.Level != "warn" {
		t.Errorf("env not applied: %+v %+v", cfg.API, cfg.Logging)
	}

	t.Setenv("SPEAKERDASH_API_TIMEOUT", "soon")
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "SPEAKERDASH_API_TIMEOUT") {
		t.Errorf("expected a timeout parse error, got %v", err)
	}
}

func TestDotEnvFile(t *testing.T) {
	isolate(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("SPEAKERDASH_API_URL=http://dotenv:8100\nSPEAKERDASH_FIXTURE_ADDR=127.0.0.1:9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPEAKERDASH_ENV_FILE", envFile)
	t.Setenv("SPEAKERDASH_FIXTURE_ADDR", "127.0.0.1:7000")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://dotenv:8100" {
		t.Errorf("base url = %q, want the .env value", cfg.API.BaseURL)
	}
	if cfg.Fixture.Addr != "127.0.0.1:7000" {
		t.Errorf("fixture addr = %q, the environment should win over .env", cfg.Fixture.Addr)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad scheme", func(c *config.Config) { c.API.BaseURL = "ftp://host" }, "api.base_url"},
		{"zero timeout", func(c *config.Config) { c.API.TimeoutSeconds = 0 }, "api.timeout_seconds"},
		{"threshold above one", func(c *config.Config) { c.Upload.MatchThreshold = 1.5 }, "upload.match_threshold"},
		{"negative auto update", func(c *config.Config) { c.Upload.AutoUpdateThreshold = -0.1 }, "upload.auto_update_threshold"},
		{"no heartbeat", func(c *config.Config) { c.Upload.HeartbeatSeconds = 0 }, "upload.heartbeat_seconds"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tc.want)
			}
		})
	}
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists || cfg.API.BaseURL != config.Default().API.BaseURL || cfg.Upload.RevealMillis != 50 {
		t.Errorf("sample did not round-trip: %+v", cfg)
	}
}
