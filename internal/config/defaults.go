package config

const (
	defaultConfigPath  = "~/.config/speakerdash/config.toml"
	defaultBaseURL     = "http://localhost:8000"
	defaultLogFile     = "~/.local/state/speakerdash/speakerdash.log"
	defaultFixtureAddr = "127.0.0.1:8000"
	defaultFixtureDB   = "~/.local/share/speakerdash/fixture.sqlite"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: API{
			BaseURL:              defaultBaseURL,
			TimeoutSeconds:       30,
			UploadTimeoutSeconds: 600,
		},
		Upload: Upload{
			MatchThreshold:       0.40,
			AutoUpdateThreshold:  0.50,
			HeartbeatSeconds:     5,
			IdentifyAfterSeconds: 60,
			RevealMillis:         50,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
			File:   defaultLogFile,
		},
		Fixture: Fixture{
			Addr:   defaultFixtureAddr,
			DBPath: defaultFixtureDB,
		},
	}
}
