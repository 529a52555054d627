package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	DatabasePath     string
	DriveCredentials string
	DriveToken       string
	SyncInterval     time.Duration
	STTProvider      string
	OpenAIKey        string
	GoogleSTTAPIKey  string
	GoogleSTTKeyFile string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DatabasePath:     getEnv("MALSORI_DB_PATH", "malsori.sqlite"),
		DriveCredentials: os.Getenv("GOOGLE_DRIVE_CREDENTIALS"),
		DriveToken:       os.Getenv("GOOGLE_DRIVE_TOKEN"),
		SyncInterval:     5 * time.Minute,
		STTProvider:      getEnv("MALSORI_STT_PROVIDER", "openai"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		GoogleSTTAPIKey:  os.Getenv("GOOGLE_STT_API_KEY"),
		GoogleSTTKeyFile: os.Getenv("GOOGLE_STT_KEY_FILE"),
	}

	if v := os.Getenv("MALSORI_SYNC_INTERVAL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid MALSORI_SYNC_INTERVAL_SECONDS: %q", v)
		}
		cfg.SyncInterval = time.Duration(secs) * time.Second
	}

	// Drive credentials are optional: without them the server runs in
	// local-only mode and the conflict coordinator stays idle.

	// STT keys are optional (only needed for the transcribe and refine
	// endpoints).

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
