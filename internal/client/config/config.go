package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the Collabry client.
//
// Fields:
//   - APIBaseURL: base URL of the REST API (no trailing slash).
//   - RealtimeURL: websocket endpoint of the realtime service.
//   - DataDir: directory holding the local database and the device key.
//   - RequestTimeout: per-request timeout for API calls.
//   - LogLevel: debug, info, warn or error.
//   - DevEmail: optional email prefilled at the sign-in prompt.
type Config struct {
	APIBaseURL     string        `env:"API_URL"`
	RealtimeURL    string        `env:"REALTIME_URL"`
	DataDir        string        `env:"DATA_DIR"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	LogLevel       string        `env:"LOG_LEVEL"`
	DevEmail       string        `env:"DEV_EMAIL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:3000"
	c.RealtimeURL = "ws://127.0.0.1:3000/chat/ws"
	c.DataDir = defaultDataDir()
	c.RequestTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.DevEmail = ""
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "collabry")
	}
	return ".collabry"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
