package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/collabry/internal/flagx"
	"github.com/dmitrijs2005/collabry/internal/timex"
)

// JSONConfig is a DTO used exclusively for JSON unmarshalling. Empty fields
// leave the current Config value untouched.
type JSONConfig struct {
	APIBaseURL     string          `json:"api_base_url"`
	RealtimeURL    string          `json:"realtime_url"`
	DataDir        string          `json:"data_dir"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	LogLevel       string          `json:"log_level"`
	DevEmail       string          `json:"dev_email"`
}

// parseJSON overlays cfg with values from the file named by -c / -config.
// Without either flag nothing is loaded.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	setIf(&cfg.APIBaseURL, jc.APIBaseURL)
	setIf(&cfg.RealtimeURL, jc.RealtimeURL)
	setIf(&cfg.DataDir, jc.DataDir)
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.DevEmail, jc.DevEmail)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
