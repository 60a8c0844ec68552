// Package config loads runtime configuration for the Collabry client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. COLLABRY_* environment variables.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     REST API base URL
//	-w string     realtime websocket URL
//	-d string     data directory (database and device key)
//	-t duration   per-request timeout
//	-l string     log level
//
// # JSON schema
//
// Durations use timex.Duration, so they can be either strings like "10s" or
// integer nanoseconds:
//
//	{
//	  "api_base_url": "https://api.collabry.app",
//	  "realtime_url": "wss://api.collabry.app/chat/ws",
//	  "data_dir": "/home/me/.config/collabry",
//	  "request_timeout": "10s",
//	  "log_level": "info",
//	  "dev_email": "me@example.com"
//	}
//
// # Environment
//
// COLLABRY_API_URL, COLLABRY_REALTIME_URL, COLLABRY_DATA_DIR,
// COLLABRY_REQUEST_TIMEOUT, COLLABRY_LOG_LEVEL, COLLABRY_DEV_EMAIL.
package config
