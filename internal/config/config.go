// Package config handles runtime configuration: built-in defaults,
// overlaid by environment (.env supported), an optional JSON file, and
// finally command-line flags. Later sources win.
package config

import "time"

// Config holds runtime settings for the Veritas app.
//
// Fields:
//   - DatabaseDSN: PostgreSQL DSN of the remote user store. Empty means
//     no remote is configured and the local store is used instead. The
//     choice is made once at startup and fixed for the process lifetime.
//   - LocalDBPath: path of the on-device SQLite database (local user
//     store fallback, session slot, analysis history).
//   - SessionSecret: HMAC secret for signing session tokens (HS256).
//     Do not use the default outside development.
//   - SessionValidity: lifetime of an issued session token.
//   - GeminiAPIKey / GeminiModel: classifier backend settings.
//   - Timezone: IANA name of the reference zone for usage dates.
type Config struct {
	DatabaseDSN     string
	LocalDBPath     string
	SessionSecret   string
	SessionValidity time.Duration
	GeminiAPIKey    string
	GeminiModel     string
	Timezone        string
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = ""
	c.LocalDBPath = "veritas.db"
	c.SessionSecret = "secretKey"
	c.SessionValidity = 24 * time.Hour
	c.GeminiModel = "gemini-2.5-flash"
	c.Timezone = "UTC"
}

// LoadConfig builds a Config by applying defaults, then overlaying
// values from the environment, an optional JSON file, and command-line
// flags, in that order.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
