package config

import (
	"encoding/json"
	"os"
	"time"

	"veritas/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// are given as strings like "24h".
type JsonConfig struct {
	DatabaseDSN     string `json:"database_dsn"`
	LocalDBPath     string `json:"local_db_path"`
	SessionSecret   string `json:"session_secret"`
	SessionValidity string `json:"session_validity"`
	GeminiAPIKey    string `json:"gemini_api_key"`
	GeminiModel     string `json:"gemini_model"`
	Timezone        string `json:"timezone"`
}

// parseJson overlays Config with values from the JSON file named by the
// -c/--config flag. Absent file means nothing to do; an unreadable or
// invalid file panics, since running with half-applied config is worse
// than not starting.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.LocalDBPath != "" {
		cfg.LocalDBPath = jc.LocalDBPath
	}
	if jc.SessionSecret != "" {
		cfg.SessionSecret = jc.SessionSecret
	}
	if jc.SessionValidity != "" {
		if d, err := time.ParseDuration(jc.SessionValidity); err == nil {
			cfg.SessionValidity = d
		}
	}
	if jc.GeminiAPIKey != "" {
		cfg.GeminiAPIKey = jc.GeminiAPIKey
	}
	if jc.GeminiModel != "" {
		cfg.GeminiModel = jc.GeminiModel
	}
	if jc.Timezone != "" {
		cfg.Timezone = jc.Timezone
	}
}
