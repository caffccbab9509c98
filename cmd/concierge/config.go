// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from the optional
// YAML file, then environment variables override.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// Model names the Gemini model backing the assistants.
	Model string `yaml:"model"`
	// APIKey authenticates against the Gemini API. Usually set through the
	// GEMINI_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// SessionDB is the SQLite path for conversations. Empty keeps sessions
	// in memory.
	SessionDB string `yaml:"session_db"`
	// TravelDB is the SQLite path for the travel records.
	TravelDB string `yaml:"travel_db"`
	// StoreBaseURL is the base URL of the retail backend.
	StoreBaseURL string `yaml:"store_base_url"`

	// DefaultTraveler is bound to sessions created without an explicit
	// traveler identity.
	DefaultTraveler string `yaml:"default_traveler"`

	LogLevel string `yaml:"log_level"`
	MaxSteps int    `yaml:"max_steps"`

	Guard GuardConfig `yaml:"guard"`
}

// GuardConfig configures the input safety gate.
type GuardConfig struct {
	// Mode is "fail_open" (default) or "fail_closed".
	Mode string `yaml:"mode"`
	// BlockIrrelevant turns off-topic detection from log-only into blocking.
	BlockIrrelevant bool `yaml:"block_irrelevant"`
	CacheSize       int  `yaml:"cache_size"`
}

func loadConfig(path string) (*Config, error) {
	// A missing .env file is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:         ":8080",
		Model:        "gemini-2.0-flash",
		TravelDB:     "travel.db",
		StoreBaseURL: "http://localhost:8000",
		LogLevel:     "info",
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	for env, dst := range map[string]*string{
		"GEMINI_API_KEY":            &cfg.APIKey,
		"CONCIERGE_ADDR":            &cfg.Addr,
		"CONCIERGE_MODEL":           &cfg.Model,
		"CONCIERGE_SESSION_DB":      &cfg.SessionDB,
		"CONCIERGE_TRAVEL_DB":       &cfg.TravelDB,
		"CONCIERGE_STORE_URL":       &cfg.StoreBaseURL,
		"CONCIERGE_DEFAULT_TRAVELER": &cfg.DefaultTraveler,
		"CONCIERGE_LOG_LEVEL":       &cfg.LogLevel,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	return cfg, nil
}
