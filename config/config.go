// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads cfg from path, trying YAML first and falling back to
// JSON, then applies defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse %s as YAML or JSON: %w", path, err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path as YAML, or JSON if path ends in ".json".
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// setDefaults fills zero-valued fields with sane operating defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Session.SessionTimeout == 0 {
		cfg.Session.SessionTimeout = 30 * time.Minute
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 100
	}
	if cfg.Session.KeyRotationInterval == 0 {
		cfg.Session.KeyRotationInterval = 15 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.TimeFormat == "" {
		cfg.Logging.TimeFormat = time.RFC3339
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Audit.ConnectTimeout == 0 {
		cfg.Audit.ConnectTimeout = 5 * time.Second
	}
}

// ValidationIssue describes a single configuration problem. Level is either
// "error" (Load fails) or "warn" (Load proceeds, caller may log it).
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// Validate checks cfg for internally inconsistent values. It never touches
// the filesystem or network.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Session.MaxSessions < 0 {
		issues = append(issues, ValidationIssue{
			Field: "session.max_sessions", Message: "must be >= 0", Level: "error",
		})
	}
	if cfg.Session.SessionTimeout < 0 {
		issues = append(issues, ValidationIssue{
			Field: "session.session_timeout", Message: "must be >= 0", Level: "error",
		})
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		issues = append(issues, ValidationIssue{
			Field: "logging.level", Message: fmt.Sprintf("unrecognized level %q", cfg.Logging.Level), Level: "warn",
		})
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		issues = append(issues, ValidationIssue{
			Field: "metrics.addr", Message: "required when metrics.enabled is true", Level: "error",
		})
	}

	return issues
}
