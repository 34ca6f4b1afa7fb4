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

// Package config loads agentcrypt's runtime configuration from a YAML file,
// an optional .env overlay, and environment variable overrides, in that
// order of increasing priority.
package config

import "time"

// Config is the top-level configuration structure for an agentcrypt process.
type Config struct {
	Environment string        `yaml:"environment" json:"environment"`
	Session     SessionConfig `yaml:"session" json:"session"`
	Logging     LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig `yaml:"metrics" json:"metrics"`
	Audit       AuditConfig   `yaml:"audit" json:"audit"`
}

// SessionConfig tunes the session store (session.Config mirrors this at the
// package boundary; this is the serializable form).
type SessionConfig struct {
	SessionTimeout       time.Duration `yaml:"session_timeout" json:"session_timeout"`
	MaxSessions          int           `yaml:"max_sessions" json:"max_sessions"`
	EnableForwardSecrecy bool          `yaml:"enable_forward_secrecy" json:"enable_forward_secrecy"`
	KeyRotationInterval  time.Duration `yaml:"key_rotation_interval" json:"key_rotation_interval"`
	ReplayProtection     bool          `yaml:"replay_protection" json:"replay_protection"`
}

// LoggingConfig controls internal/logger's output.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`             // debug, info, warn, error
	Format     string `yaml:"format" json:"format"`            // json, pretty
	Output     string `yaml:"output" json:"output"`            // stdout, stderr, file path
	TimeFormat string `yaml:"time_format" json:"time_format"` // time.Layout for the "timestamp" field (default time.RFC3339)
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// AuditConfig controls the optional Postgres lifecycle-event sink
// (storage/audit). When DSN is empty, the audit sink is not started.
type AuditConfig struct {
	DSN            string        `yaml:"dsn" json:"dsn"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}
