// Copyright (C) 2025 phoenix-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrServerURLRequired is returned when a loaded config has no ServerURL
// set, either from YAML or the PHOENIX_SERVER_URL environment variable.
var ErrServerURLRequired = errors.New("config: serverUrl is required")

// Loader reads Config from an optional YAML file, layering environment
// variable overrides on top, the way the teacher's config package layers
// env vars over its YAML-sourced defaults.
type Loader struct {
	EnvPrefix string
}

// NewConfigLoader returns a Loader using the PHOENIX_ environment prefix.
func NewConfigLoader() *Loader {
	return &Loader{EnvPrefix: "PHOENIX_"}
}

// Load reads path (if non-empty and present) as YAML into a copy of
// Default(), applies environment variable overrides, and validates the
// result. A missing path is not an error; Default() plus env overrides
// is a valid configuration on its own.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	l.applyEnvOverrides(&cfg)

	if cfg.ServerURL == "" {
		return nil, ErrServerURLRequired
	}
	return &cfg, nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	p := l.EnvPrefix

	cfg.ServerURL = getEnvOrDefault(p+"SERVER_URL", cfg.ServerURL)
	cfg.Reconnect = getEnvBool(p+"RECONNECT", cfg.Reconnect)
	cfg.ReconnectAttempts = getEnvInt(p+"RECONNECT_ATTEMPTS", cfg.ReconnectAttempts)
	cfg.ReconnectDelay = getEnvDuration(p+"RECONNECT_DELAY", cfg.ReconnectDelay)

	cfg.Storage = StorageKind(getEnvOrDefault(p+"STORAGE", string(cfg.Storage)))
	cfg.StoragePath = getEnvOrDefault(p+"STORAGE_PATH", cfg.StoragePath)
	cfg.EnablePersistence = getEnvBool(p+"ENABLE_PERSISTENCE", cfg.EnablePersistence)

	cfg.PostgresHost = getEnvOrDefault(p+"POSTGRES_HOST", cfg.PostgresHost)
	cfg.PostgresPort = getEnvInt(p+"POSTGRES_PORT", cfg.PostgresPort)
	cfg.PostgresUser = getEnvOrDefault(p+"POSTGRES_USER", cfg.PostgresUser)
	cfg.PostgresPassword = getEnvOrDefault(p+"POSTGRES_PASSWORD", cfg.PostgresPassword)
	cfg.PostgresDatabase = getEnvOrDefault(p+"POSTGRES_DATABASE", cfg.PostgresDatabase)
	cfg.PostgresSSLMode = getEnvOrDefault(p+"POSTGRES_SSL_MODE", cfg.PostgresSSLMode)

	cfg.RequestTimeout = getEnvDuration(p+"REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ReplayWindow = getEnvDuration(p+"REPLAY_WINDOW", cfg.ReplayWindow)
	cfg.ReplaySkew = getEnvDuration(p+"REPLAY_SKEW", cfg.ReplaySkew)
	cfg.SessionTTL = getEnvDuration(p+"SESSION_TTL", cfg.SessionTTL)

	cfg.LogLevel = getEnvOrDefault(p+"LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsAddr = getEnvOrDefault(p+"METRICS_ADDR", cfg.MetricsAddr)
}
