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

// Package config loads Phoenix's configuration surface (spec.md §6)
// plus the ambient logger/metrics settings, from YAML with environment
// variable overrides — modeled on the teacher's config package.
package config

import "time"

// StorageKind selects which session.StorageAdapter backend Load wires.
type StorageKind string

const (
	StorageMemory   StorageKind = "memory"
	StorageFile     StorageKind = "file"
	StoragePostgres StorageKind = "postgres"
)

// Config is the full set of options a DApp or Wallet client recognizes.
type Config struct {
	// ServerURL is the relay URL. Required.
	ServerURL string `yaml:"serverUrl" json:"serverUrl"`

	// Reconnect enables bounded transport auto-reconnect.
	Reconnect         bool          `yaml:"reconnect" json:"reconnect"`
	ReconnectAttempts int           `yaml:"reconnectAttempts" json:"reconnectAttempts"`
	ReconnectDelay    time.Duration `yaml:"reconnectDelay" json:"reconnectDelay"`

	// Storage selects the session.StorageAdapter backend.
	Storage           StorageKind `yaml:"storage" json:"storage"`
	StoragePath       string      `yaml:"storagePath" json:"storagePath"`
	EnablePersistence bool        `yaml:"enablePersistence" json:"enablePersistence"`

	// Postgres connection parameters, used only when Storage == StoragePostgres.
	PostgresHost     string `yaml:"postgresHost" json:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort" json:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser" json:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword" json:"postgresPassword"`
	PostgresDatabase string `yaml:"postgresDatabase" json:"postgresDatabase"`
	PostgresSSLMode  string `yaml:"postgresSslMode" json:"postgresSslMode"`

	// Protocol timing, spec.md §5 defaults, all configurable per
	// SPEC_FULL.md Open Question decision 2.
	RequestTimeout time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	ReplayWindow   time.Duration `yaml:"replayWindow" json:"replayWindow"`
	ReplaySkew     time.Duration `yaml:"replaySkew" json:"replaySkew"`
	SessionTTL     time.Duration `yaml:"sessionTTL" json:"sessionTTL"`

	// Ambient stack.
	LogLevel    string `yaml:"logLevel" json:"logLevel"`
	MetricsAddr string `yaml:"metricsAddr" json:"metricsAddr"`
}

// Default returns the zero-value-safe defaults spec.md §6 documents.
func Default() Config {
	return Config{
		Reconnect:         true,
		ReconnectAttempts: 5,
		ReconnectDelay:    2000 * time.Millisecond,
		Storage:           StorageMemory,
		EnablePersistence: true,
		PostgresSSLMode:   "disable",
		RequestTimeout:    60 * time.Second,
		ReplayWindow:      5 * time.Minute,
		ReplaySkew:        60 * time.Second,
		SessionTTL:        24 * time.Hour,
		LogLevel:          "info",
	}
}

