/*
 * Copyright 2025 Storegrid, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads engine configuration from environment variables.
package config

import (
	"time"
)

// Config holds every tunable of the discovery and polling engine.
// Duration fields are expressed in the unit named by their variable
// (seconds unless the name says otherwise).
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR"`
	NATSURL    string `env:"NATS_URL"`
	LogLevel   string `env:"LOG_LEVEL"`

	ScanSubnet         string        `env:"SCAN_SUBNET"`
	ScanPorts          string        `env:"SCAN_PORTS"`
	ScanMaxHosts       int           `env:"SCAN_MAX_HOSTS"`
	ScanTCPTimeout     time.Duration `env:"SCAN_TCP_TIMEOUT,s"`
	ScanTCPRetries     int           `env:"SCAN_TCP_RETRIES"`
	ScanTCPConcurrency int           `env:"SCAN_TCP_CONCURRENCY"`
	ScanSNMPCommunity  string        `env:"SCAN_SNMP_COMMUNITY"`

	PollInterval                time.Duration `env:"POLL_INTERVAL_SECONDS,s"`
	PollJitterMax               time.Duration `env:"POLL_JITTER_MAX_MS,ms"`
	PollOfflineConfirmations    int           `env:"POLL_OFFLINE_CONFIRMATIONS"`
	PollCircuitFailureThreshold int           `env:"POLL_CIRCUIT_FAILURE_THRESHOLD"`
	PollCircuitOpen             time.Duration `env:"POLL_CIRCUIT_OPEN_SECONDS,s"`
	PollResilienceStateTTL      time.Duration `env:"POLL_RESILIENCE_STATE_TTL_SECONDS,s"`
	PollShellConcurrency        int           `env:"POLL_SHELL_CONCURRENCY"`

	SessionTTL time.Duration `env:"SCAN_SESSION_TTL_SECONDS,s"`
}

// Default returns a Config populated with production defaults.
func Default() *Config {
	return &Config{
		ListenAddr:                  ":8090",
		LogLevel:                    "info",
		ScanPorts:                   "9100,631,161,80,443,8080",
		ScanMaxHosts:                1024,
		ScanTCPTimeout:              2 * time.Second,
		ScanTCPRetries:              1,
		ScanTCPConcurrency:          128,
		ScanSNMPCommunity:           "public",
		PollInterval:                60 * time.Second,
		PollJitterMax:               1500 * time.Millisecond,
		PollOfflineConfirmations:    2,
		PollCircuitFailureThreshold: 4,
		PollCircuitOpen:             300 * time.Second,
		PollResilienceStateTTL:      7 * 24 * time.Hour,
		PollShellConcurrency:        16,
		SessionTTL:                  600 * time.Second,
	}
}

// Load returns the default config overridden by any set environment
// variables.
func Load() (*Config, error) {
	cfg := Default()
	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.ScanMaxHosts <= 0 {
		return ErrInvalidMaxHosts
	}

	if c.ScanTCPConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.PollOfflineConfirmations < 1 {
		return ErrInvalidConfirmations
	}

	if c.PollCircuitFailureThreshold < 1 {
		return ErrInvalidCircuitThreshold
	}

	return nil
}
