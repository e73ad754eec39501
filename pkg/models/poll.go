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

package models

import "time"

// SNMPCredentials holds the community strings for an SNMP-capable target.
// WriteCommunity is required for port configuration writes.
type SNMPCredentials struct {
	Community      string `json:"community"`
	WriteCommunity string `json:"write_community,omitempty"`
	Port           uint16 `json:"port,omitempty"`
}

// ShellCredentials holds login material for the interactive shell probe.
// EnablePassword is used when the device prompts for privileged mode.
type ShellCredentials struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	EnablePassword string `json:"enable_password,omitempty"`
	Port           int    `json:"port,omitempty"`
}

// HTTPCredentials holds basic-auth material for HTTP-managed devices.
type HTTPCredentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// PollTarget is a read-only view into inventory describing one entity to
// poll. The polling engine never mutates it.
type PollTarget struct {
	DeviceID string            `json:"device_id"`
	Kind     DeviceKind        `json:"kind"`
	Vendor   string            `json:"vendor,omitempty"`
	Address  string            `json:"address"`
	SNMP     *SNMPCredentials  `json:"snmp,omitempty"`
	Shell    *ShellCredentials `json:"shell,omitempty"`
	HTTP     *HTTPCredentials  `json:"http,omitempty"`
}

// PollOutcome is the transient result of a single probe. ProbedError
// distinguishes a transport or protocol failure from a clean "not
// reachable"; only error probes feed the circuit breaker. The distinction
// is supplied by the probe strategy, never inferred downstream.
type PollOutcome struct {
	ProbedOnline bool `json:"probed_online"`
	ProbedError  bool `json:"probed_error"`

	Hostname      string            `json:"hostname,omitempty"`
	Model         string            `json:"model,omitempty"`
	Firmware      string            `json:"firmware,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds,omitempty"`
	MAC           string            `json:"mac,omitempty"`
	Consumables   map[string]int    `json:"consumables,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// ResilienceState is the per-entity persisted counter set behind the
// hysteresis and circuit-breaker logic.
type ResilienceState struct {
	Failures         int       `json:"failures"`
	CircuitFailures  int       `json:"circuit_failures"`
	EffectiveOnline  bool      `json:"effective_online"`
	CircuitOpenUntil time.Time `json:"circuit_open_until,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// StatusEvent describes the transition produced by one resilience decision.
type StatusEvent string

const (
	EventOnline           StatusEvent = "online"
	EventRecovered        StatusEvent = "recovered"
	EventOfflinePending   StatusEvent = "offline_pending_confirmation"
	EventOfflineConfirmed StatusEvent = "offline_confirmed"
	EventCircuitOpened    StatusEvent = "circuit_opened"
)

// PortState is one row of a switch port table.
type PortState struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AdminUp     bool   `json:"admin_up"`
	OperUp      bool   `json:"oper_up"`
	SpeedMbps   int64  `json:"speed_mbps,omitempty"`
	VLAN        int    `json:"vlan,omitempty"`
	PoEEnabled  bool   `json:"poe_enabled,omitempty"`
}

// PortConfigChange describes a requested port configuration write. Nil
// fields are left untouched.
type PortConfigChange struct {
	Index       int     `json:"index,omitempty"`
	Name        string  `json:"name,omitempty"`
	AdminUp     *bool   `json:"admin_up,omitempty"`
	Description *string `json:"description,omitempty"`
	VLAN        *int    `json:"vlan,omitempty"`
	PoEEnabled  *bool   `json:"poe_enabled,omitempty"`
}

// CycleSummary aggregates the outcome of one bulk poll cycle.
type CycleSummary struct {
	Polled   int           `json:"polled"`
	Online   int           `json:"online"`
	Offline  int           `json:"offline"`
	Errors   int           `json:"errors"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}
