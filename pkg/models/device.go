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

// Package models defines the shared data types for discovery and polling.
package models

// DeviceKind identifies the category of a managed device.
type DeviceKind string

const (
	KindPrinter     DeviceKind = "printer"
	KindSwitch      DeviceKind = "switch"
	KindMediaPlayer DeviceKind = "media_player"
	KindPOS         DeviceKind = "pos"
)

// Valid reports whether k is one of the known device kinds.
func (k DeviceKind) Valid() bool {
	switch k {
	case KindPrinter, KindSwitch, KindMediaPlayer, KindPOS:
		return true
	default:
		return false
	}
}

// ScannableKinds lists the kinds that support network discovery scans.
func ScannableKinds() []DeviceKind {
	return []DeviceKind{KindPrinter, KindSwitch, KindMediaPlayer}
}

// KnownDevice is the inventory view passed into a scan so results can be
// correlated against existing devices. It is the only coupling to the
// inventory collaborator.
type KnownDevice struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	MAC     string `json:"mac,omitempty"`
}

// DiscoveredDevice is an ephemeral scan result for a single host.
type DiscoveredDevice struct {
	IP        string     `json:"ip"`
	MAC       string     `json:"mac,omitempty"`
	OpenPorts []int      `json:"open_ports"`
	Hostname  string     `json:"hostname,omitempty"`
	ModelInfo string     `json:"model_info,omitempty"`
	Vendor    string     `json:"vendor,omitempty"`
	Kind      DeviceKind `json:"device_kind,omitempty"`

	// Inventory correlation. IPChanged is set when a known device's MAC
	// shows up at a new IP (DHCP reassignment).
	IsKnown   bool   `json:"is_known"`
	DeviceID  string `json:"device_id,omitempty"`
	IPChanged bool   `json:"ip_changed,omitempty"`
	OldIP     string `json:"old_ip,omitempty"`
}
