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

// ScanStatus is the lifecycle state of a discovery scan session.
type ScanStatus string

const (
	ScanIdle    ScanStatus = "idle"
	ScanRunning ScanStatus = "running"
	ScanDone    ScanStatus = "done"
	ScanError   ScanStatus = "error"
)

// ScanSession tracks progress of one discovery scan. At most one session
// per device kind may be running at a time.
type ScanSession struct {
	ID        string     `json:"id"`
	Kind      DeviceKind `json:"kind"`
	Status    ScanStatus `json:"status"`
	Scanned   int        `json:"scanned"`
	Total     int        `json:"total"`
	Found     int        `json:"found"`
	Message   string     `json:"message,omitempty"`
	StartedAt time.Time  `json:"started_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// ScanRequest is the input to a discovery scan.
type ScanRequest struct {
	Subnet       string        `json:"subnet"`
	Ports        string        `json:"ports"`
	KnownDevices []KnownDevice `json:"known_devices,omitempty"`
}

// ScanResults bundles session progress with the devices found so far.
type ScanResults struct {
	Progress ScanSession        `json:"progress"`
	Devices  []DiscoveredDevice `json:"devices"`
}
