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

// Package enrich overlays neighbor-cache MAC addresses onto discovery
// results and correlates them against known inventory.
package enrich

import (
	"context"
	"net"
	"os/exec"
	"strings"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
)

// Enricher reads the OS neighbor table once per scan and correlates
// discovered devices with known inventory.
type Enricher struct {
	logger logger.Logger

	// neighborTable is swappable for tests.
	neighborTable func(ctx context.Context) map[string]string
}

// NewEnricher builds an Enricher using the platform neighbor cache.
func NewEnricher(log logger.Logger) *Enricher {
	e := &Enricher{logger: log}
	e.neighborTable = e.readNeighborTable

	return e
}

// Enrich overlays MACs from the neighbor cache onto devices that lack one
// from protocol-level discovery. Best-effort: an unreadable neighbor table
// leaves devices untouched.
func (e *Enricher) Enrich(ctx context.Context, devices []models.DiscoveredDevice) []models.DiscoveredDevice {
	table := e.neighborTable(ctx)
	if len(table) == 0 {
		return devices
	}

	for i := range devices {
		if devices[i].MAC == "" {
			if mac, ok := table[devices[i].IP]; ok {
				devices[i].MAC = mac
			}
		}
	}

	return devices
}

// CorrelateKnown matches discovered devices against known inventory by IP
// and by MAC. A MAC match at a different IP marks the device as moved
// (DHCP reassignment) with the prior IP recorded.
func CorrelateKnown(devices []models.DiscoveredDevice, known []models.KnownDevice) []models.DiscoveredDevice {
	byIP := make(map[string]models.KnownDevice, len(known))
	byMAC := make(map[string]models.KnownDevice, len(known))

	for _, k := range known {
		if k.Address != "" {
			byIP[k.Address] = k
		}

		if k.MAC != "" {
			byMAC[NormalizeMAC(k.MAC)] = k
		}
	}

	for i := range devices {
		d := &devices[i]

		if k, ok := byIP[d.IP]; ok {
			d.IsKnown = true
			d.DeviceID = k.ID

			continue
		}

		if d.MAC == "" {
			continue
		}

		if k, ok := byMAC[NormalizeMAC(d.MAC)]; ok {
			d.IsKnown = true
			d.DeviceID = k.ID

			// A reassignment needs a prior address to report. Known
			// devices registered by MAC alone match without one.
			if k.Address != "" {
				d.IPChanged = true
				d.OldIP = k.Address
			}
		}
	}

	return devices
}

// readNeighborTable shells out to `ip neigh`, falling back to `arp -an`.
// Platform-dependent and best-effort by design of the caller.
func (e *Enricher) readNeighborTable(ctx context.Context) map[string]string {
	if out, err := exec.CommandContext(ctx, "ip", "neigh", "show").Output(); err == nil {
		if table := ParseIPNeigh(string(out)); len(table) > 0 {
			return table
		}
	}

	out, err := exec.CommandContext(ctx, "arp", "-an").Output()
	if err != nil {
		e.logger.Warn().Err(err).Msg("neighbor table unavailable, skipping MAC enrichment")

		return nil
	}

	return ParseARPOutput(string(out))
}

// ParseIPNeigh parses `ip neigh show` output into an IP→MAC map. Entries
// without a lladdr (FAILED, INCOMPLETE) are skipped.
func ParseIPNeigh(out string) map[string]string {
	table := make(map[string]string)

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		ip := net.ParseIP(fields[0])
		if ip == nil {
			continue
		}

		for i, f := range fields {
			if f == "lladdr" && i+1 < len(fields) {
				if mac := NormalizeMAC(fields[i+1]); mac != "" {
					table[ip.String()] = mac
				}

				break
			}
		}
	}

	return table
}

// ParseARPOutput parses BSD-style `arp -an` output:
// ? (10.0.0.5) at aa:bb:cc:dd:ee:ff [ether] on eth0
func ParseARPOutput(out string) map[string]string {
	table := make(map[string]string)

	for _, line := range strings.Split(out, "\n") {
		open := strings.Index(line, "(")
		closeIdx := strings.Index(line, ")")

		if open < 0 || closeIdx <= open {
			continue
		}

		ip := net.ParseIP(line[open+1 : closeIdx])
		if ip == nil {
			continue
		}

		at := strings.Index(line, " at ")
		if at < 0 {
			continue
		}

		rest := strings.Fields(line[at+4:])
		if len(rest) == 0 {
			continue
		}

		if mac := NormalizeMAC(rest[0]); mac != "" {
			table[ip.String()] = mac
		}
	}

	return table
}

// NormalizeMAC lowercases a MAC and normalizes separators so addresses
// from different sources compare equal. Returns "" for unparseable input.
func NormalizeMAC(mac string) string {
	hw, err := net.ParseMAC(strings.ReplaceAll(mac, "-", ":"))
	if err != nil {
		return ""
	}

	return strings.ToLower(hw.String())
}
