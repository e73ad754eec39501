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

package identify

import (
	"context"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/snmp"
)

// Two disjoint keyword sets drive SNMP classification. A switch identity
// is accepted only when a switch hint is present AND no printer hint is;
// the inverse holds for printers. Anything ambiguous is discarded.
var (
	printerHints = []string{
		"printer", "jetdirect", "laserjet", "officejet", "pagewide",
		"imagerunner", "imageclass", "ecosys", "taskalfa", "versalink",
		"altalink", "lexmark", "brother", "epson", "kyocera", "ricoh",
		"mfp", "mfc-",
	}

	switchHints = []string{
		"switch", "procurve", "catalyst", "cisco ios", "nx-os", "junos",
		"ex series", "aruba", "aos-cx", "fastiron", "icx", "smartswitch",
		"gs748t", "unifi switch", "edgeswitch",
	}
)

func (i *Identifier) fingerprintSwitch(ctx context.Context, device models.DiscoveredDevice) (models.DiscoveredDevice, bool) {
	info, err := i.snmp.SystemInfo(ctx, device.IP, i.community, 0)
	if err != nil {
		i.logger.Debug().Err(err).Str("ip", device.IP).Msg("SNMP fingerprint failed")

		return device, false
	}

	identity := strings.ToLower(info.Descr + " " + info.ObjectID)

	if !containsAny(identity, switchHints) || containsAny(identity, printerHints) {
		return device, false
	}

	device.Hostname = info.Name
	device.ModelInfo = firstLine(info.Descr)
	device.Vendor = vendorFromIdentity(identity)

	return device, true
}

func (i *Identifier) fingerprintPrinter(ctx context.Context, device models.DiscoveredDevice) (models.DiscoveredDevice, bool) {
	info, err := i.snmp.SystemInfo(ctx, device.IP, i.community, 0)
	if err != nil {
		i.logger.Debug().Err(err).Str("ip", device.IP).Msg("SNMP fingerprint failed")

		return device, false
	}

	identity := strings.ToLower(info.Descr + " " + info.ObjectID)

	// Some printers ship a generic embedded-OS sysDescr; the
	// Host-Resources device table names the print engine itself.
	if !containsAny(identity, printerHints) {
		if hr := i.hrDeviceDescr(ctx, device.IP); hr != "" {
			identity += " " + strings.ToLower(hr)
		}
	}

	if !containsAny(identity, printerHints) || containsAny(identity, switchHints) {
		return device, false
	}

	device.Hostname = info.Name
	device.ModelInfo = firstLine(info.Descr)
	device.Vendor = vendorFromIdentity(identity)

	return device, true
}

// hrDeviceDescr joins the first rows of the Host-Resources device
// description table. Best-effort; an empty string means no answer.
func (i *Identifier) hrDeviceDescr(ctx context.Context, ip string) string {
	var parts []string

	err := i.snmp.BulkWalk(ctx, ip, i.community, 0, snmp.OIDHrDeviceDescr, func(pdu gosnmp.SnmpPDU) error {
		if b, ok := pdu.Value.([]byte); ok && len(parts) < 8 {
			parts = append(parts, string(b))
		}

		return nil
	})
	if err != nil {
		i.logger.Debug().Err(err).Str("ip", ip).Msg("hrDeviceDescr walk failed")

		return ""
	}

	return strings.Join(parts, " ")
}

func containsAny(s string, hints []string) bool {
	for _, hint := range hints {
		if strings.Contains(s, hint) {
			return true
		}
	}

	return false
}

// vendorFromIdentity maps identity keywords to a vendor label. Unknown
// vendors stay empty rather than guessed.
func vendorFromIdentity(identity string) string {
	vendors := []struct {
		keyword string
		name    string
	}{
		{"cisco", "Cisco"},
		{"catalyst", "Cisco"},
		{"procurve", "HP"},
		{"aruba", "Aruba"},
		{"aos-cx", "Aruba"},
		{"juniper", "Juniper"},
		{"junos", "Juniper"},
		{"netgear", "Netgear"},
		{"unifi", "Ubiquiti"},
		{"edgeswitch", "Ubiquiti"},
		{"laserjet", "HP"},
		{"officejet", "HP"},
		{"jetdirect", "HP"},
		{"pagewide", "HP"},
		{"lexmark", "Lexmark"},
		{"kyocera", "Kyocera"},
		{"ecosys", "Kyocera"},
		{"taskalfa", "Kyocera"},
		{"ricoh", "Ricoh"},
		{"brother", "Brother"},
		{"epson", "Epson"},
		{"canon", "Canon"},
		{"imagerunner", "Canon"},
		{"versalink", "Xerox"},
		{"altalink", "Xerox"},
		{"xerox", "Xerox"},
	}

	for _, v := range vendors {
		if strings.Contains(identity, v.keyword) {
			return v.name
		}
	}

	return ""
}

func firstLine(s string) string {
	if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}

	return strings.TrimSpace(s)
}
