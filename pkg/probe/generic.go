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

package probe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/miekg/dns"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/scan"
	"github.com/storegrid/fleetwatch/pkg/snmp"
)

// Diagnostic port set probed by the generic strategy. Covers printing
// (9100/631/515), web management, remote shells, and SMB/RDP for POS
// terminals.
var genericDiagnosticPorts = []int{22, 23, 80, 139, 443, 445, 515, 631, 3389, 9100}

const (
	genericProbeTimeout = 2 * time.Second
	dnsTimeout          = 2 * time.Second
	resolvConfPath      = "/etc/resolv.conf"
)

// GenericProber is the fallback strategy: hostname resolution, a
// concurrent scan of the diagnostic port set, and SNMP system identity.
// Online iff any port is open or SNMP responded.
type GenericProber struct {
	snmp    *snmp.Client
	scanner *scan.PortScanner
	logger  logger.Logger
}

var _ Prober = (*GenericProber)(nil)

func NewGenericProber(snmpClient *snmp.Client, log logger.Logger) *GenericProber {
	return &GenericProber{
		snmp:    snmpClient,
		scanner: scan.NewPortScanner(genericProbeTimeout, 0, len(genericDiagnosticPorts), log),
		logger:  log,
	}
}

func (g *GenericProber) Poll(ctx context.Context, target models.PollTarget) (*models.PollOutcome, error) {
	outcome := &models.PollOutcome{Attributes: map[string]string{}}

	outcome.Hostname = g.resolveHostname(ctx, target.Address)

	found, err := g.scanner.Scan(ctx, []string{target.Address}, genericDiagnosticPorts, nil)
	if err != nil {
		return outcome, err
	}

	anyPortOpen := len(found) > 0
	if anyPortOpen {
		outcome.Attributes["open_ports"] = joinPorts(found[0].OpenPorts)
	}

	snmpOK := false

	if target.SNMP != nil {
		info, err := g.snmp.SystemInfo(ctx, target.Address, target.SNMP.Community, target.SNMP.Port)

		switch {
		case err == nil:
			snmpOK = true
			outcome.Model = info.Descr
			outcome.UptimeSeconds = info.UptimeSeconds

			if outcome.Hostname == "" {
				outcome.Hostname = info.Name
			}

			if macs, macErr := g.snmp.InterfaceMACs(ctx, target.Address, target.SNMP.Community, target.SNMP.Port); macErr == nil {
				outcome.MAC = firstMAC(macs)
			}

			if target.Kind == models.KindPrinter {
				g.collectPrinterAttributes(ctx, target, outcome)
			}
		case snmp.IsTransportError(err) && !anyPortOpen:
			// Nothing answered and the SNMP exchange failed in transit:
			// this is an error probe for the circuit breaker, not a
			// clean offline.
			outcome.ProbedError = true
		default:
			g.logger.Debug().Err(err).Str("target", target.Address).Msg("SNMP attributes unavailable")
		}
	}

	outcome.ProbedOnline = anyPortOpen || snmpOK
	if outcome.ProbedOnline {
		outcome.ProbedError = false
	}

	return outcome, nil
}

func (*GenericProber) PortTable(_ context.Context, _ models.PollTarget) ([]models.PortState, error) {
	return nil, ErrNotSupported
}

func (*GenericProber) SetPortConfig(_ context.Context, _ models.PollTarget, _ models.PortConfigChange) error {
	return ErrNotSupported
}

// resolveHostname tries a DNS PTR lookup first, then a NetBIOS node-status
// query for Windows-style names that reverse DNS does not cover.
func (g *GenericProber) resolveHostname(ctx context.Context, address string) string {
	if name := g.reverseDNS(ctx, address); name != "" {
		return name
	}

	name, _, err := netbiosLookup(ctx, address)
	if err != nil {
		g.logger.Debug().Err(err).Str("target", address).Msg("NetBIOS name lookup failed")

		return ""
	}

	return name
}

func (g *GenericProber) reverseDNS(ctx context.Context, address string) string {
	reverse, err := dns.ReverseAddr(address)
	if err != nil {
		return ""
	}

	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)

	client := &dns.Client{Timeout: dnsTimeout}

	reply, _, err := client.ExchangeContext(ctx, msg, conf.Servers[0]+":"+conf.Port)
	if err != nil || reply == nil {
		return ""
	}

	for _, rr := range reply.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}

	return ""
}

// Printer-MIB and Host-Resources scalars live in the first device row on
// single-engine printers.
var printerScalarOIDs = []string{
	snmp.OIDPrtGeneralPrinterName + ".1",
	snmp.OIDPrtGeneralSerialNumber + ".1",
	snmp.OIDHrPrinterDetectedErrorSt + ".1",
}

// collectPrinterAttributes fills consumable levels, serial number, the
// configured printer name, and active alert flags. All best-effort; a
// printer that answers the system group but not the Printer MIB still
// polls online.
func (g *GenericProber) collectPrinterAttributes(ctx context.Context, target models.PollTarget, outcome *models.PollOutcome) {
	outcome.Consumables = g.printerConsumables(ctx, target)

	pdus, err := g.snmp.Get(ctx, target.Address, target.SNMP.Community, target.SNMP.Port, printerScalarOIDs)
	if err != nil {
		g.logger.Debug().Err(err).Str("target", target.Address).Msg("printer scalars unavailable")

		return
	}

	for _, pdu := range pdus {
		switch pdu.Name {
		case snmp.OIDPrtGeneralPrinterName + ".1":
			if name := pduOctetString(pdu); name != "" && outcome.Hostname == "" {
				outcome.Hostname = name
			}
		case snmp.OIDPrtGeneralSerialNumber + ".1":
			if serial := pduOctetString(pdu); serial != "" {
				outcome.Attributes["serial_number"] = serial
			}
		case snmp.OIDHrPrinterDetectedErrorSt + ".1":
			if raw, ok := pdu.Value.([]byte); ok {
				if alerts := decodePrinterErrorState(raw); len(alerts) > 0 {
					outcome.Attributes["alerts"] = strings.Join(alerts, ",")
				}
			}
		}
	}
}

// hrPrinterDetectedErrorState bit flags, most significant bit first per
// byte (RFC 2790).
var printerErrorFlags = [][]string{
	{"low_paper", "no_paper", "low_toner", "no_toner", "door_open", "jammed", "offline", "service_requested"},
	{"input_tray_missing", "output_tray_missing", "marker_supply_missing", "output_near_full", "output_full", "input_tray_empty", "overdue_prevent_maint"},
}

func decodePrinterErrorState(raw []byte) []string {
	var alerts []string

	for byteIdx, names := range printerErrorFlags {
		if byteIdx >= len(raw) {
			break
		}

		for bit, name := range names {
			if raw[byteIdx]&(0x80>>uint(bit)) != 0 {
				alerts = append(alerts, name)
			}
		}
	}

	return alerts
}

// printerConsumables walks the Printer-MIB marker supplies table and maps
// supply descriptions to remaining levels. The table is indexed by
// (hrDeviceIndex, suppliesIndex); the final sub-identifier correlates the
// columns.
func (g *GenericProber) printerConsumables(ctx context.Context, target models.PollTarget) map[string]int {
	addr := target.Address
	community := target.SNMP.Community
	port := target.SNMP.Port

	descr := make(map[int]string)
	level := make(map[int]int)
	capacity := make(map[int]int)

	walkColumn(ctx, g.snmp, g.logger, addr, community, port, snmp.OIDPrtMarkerSuppliesDescr, func(idx int, pdu gosnmp.SnmpPDU) {
		descr[idx] = pduOctetString(pdu)
	})

	walkColumn(ctx, g.snmp, g.logger, addr, community, port, snmp.OIDPrtMarkerSuppliesLevel, func(idx int, pdu gosnmp.SnmpPDU) {
		level[idx] = pduInt(pdu)
	})

	walkColumn(ctx, g.snmp, g.logger, addr, community, port, snmp.OIDPrtMarkerSuppliesMax, func(idx int, pdu gosnmp.SnmpPDU) {
		capacity[idx] = pduInt(pdu)
	})

	return mergeConsumables(descr, level, capacity)
}

// mergeConsumables correlates marker-supply columns by row index. Levels
// are normalized to percent when the row reports a positive capacity and
// kept as raw units otherwise. Printer MIB sentinel levels (negative:
// other/unknown/some-remaining) and rows without a description are
// dropped.
func mergeConsumables(descr map[int]string, level, capacity map[int]int) map[string]int {
	out := make(map[string]int)

	for idx, name := range descr {
		if name == "" {
			continue
		}

		lvl, ok := level[idx]
		if !ok || lvl < 0 {
			continue
		}

		if max := capacity[idx]; max > 0 {
			lvl = lvl * 100 / max
		}

		out[name] = lvl
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

func joinPorts(ports []int) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, strconv.Itoa(p))
	}

	return strings.Join(parts, ",")
}

func firstMAC(macs map[int]string) string {
	lowest := -1
	mac := ""

	for idx, m := range macs {
		if m == "" {
			continue
		}

		if lowest < 0 || idx < lowest {
			lowest = idx
			mac = m
		}
	}

	return mac
}
