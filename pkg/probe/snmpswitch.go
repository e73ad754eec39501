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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/snmp"
)

// SNMPSwitchProber manages switches over SNMP only: GET for liveness and
// identity, WALK for the port table, SET for port writes when a write
// community is configured.
type SNMPSwitchProber struct {
	snmp   *snmp.Client
	logger logger.Logger
}

var _ Prober = (*SNMPSwitchProber)(nil)

func NewSNMPSwitchProber(snmpClient *snmp.Client, log logger.Logger) *SNMPSwitchProber {
	return &SNMPSwitchProber{snmp: snmpClient, logger: log}
}

func (p *SNMPSwitchProber) Poll(ctx context.Context, target models.PollTarget) (*models.PollOutcome, error) {
	if target.SNMP == nil {
		return nil, ErrNoCredentials
	}

	outcome := &models.PollOutcome{}

	info, err := p.snmp.SystemInfo(ctx, target.Address, target.SNMP.Community, target.SNMP.Port)
	if err != nil {
		// A transport failure is an error probe; an answered-but-empty
		// response is a clean offline.
		outcome.ProbedError = snmp.IsTransportError(err)

		return outcome, nil
	}

	outcome.ProbedOnline = true
	outcome.Hostname = info.Name
	outcome.Model = firstDescrLine(info.Descr)
	outcome.UptimeSeconds = info.UptimeSeconds

	return outcome, nil
}

// PortTable walks the interface, VLAN, and PoE tables and correlates rows
// by interface index. Failures in a single table leave its columns empty
// rather than failing the call.
func (p *SNMPSwitchProber) PortTable(ctx context.Context, target models.PollTarget) ([]models.PortState, error) {
	if target.SNMP == nil {
		return nil, ErrNoCredentials
	}

	addr := target.Address
	community := target.SNMP.Community
	port := target.SNMP.Port

	states := make(map[int]*models.PortState)

	get := func(idx int) *models.PortState {
		if _, ok := states[idx]; !ok {
			states[idx] = &models.PortState{Index: idx}
		}

		return states[idx]
	}

	// ifDescr is the authoritative row set; a failure here fails the call.
	err := p.snmp.BulkWalk(ctx, addr, community, port, snmp.OIDIfDescr, func(pdu gosnmp.SnmpPDU) error {
		if idx, ok := walkIndex(pdu.Name); ok {
			get(idx).Name = pduOctetString(pdu)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk interface table: %w", err)
	}

	// ifName carries the short form (Gi1/0/1) and is preferred over
	// ifDescr when the device exposes it.
	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDIfName, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok {
			if name := pduOctetString(pdu); name != "" {
				s.Name = name
			}
		}
	})

	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDIfAlias, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok {
			s.Description = pduOctetString(pdu)
		}
	})

	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDIfAdminStatus, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok {
			s.AdminUp = pduInt(pdu) == snmp.IfStatusUp
		}
	})

	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDIfOperStatus, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok {
			s.OperUp = pduInt(pdu) == snmp.IfStatusUp
		}
	})

	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDIfHighSpeed, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok {
			s.SpeedMbps = int64(pduInt(pdu))
		}
	})

	// ifSpeed is the 32-bit fallback for gear without ifXTable; it only
	// fills rows ifHighSpeed left empty.
	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDIfSpeed, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok && s.SpeedMbps == 0 {
			s.SpeedMbps = mbpsFromIfSpeed(pduInt(pdu))
		}
	})

	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDDot1qPvid, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok {
			s.VLAN = pduInt(pdu)
		}
	})

	// pethPsePortAdminEnable is indexed by (group, port); the port is the
	// final sub-identifier, which matches ifIndex on the gear we manage.
	walkColumn(ctx, p.snmp, p.logger, addr, community, port, snmp.OIDPethPsePortAdminEnab, func(idx int, pdu gosnmp.SnmpPDU) {
		if s, ok := states[idx]; ok {
			s.PoEEnabled = pduInt(pdu) == 1
		}
	})

	out := make([]models.PortState, 0, len(states))
	for _, s := range states {
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	return out, nil
}

// SetPortConfig issues SNMP SETs for the requested changes. Requires a
// write community.
func (p *SNMPSwitchProber) SetPortConfig(ctx context.Context, target models.PollTarget, change models.PortConfigChange) error {
	if target.SNMP == nil {
		return ErrNoCredentials
	}

	if target.SNMP.WriteCommunity == "" {
		return ErrNoWriteCommunity
	}

	if change.Index <= 0 {
		return errors.New("port index is required for SNMP port writes")
	}

	var pdus []gosnmp.SnmpPDU

	suffix := fmt.Sprintf(".%d", change.Index)

	if change.AdminUp != nil {
		status := snmp.IfStatusDown
		if *change.AdminUp {
			status = snmp.IfStatusUp
		}

		pdus = append(pdus, gosnmp.SnmpPDU{
			Name:  snmp.OIDIfAdminStatus + suffix,
			Type:  gosnmp.Integer,
			Value: status,
		})
	}

	if change.Description != nil {
		pdus = append(pdus, gosnmp.SnmpPDU{
			Name:  snmp.OIDIfAlias + suffix,
			Type:  gosnmp.OctetString,
			Value: *change.Description,
		})
	}

	if change.VLAN != nil {
		pdus = append(pdus, gosnmp.SnmpPDU{
			Name:  snmp.OIDDot1qPvid + suffix,
			Type:  gosnmp.Gauge32,
			Value: uint(*change.VLAN),
		})
	}

	if change.PoEEnabled != nil {
		enable := 2
		if *change.PoEEnabled {
			enable = 1
		}

		pdus = append(pdus, gosnmp.SnmpPDU{
			Name:  snmp.OIDPethPsePortAdminEnab + suffix,
			Type:  gosnmp.Integer,
			Value: enable,
		})
	}

	if len(pdus) == 0 {
		return nil
	}

	if err := p.snmp.Set(ctx, target.Address, target.SNMP.WriteCommunity, target.SNMP.Port, pdus); err != nil {
		return fmt.Errorf("port config write failed: %w", err)
	}

	return nil
}

// walkColumn walks one table column, feeding indexed rows to apply.
// Best-effort: a failed column is logged and skipped.
func walkColumn(
	ctx context.Context, client *snmp.Client, log logger.Logger,
	addr, community string, port uint16, oid string,
	apply func(idx int, pdu gosnmp.SnmpPDU),
) {
	err := client.BulkWalk(ctx, addr, community, port, oid, func(pdu gosnmp.SnmpPDU) error {
		if idx, ok := walkIndex(pdu.Name); ok {
			apply(idx, pdu)
		}

		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("target", addr).Str("oid", oid).Msg("table column unavailable")
	}
}

// mbpsFromIfSpeed converts an ifSpeed value (bits per second) to Mbps.
func mbpsFromIfSpeed(bitsPerSec int) int64 {
	return int64(bitsPerSec) / 1_000_000
}

func walkIndex(oid string) (int, bool) {
	dot := strings.LastIndex(oid, ".")
	if dot < 0 {
		return 0, false
	}

	idx := 0

	for _, r := range oid[dot+1:] {
		if r < '0' || r > '9' {
			return 0, false
		}

		idx = idx*10 + int(r-'0')
	}

	return idx, true
}

func pduOctetString(pdu gosnmp.SnmpPDU) string {
	if pdu.Type != gosnmp.OctetString {
		return ""
	}

	if b, ok := pdu.Value.([]byte); ok {
		return string(b)
	}

	return ""
}

func pduInt(pdu gosnmp.SnmpPDU) int {
	switch v := pdu.Value.(type) {
	case int:
		return v
	case uint:
		return int(v)
	case uint32:
		return int(v)
	default:
		return 0
	}
}

func firstDescrLine(s string) string {
	if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}

	return strings.TrimSpace(s)
}
