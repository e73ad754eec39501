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

// Package identify classifies discovered hosts by device kind and vendor.
// Ambiguous identities are discarded rather than guessed.
package identify

import (
	"context"
	"net/http"
	"time"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/scan"
	"github.com/storegrid/fleetwatch/pkg/snmp"
)

const httpFingerprintTimeout = 5 * time.Second

// Identifier runs kind-specific fingerprinting against port-scan hits.
type Identifier struct {
	snmp       *snmp.Client
	httpClient *http.Client
	community  string
	logger     logger.Logger
}

// NewIdentifier builds an Identifier. community is the read community used
// for SNMP fingerprinting during discovery.
func NewIdentifier(snmpClient *snmp.Client, community string, log logger.Logger) *Identifier {
	return &Identifier{
		snmp:       snmpClient,
		httpClient: &http.Client{Timeout: httpFingerprintTimeout},
		community:  community,
		logger:     log,
	}
}

// Identify fingerprints every found host for the given kind and returns
// only positively identified devices. Hosts that were "found" by the port
// scan but cannot be identified are dropped.
func (i *Identifier) Identify(ctx context.Context, kind models.DeviceKind, found []scan.FoundHost) []models.DiscoveredDevice {
	var devices []models.DiscoveredDevice

	for _, host := range found {
		if err := ctx.Err(); err != nil {
			return devices
		}

		device, ok := i.identifyHost(ctx, kind, host)
		if !ok {
			i.logger.Debug().
				Str("ip", host.IP).
				Str("kind", string(kind)).
				Msg("dropping unidentified host")

			continue
		}

		devices = append(devices, device)
	}

	return devices
}

func (i *Identifier) identifyHost(ctx context.Context, kind models.DeviceKind, host scan.FoundHost) (models.DiscoveredDevice, bool) {
	device := models.DiscoveredDevice{
		IP:        host.IP,
		OpenPorts: host.OpenPorts,
		Kind:      kind,
	}

	switch kind {
	case models.KindSwitch:
		return i.fingerprintSwitch(ctx, device)
	case models.KindPrinter:
		return i.fingerprintPrinter(ctx, device)
	case models.KindMediaPlayer:
		return i.fingerprintMediaPlayer(ctx, device)
	default:
		return device, false
	}
}
