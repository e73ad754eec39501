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

// Package probe implements the per-device-kind status probe strategies.
// Each strategy returns a raw online/offline verdict plus best-effort
// attributes; a failure inside a single attribute fetch never aborts the
// whole probe.
package probe

import (
	"context"

	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/snmp"
)

// Prober is the capability interface implemented by every strategy.
// Strategies that cannot manage ports return ErrNotSupported from the port
// operations.
type Prober interface {
	// Poll performs one status check. The returned outcome carries the
	// raw online verdict and the error/clean-offline distinction; the
	// error return is reserved for caller mistakes (bad target spec).
	Poll(ctx context.Context, target models.PollTarget) (*models.PollOutcome, error)

	// PortTable returns the switch port table.
	PortTable(ctx context.Context, target models.PollTarget) ([]models.PortState, error)

	// SetPortConfig applies a port configuration change.
	SetPortConfig(ctx context.Context, target models.PollTarget, change models.PortConfigChange) error
}

// Resolver selects the strategy for a target once per entity. The variant
// set is closed: generic, SNMP switch, interactive shell, HTTP.
type Resolver struct {
	generic *GenericProber
	snmpSw  *SNMPSwitchProber
	shell   *ShellProber
	media   *HTTPMediaProber
}

// NewResolver builds the strategy set around a shared serialized SNMP
// client.
func NewResolver(snmpClient *snmp.Client, log logger.Logger) *Resolver {
	return &Resolver{
		generic: NewGenericProber(snmpClient, log),
		snmpSw:  NewSNMPSwitchProber(snmpClient, log),
		shell:   NewShellProber(log),
		media:   NewHTTPMediaProber(log),
	}
}

// Resolve picks the strategy for the target. Switches with shell
// credentials get the full-featured interactive prober; otherwise SNMP.
// Printers and POS terminals use the generic TCP+SNMP probe.
func (r *Resolver) Resolve(target models.PollTarget) Prober {
	switch target.Kind {
	case models.KindSwitch:
		if target.Shell != nil {
			return r.shell
		}

		return r.snmpSw
	case models.KindMediaPlayer:
		return r.media
	default:
		return r.generic
	}
}
