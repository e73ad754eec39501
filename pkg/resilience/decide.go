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

// Package resilience turns raw probe outcomes into a stable effective
// online/offline signal: offline transitions are delayed until confirmed,
// and chronically erroring targets trip a circuit breaker.
package resilience

import (
	"time"

	"github.com/storegrid/fleetwatch/pkg/models"
)

// Decide applies one probe outcome to the entity's counters. It is a pure
// function; persistence is the caller's concern.
//
// probedError marks a transport/protocol failure as opposed to a clean
// "not reachable". Only error probes advance the circuit counter; clean
// offline probes walk it back. The distinction is supplied by the probe
// strategy, never inferred here.
func Decide(
	state models.ResilienceState,
	probedOnline, probedError bool,
	confirmations, circuitThreshold int,
	openFor time.Duration,
	now time.Time,
) (models.ResilienceState, models.StatusEvent) {
	if probedOnline {
		event := models.EventOnline
		if state.Failures > 0 || state.CircuitFailures > 0 {
			event = models.EventRecovered
		}

		state.Failures = 0
		state.CircuitFailures = 0
		state.EffectiveOnline = true
		state.CircuitOpenUntil = time.Time{}

		return state, event
	}

	state.Failures++

	if probedError {
		state.CircuitFailures++
	} else if state.CircuitFailures > 0 {
		state.CircuitFailures--
	}

	// Hysteresis: a previously-online entity keeps its effective status
	// until the failure is confirmed.
	if state.EffectiveOnline && state.Failures < confirmations {
		return state, models.EventOfflinePending
	}

	state.EffectiveOnline = false

	if state.CircuitFailures >= circuitThreshold {
		// Never move an already-open circuit's deadline backward.
		until := now.Add(openFor)
		if until.After(state.CircuitOpenUntil) {
			state.CircuitOpenUntil = until
		}

		return state, models.EventCircuitOpened
	}

	return state, models.EventOfflineConfirmed
}

// CircuitOpen reports whether polling should be skipped for the entity.
// Callers must check this before invoking a probe strategy.
func CircuitOpen(state models.ResilienceState, now time.Time) bool {
	return state.CircuitOpenUntil.After(now)
}
