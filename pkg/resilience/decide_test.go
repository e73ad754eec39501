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

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/storegrid/fleetwatch/pkg/models"
)

const (
	testConfirmations = 2
	testThreshold     = 4
	testOpenFor       = 300 * time.Second
)

func decide(state models.ResilienceState, online, probedError bool, now time.Time) (models.ResilienceState, models.StatusEvent) {
	return Decide(state, online, probedError, testConfirmations, testThreshold, testOpenFor, now)
}

func TestDecideOnline(t *testing.T) {
	now := time.Now()

	t.Run("first success yields online", func(t *testing.T) {
		state, event := decide(models.ResilienceState{}, true, false, now)

		assert.Equal(t, models.EventOnline, event)
		assert.True(t, state.EffectiveOnline)
		assert.Zero(t, state.Failures)
		assert.Zero(t, state.CircuitFailures)
	})

	t.Run("success after failures yields recovered", func(t *testing.T) {
		prior := models.ResilienceState{Failures: 3, CircuitFailures: 2}

		state, event := decide(prior, true, false, now)

		assert.Equal(t, models.EventRecovered, event)
		assert.True(t, state.EffectiveOnline)
		assert.Zero(t, state.Failures)
		assert.Zero(t, state.CircuitFailures)
	})

	t.Run("success clears an open circuit", func(t *testing.T) {
		prior := models.ResilienceState{
			CircuitFailures:  testThreshold,
			CircuitOpenUntil: now.Add(time.Minute),
		}

		state, event := decide(prior, true, false, now)

		assert.Equal(t, models.EventRecovered, event)
		assert.True(t, state.CircuitOpenUntil.IsZero())
		assert.False(t, CircuitOpen(state, now))
	})
}

func TestDecideHysteresis(t *testing.T) {
	now := time.Now()

	t.Run("single failure keeps an online entity online", func(t *testing.T) {
		prior := models.ResilienceState{EffectiveOnline: true}

		state, event := decide(prior, false, false, now)

		assert.Equal(t, models.EventOfflinePending, event)
		assert.True(t, state.EffectiveOnline)
		assert.Equal(t, 1, state.Failures)
	})

	t.Run("confirmation threshold flips effective status", func(t *testing.T) {
		state := models.ResilienceState{EffectiveOnline: true}

		var event models.StatusEvent

		state, event = decide(state, false, false, now)
		assert.Equal(t, models.EventOfflinePending, event)

		state, event = decide(state, false, false, now)
		assert.Equal(t, models.EventOfflineConfirmed, event)
		assert.False(t, state.EffectiveOnline)
	})

	t.Run("already-offline entity confirms immediately", func(t *testing.T) {
		state, event := decide(models.ResilienceState{}, false, false, now)

		assert.Equal(t, models.EventOfflineConfirmed, event)
		assert.False(t, state.EffectiveOnline)
	})
}

func TestDecideCircuit(t *testing.T) {
	now := time.Now()

	t.Run("error probes accumulate toward the threshold", func(t *testing.T) {
		state := models.ResilienceState{}

		var event models.StatusEvent

		for i := 0; i < testThreshold-1; i++ {
			state, event = decide(state, false, true, now)
			assert.Equal(t, models.EventOfflineConfirmed, event)
		}

		state, event = decide(state, false, true, now)

		assert.Equal(t, models.EventCircuitOpened, event)
		assert.Equal(t, now.Add(testOpenFor), state.CircuitOpenUntil)
		assert.True(t, CircuitOpen(state, now))
		assert.False(t, CircuitOpen(state, now.Add(testOpenFor)))
	})

	t.Run("clean offline walks the circuit counter back", func(t *testing.T) {
		state := models.ResilienceState{CircuitFailures: 2}

		state, _ = decide(state, false, false, now)
		assert.Equal(t, 1, state.CircuitFailures)

		state, _ = decide(state, false, false, now)
		assert.Zero(t, state.CircuitFailures)

		// floor at zero
		state, _ = decide(state, false, false, now)
		assert.Zero(t, state.CircuitFailures)
	})

	t.Run("open deadline never moves backward", func(t *testing.T) {
		future := now.Add(2 * testOpenFor)
		state := models.ResilienceState{
			CircuitFailures:  testThreshold,
			CircuitOpenUntil: future,
		}

		state, event := decide(state, false, true, now)

		assert.Equal(t, models.EventCircuitOpened, event)
		assert.Equal(t, future, state.CircuitOpenUntil)
	})

	t.Run("deadline extends while failures continue", func(t *testing.T) {
		state := models.ResilienceState{CircuitFailures: testThreshold - 1}

		state, _ = decide(state, false, true, now)
		first := state.CircuitOpenUntil

		later := now.Add(time.Minute)
		state, _ = decide(state, false, true, later)

		assert.True(t, state.CircuitOpenUntil.After(first))
	})
}
