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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/storegrid/fleetwatch/pkg/kv"
	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
)

const (
	statePrefix = "resilience/"

	// DefaultStateTTL keeps state alive across poll cycles; entities that
	// stop being polled expire naturally.
	DefaultStateTTL = 7 * 24 * time.Hour
)

// StateStore persists per-entity resilience counters with TTL refresh on
// every update. Updates are read-modify-write without cross-process
// atomicity; a lost update is overwritten within one more poll cycle.
type StateStore struct {
	kv     kv.Store
	ttl    time.Duration
	logger logger.Logger
}

// NewStateStore wraps a kv.Store. ttl of zero falls back to
// DefaultStateTTL.
func NewStateStore(store kv.Store, ttl time.Duration, log logger.Logger) *StateStore {
	if ttl == 0 {
		ttl = DefaultStateTTL
	}

	return &StateStore{kv: store, ttl: ttl, logger: log}
}

// Get loads the entity's state. A missing key yields the zero state: the
// entity starts effectively offline with clean counters, so its first
// successful probe reports a plain "online" event.
func (s *StateStore) Get(ctx context.Context, deviceID string) (models.ResilienceState, error) {
	var state models.ResilienceState

	data, found, err := s.kv.Get(ctx, statePrefix+deviceID)
	if err != nil {
		return state, fmt.Errorf("failed to load resilience state for %s: %w", deviceID, err)
	}

	if !found {
		return state, nil
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return models.ResilienceState{}, fmt.Errorf("failed to decode resilience state for %s: %w", deviceID, err)
	}

	return state, nil
}

// Put stores the entity's state, refreshing its TTL.
func (s *StateStore) Put(ctx context.Context, deviceID string, state models.ResilienceState) error {
	state.UpdatedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal resilience state: %w", err)
	}

	if err := s.kv.Put(ctx, statePrefix+deviceID, data, s.ttl); err != nil {
		return fmt.Errorf("failed to store resilience state for %s: %w", deviceID, err)
	}

	return nil
}
