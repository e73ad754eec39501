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

// Package poller runs bulk poll cycles over the device fleet. Each cycle
// fans targets out to bounded worker pools, applies the resilience
// decision to every raw probe verdict, and reports effective status
// transitions to a sink.
package poller

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/storegrid/fleetwatch/pkg/config"
	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/probe"
	"github.com/storegrid/fleetwatch/pkg/resilience"
)

// StatusSink receives the effective status for every polled target. The
// inventory and event-log collaborators hang off this callback; the
// poller itself owns no device records.
type StatusSink func(deviceID string, event models.StatusEvent, outcome *models.PollOutcome, state models.ResilienceState)

// Resolver selects the probe strategy for a target.
type Resolver interface {
	Resolve(target models.PollTarget) probe.Prober
}

// Poller drives poll cycles. Interactive shell sessions are expensive on
// the device side, so shell targets run in their own, smaller pool sized
// independently of the generic one.
type Poller struct {
	resolver Resolver
	states   *resilience.StateStore
	sink     StatusSink
	logger   logger.Logger

	confirmations    int
	circuitThreshold int
	circuitOpenFor   time.Duration
	jitterMax        time.Duration
	shellWorkers     int
	genericWorkers   int

	// swappable in tests
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

func New(resolver Resolver, states *resilience.StateStore, cfg *config.Config, sink StatusSink, log logger.Logger) *Poller {
	return &Poller{
		resolver:         resolver,
		states:           states,
		sink:             sink,
		logger:           log.WithComponent("poller"),
		confirmations:    cfg.PollOfflineConfirmations,
		circuitThreshold: cfg.PollCircuitFailureThreshold,
		circuitOpenFor:   cfg.PollCircuitOpen,
		jitterMax:        cfg.PollJitterMax,
		shellWorkers:     cfg.PollShellConcurrency,
		genericWorkers:   cfg.ScanTCPConcurrency,
		now:              time.Now,
		sleep:            sleepCtx,
	}
}

type cycleCounters struct {
	mu      sync.Mutex
	summary models.CycleSummary
}

func (c *cycleCounters) record(event models.StatusEvent, skipped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if skipped {
		c.summary.Skipped++

		return
	}

	c.summary.Polled++

	switch event {
	case models.EventOnline, models.EventRecovered, models.EventOfflinePending:
		c.summary.Online++
	case models.EventCircuitOpened:
		c.summary.Offline++
		c.summary.Errors++
	case models.EventOfflineConfirmed:
		c.summary.Offline++
	}
}

// RunCycle polls every target once and returns the cycle summary. The
// shell and generic pools drain concurrently; the call returns when both
// are done.
func (p *Poller) RunCycle(ctx context.Context, targets []models.PollTarget) models.CycleSummary {
	start := p.now()

	var shellTargets, genericTargets []models.PollTarget

	for _, t := range targets {
		if t.Kind == models.KindSwitch && t.Shell != nil {
			shellTargets = append(shellTargets, t)
		} else {
			genericTargets = append(genericTargets, t)
		}
	}

	counters := &cycleCounters{}

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		p.runPool(ctx, shellTargets, p.shellWorkers, counters)
	}()

	go func() {
		defer wg.Done()

		p.runPool(ctx, genericTargets, p.genericWorkers, counters)
	}()

	wg.Wait()

	counters.summary.Duration = p.now().Sub(start)

	p.logger.Info().
		Int("polled", counters.summary.Polled).
		Int("online", counters.summary.Online).
		Int("offline", counters.summary.Offline).
		Int("errors", counters.summary.Errors).
		Int("skipped", counters.summary.Skipped).
		Dur("duration", counters.summary.Duration).
		Msg("poll cycle complete")

	return counters.summary
}

func (p *Poller) runPool(ctx context.Context, targets []models.PollTarget, workers int, counters *cycleCounters) {
	if len(targets) == 0 {
		return
	}

	if workers < 1 {
		workers = 1
	}

	if workers > len(targets) {
		workers = len(targets)
	}

	work := make(chan models.PollTarget)

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for target := range work {
				p.pollOne(ctx, target, counters)
			}
		}()
	}

	for _, t := range targets {
		select {
		case work <- t:
		case <-ctx.Done():
			close(work)
			wg.Wait()

			return
		}
	}

	close(work)
	wg.Wait()
}

func (p *Poller) pollOne(ctx context.Context, target models.PollTarget, counters *cycleCounters) {
	// Inventory is an external collaborator; a target with a kind this
	// build does not know is skipped, not probed with a guessed strategy.
	if !target.Kind.Valid() {
		counters.record("", true)

		p.logger.Warn().
			Str("device_id", target.DeviceID).
			Str("kind", string(target.Kind)).
			Msg("unknown device kind, skipping target")

		return
	}

	// Jitter spreads simultaneous probes so a cycle start does not
	// thundering-herd the subnet.
	if p.jitterMax > 0 {
		p.sleep(ctx, time.Duration(rand.Int63n(int64(p.jitterMax)))) //nolint:gosec // jitter, not crypto
	}

	if ctx.Err() != nil {
		return
	}

	state, err := p.states.Get(ctx, target.DeviceID)

	// A broken state store must never stop polling. Degrade: treat the
	// circuit as closed and skip persistence for this target.
	degraded := err != nil
	if degraded {
		p.logger.Warn().Err(err).Str("device_id", target.DeviceID).Msg("state store unavailable, polling without resilience state")

		state = models.ResilienceState{}
	}

	now := p.now()

	// Circuit check happens before any probe traffic.
	if resilience.CircuitOpen(state, now) {
		counters.record("", true)

		p.logger.Debug().
			Str("device_id", target.DeviceID).
			Time("open_until", state.CircuitOpenUntil).
			Msg("circuit open, skipping probe")

		return
	}

	prober := p.resolver.Resolve(target)

	outcome, err := prober.Poll(ctx, target)
	if err != nil {
		// The error return is reserved for caller mistakes such as a
		// malformed target. Count it as an error probe so a persistent
		// misconfiguration eventually opens the circuit.
		p.logger.Error().Err(err).Str("device_id", target.DeviceID).Msg("probe rejected target")

		outcome = &models.PollOutcome{ProbedError: true}
	}

	state, event := resilience.Decide(
		state,
		outcome.ProbedOnline, outcome.ProbedError,
		p.confirmations, p.circuitThreshold,
		p.circuitOpenFor,
		now,
	)

	if !degraded {
		if err := p.states.Put(ctx, target.DeviceID, state); err != nil {
			p.logger.Warn().Err(err).Str("device_id", target.DeviceID).Msg("failed to persist resilience state")
		}
	}

	counters.record(event, false)

	if p.sink != nil {
		p.sink(target.DeviceID, event, outcome, state)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
