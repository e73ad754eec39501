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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/storegrid/fleetwatch/pkg/api"
	"github.com/storegrid/fleetwatch/pkg/config"
	"github.com/storegrid/fleetwatch/pkg/discovery"
	"github.com/storegrid/fleetwatch/pkg/enrich"
	"github.com/storegrid/fleetwatch/pkg/identify"
	"github.com/storegrid/fleetwatch/pkg/kv"
	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/poller"
	"github.com/storegrid/fleetwatch/pkg/probe"
	"github.com/storegrid/fleetwatch/pkg/resilience"
	"github.com/storegrid/fleetwatch/pkg/scan"
	"github.com/storegrid/fleetwatch/pkg/session"
	"github.com/storegrid/fleetwatch/pkg/snmp"
)

// Session state and resilience state carry different TTLs, and NATS KV
// TTLs are bucket-level, so each gets its own bucket on one connection.
const (
	sessionBucket    = "fleetwatch-scan"
	resilienceBucket = "fleetwatch-resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open KV backend")
	}
	defer stores.close()

	sessions := session.NewStore(stores.sessions, cfg.SessionTTL, log)
	states := resilience.NewStateStore(stores.states, cfg.PollResilienceStateTTL, log)

	snmpClient := snmp.NewClient(cfg.ScanTCPTimeout, cfg.ScanTCPRetries, log)
	scanner := scan.NewPortScanner(cfg.ScanTCPTimeout, cfg.ScanTCPRetries, cfg.ScanTCPConcurrency, log)
	identifier := identify.NewIdentifier(snmpClient, cfg.ScanSNMPCommunity, log)
	enricher := enrich.NewEnricher(log)

	engine := discovery.NewEngine(ctx, sessions, scanner, identifier, enricher, cfg, log)

	resolver := probe.NewResolver(snmpClient, log)
	pollr := poller.New(resolver, states, cfg, statusLogSink(log), log)

	go runPollLoop(ctx, cfg, sessions, pollr, log)

	server := api.NewServer(engine, cfg.ListenAddr, log)

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
}

type backingStores struct {
	sessions kv.Store
	states   kv.Store
	nc       *nats.Conn
}

func (b *backingStores) close() {
	_ = b.sessions.Close()
	_ = b.states.Close()

	if b.nc != nil {
		b.nc.Close()
	}
}

// openStores picks the KV backend: NATS JetStream when a URL is
// configured, in-process memory otherwise. Both buckets share one
// connection.
func openStores(ctx context.Context, cfg *config.Config) (*backingStores, error) {
	if cfg.NATSURL == "" {
		return &backingStores{
			sessions: kv.NewMemoryStore(),
			states:   kv.NewMemoryStore(),
		}, nil
	}

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	sessions, err := kv.NewNatsStoreWithConn(ctx, nc, sessionBucket, cfg.SessionTTL)
	if err != nil {
		nc.Close()

		return nil, err
	}

	states, err := kv.NewNatsStoreWithConn(ctx, nc, resilienceBucket, cfg.PollResilienceStateTTL)
	if err != nil {
		nc.Close()

		return nil, err
	}

	return &backingStores{sessions: sessions, states: states, nc: nc}, nil
}

// statusLogSink records status transitions in the event log. The inventory
// collaborator subscribes to the same stream in production.
func statusLogSink(log logger.Logger) poller.StatusSink {
	return func(deviceID string, event models.StatusEvent, _ *models.PollOutcome, _ models.ResilienceState) {
		if event == "" {
			return
		}

		log.Info().
			Str("device_id", deviceID).
			Str("event", string(event)).
			Msg("device status")
	}
}

// runPollLoop polls every device from the most recent scan results on a
// fixed interval.
func runPollLoop(ctx context.Context, cfg *config.Config, sessions *session.Store, pollr *poller.Poller, log logger.Logger) {
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		targets := discoveredTargets(ctx, cfg, sessions, log)
		if len(targets) == 0 {
			continue
		}

		pollr.RunCycle(ctx, targets)
	}
}

// discoveredTargets builds the poll set from each kind's latest scan
// results. Freshly discovered gear has no stored credentials yet, so the
// scan community is used for SNMP attributes.
func discoveredTargets(ctx context.Context, cfg *config.Config, sessions *session.Store, log logger.Logger) []models.PollTarget {
	var targets []models.PollTarget

	for _, kind := range models.ScannableKinds() {
		results, err := sessions.GetResults(ctx, kind)
		if err != nil {
			log.Debug().Err(err).Str("kind", string(kind)).Msg("no scan results to poll")

			continue
		}

		for _, d := range results.Devices {
			id := d.DeviceID
			if id == "" {
				id = d.IP
			}

			targets = append(targets, models.PollTarget{
				DeviceID: id,
				Kind:     kind,
				Address:  d.IP,
				SNMP:     &models.SNMPCredentials{Community: cfg.ScanSNMPCommunity},
			})
		}
	}

	return targets
}
