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

// Package discovery orchestrates subnet scans: enumerate candidate hosts,
// probe their ports, identify device kinds, enrich with link-layer data,
// and correlate against known inventory. One scan per device kind runs at
// a time; progress and results live in the session store.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storegrid/fleetwatch/pkg/config"
	"github.com/storegrid/fleetwatch/pkg/enrich"
	"github.com/storegrid/fleetwatch/pkg/identify"
	"github.com/storegrid/fleetwatch/pkg/logger"
	"github.com/storegrid/fleetwatch/pkg/models"
	"github.com/storegrid/fleetwatch/pkg/scan"
	"github.com/storegrid/fleetwatch/pkg/session"
)

// ErrUnknownKind is returned for a scan request naming a device kind the
// engine does not discover.
var ErrUnknownKind = errors.New("unknown device kind")

// scannable reports whether the kind supports network discovery. Kinds
// that are only polled, never scanned, are rejected here.
func scannable(kind models.DeviceKind) bool {
	for _, k := range models.ScannableKinds() {
		if kind == k {
			return true
		}
	}

	return false
}

// Engine runs discovery scans. Scans execute asynchronously; StartScan
// returns as soon as the session lock is held and validation has passed.
type Engine struct {
	sessions   *session.Store
	scanner    *scan.PortScanner
	identifier *identify.Identifier
	enricher   *enrich.Enricher
	logger     logger.Logger

	defaultSubnet string
	defaultPorts  string
	maxHosts      int

	// background scans detach from the request context
	baseCtx context.Context
}

func NewEngine(
	ctx context.Context,
	sessions *session.Store,
	scanner *scan.PortScanner,
	identifier *identify.Identifier,
	enricher *enrich.Enricher,
	cfg *config.Config,
	log logger.Logger,
) *Engine {
	return &Engine{
		sessions:      sessions,
		scanner:       scanner,
		identifier:    identifier,
		enricher:      enricher,
		logger:        log.WithComponent("discovery"),
		defaultSubnet: cfg.ScanSubnet,
		defaultPorts:  cfg.ScanPorts,
		maxHosts:      cfg.ScanMaxHosts,
		baseCtx:       ctx,
	}
}

// StartScan validates the request, claims the per-kind session lock, and
// launches the scan in the background. Validation failures and lock
// conflicts surface synchronously; everything after that is reported
// through the session record. There is no mid-flight cancellation; the
// session TTL reclaims abandoned state.
func (e *Engine) StartScan(ctx context.Context, kind models.DeviceKind, req models.ScanRequest) (*models.ScanSession, error) {
	if !scannable(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	subnet := req.Subnet
	if subnet == "" {
		subnet = e.defaultSubnet
	}

	portSpec := req.Ports
	if portSpec == "" {
		portSpec = e.defaultPorts
	}

	// Validate before taking the lock so a bad request never claims it.
	hosts, err := scan.ExpandSubnets(subnet, e.maxHosts, e.logger)
	if err != nil {
		return nil, err
	}

	ports, err := scan.ParsePorts(portSpec)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()

	if err := e.sessions.AcquireLock(ctx, kind, sessionID); err != nil {
		return nil, err
	}

	sess := &models.ScanSession{
		ID:        sessionID,
		Kind:      kind,
		Status:    models.ScanRunning,
		Total:     len(hosts),
		StartedAt: time.Now(),
	}

	if err := e.sessions.PutSession(ctx, sess); err != nil {
		_ = e.sessions.ReleaseLock(ctx, kind)

		return nil, err
	}

	go e.runScan(e.baseCtx, *sess, hosts, ports, req.KnownDevices)

	return sess, nil
}

// Status returns the current session snapshot for the kind.
func (e *Engine) Status(ctx context.Context, kind models.DeviceKind) (*models.ScanSession, error) {
	if !scannable(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	return e.sessions.GetSession(ctx, kind)
}

// Results returns progress plus the devices found by the most recent
// scan of the kind.
func (e *Engine) Results(ctx context.Context, kind models.DeviceKind) (*models.ScanResults, error) {
	if !scannable(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	return e.sessions.GetResults(ctx, kind)
}

func (e *Engine) runScan(ctx context.Context, sess models.ScanSession, hosts []string, ports []int, known []models.KnownDevice) {
	defer func() {
		if err := e.sessions.ReleaseLock(ctx, sess.Kind); err != nil {
			e.logger.Warn().Err(err).Str("kind", string(sess.Kind)).Msg("failed to release scan lock")
		}
	}()

	e.logger.Info().
		Str("session_id", sess.ID).
		Str("kind", string(sess.Kind)).
		Int("hosts", len(hosts)).
		Int("ports", len(ports)).
		Msg("scan started")

	found, err := e.scanner.Scan(ctx, hosts, ports, func(p scan.BatchProgress) {
		sess.Scanned = p.Scanned
		sess.Found = p.Found

		if err := e.sessions.PutSession(ctx, &sess); err != nil {
			e.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to persist scan progress")
		}
	})
	if err != nil {
		e.failScan(ctx, &sess, err)

		return
	}

	devices := e.identifier.Identify(ctx, sess.Kind, found)
	devices = e.enricher.Enrich(ctx, devices)
	devices = enrich.CorrelateKnown(devices, known)

	if err := e.sessions.PutResults(ctx, sess.Kind, devices); err != nil {
		e.failScan(ctx, &sess, err)

		return
	}

	sess.Status = models.ScanDone
	sess.Scanned = sess.Total
	sess.Found = len(devices)

	if err := e.sessions.PutSession(ctx, &sess); err != nil {
		e.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to persist final session")
	}

	e.logger.Info().
		Str("session_id", sess.ID).
		Str("kind", string(sess.Kind)).
		Int("found", len(devices)).
		Msg("scan complete")
}

func (e *Engine) failScan(ctx context.Context, sess *models.ScanSession, cause error) {
	sess.Status = models.ScanError
	sess.Message = cause.Error()

	if err := e.sessions.PutSession(ctx, sess); err != nil {
		e.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to persist failed session")
	}

	e.logger.Error().Err(cause).Str("session_id", sess.ID).Msg("scan failed")
}
