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

// Package snmp wraps gosnmp behind a serialized client. The underlying
// transport has shared engine state that corrupts concurrent exchanges, so
// every Get/Walk/Set across the process takes the single-slot mutex for the
// full exchange. This is a hard invariant, not a performance tweak.
package snmp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/storegrid/fleetwatch/pkg/logger"
)

const (
	defaultPort    = 161
	defaultTimeout = 3 * time.Second
	defaultRetries = 1
)

var (
	// ErrNoData is returned when a target answered but every varbind was
	// NoSuchObject/NoSuchInstance. This is a clean "offline" for the
	// circuit breaker, not an error.
	ErrNoData = errors.New("no SNMP data returned")

	// ErrProtocol is returned for an explicit SNMP error PDU.
	ErrProtocol = errors.New("SNMP protocol error")
)

// SystemInfo is the system-group identity of a target.
type SystemInfo struct {
	Descr         string
	Name          string
	ObjectID      string
	UptimeSeconds int64
}

// Client issues serialized SNMP exchanges against arbitrary targets.
type Client struct {
	mu      sync.Mutex
	timeout time.Duration
	retries int
	logger  logger.Logger
}

// NewClient builds a serialized SNMP client. Zero values fall back to
// defaults.
func NewClient(timeout time.Duration, retries int, log logger.Logger) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}

	if retries < 0 {
		retries = defaultRetries
	}

	return &Client{timeout: timeout, retries: retries, logger: log}
}

func (c *Client) connect(ctx context.Context, target, community string, port uint16) (*gosnmp.GoSNMP, error) {
	if port == 0 {
		port = defaultPort
	}

	g := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   c.timeout,
		Retries:   c.retries,
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	return g, nil
}

// Get performs a serialized SNMP GET and returns the varbinds.
func (c *Client) Get(ctx context.Context, target, community string, port uint16, oids []string) ([]gosnmp.SnmpPDU, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.connect(ctx, target, community, port)
	if err != nil {
		return nil, err
	}
	defer c.closeConn(g)

	result, err := g.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("SNMP Get failed for %s: %w", target, err)
	}

	if result.Error != gosnmp.NoError {
		return nil, fmt.Errorf("%w: %s", ErrProtocol, result.Error)
	}

	return result.Variables, nil
}

// BulkWalk performs a serialized SNMP BULKWALK rooted at oid.
func (c *Client) BulkWalk(ctx context.Context, target, community string, port uint16, oid string, fn gosnmp.WalkFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.connect(ctx, target, community, port)
	if err != nil {
		return err
	}
	defer c.closeConn(g)

	if err := g.BulkWalk(oid, fn); err != nil {
		return fmt.Errorf("SNMP walk of %s failed for %s: %w", oid, target, err)
	}

	return nil
}

// Set performs a serialized SNMP SET with the write community.
func (c *Client) Set(ctx context.Context, target, community string, port uint16, pdus []gosnmp.SnmpPDU) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.connect(ctx, target, community, port)
	if err != nil {
		return err
	}
	defer c.closeConn(g)

	result, err := g.Set(pdus)
	if err != nil {
		return fmt.Errorf("SNMP Set failed for %s: %w", target, err)
	}

	if result.Error != gosnmp.NoError {
		return fmt.Errorf("%w: %s", ErrProtocol, result.Error)
	}

	return nil
}

// SystemInfo queries the system group. ErrNoData means the target answered
// with no usable varbinds.
func (c *Client) SystemInfo(ctx context.Context, target, community string, port uint16) (*SystemInfo, error) {
	oids := []string{OIDSysDescr, OIDSysObjectID, OIDSysUptime, OIDSysName}

	vars, err := c.Get(ctx, target, community, port, oids)
	if err != nil {
		return nil, err
	}

	info := &SystemInfo{}
	foundSomething := false

	for _, v := range vars {
		if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance {
			continue
		}

		foundSomething = true

		switch v.Name {
		case OIDSysDescr:
			info.Descr = pduString(v)
		case OIDSysObjectID:
			if s, ok := v.Value.(string); ok {
				info.ObjectID = s
			}
		case OIDSysUptime:
			if ticks, ok := v.Value.(uint32); ok {
				info.UptimeSeconds = int64(ticks) / 100
			}
		case OIDSysName:
			info.Name = pduString(v)
		}
	}

	if !foundSomething {
		return nil, ErrNoData
	}

	return info, nil
}

// InterfaceMACs walks ifPhysAddress and returns MACs by interface index.
func (c *Client) InterfaceMACs(ctx context.Context, target, community string, port uint16) (map[int]string, error) {
	macs := make(map[int]string)

	err := c.BulkWalk(ctx, target, community, port, OIDIfPhysAddress, func(pdu gosnmp.SnmpPDU) error {
		idx, ok := indexSuffix(pdu.Name)
		if !ok {
			return nil
		}

		if pdu.Type == gosnmp.OctetString {
			if mac := FormatMAC(pdu.Value.([]byte)); mac != "" {
				macs[idx] = mac
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return macs, nil
}

func (c *Client) closeConn(g *gosnmp.GoSNMP) {
	if g.Conn == nil {
		return
	}

	if err := g.Conn.Close(); err != nil {
		c.logger.Debug().Err(err).Str("target", g.Target).Msg("failed to close SNMP connection")
	}
}

// pduString extracts a string value from an OctetString varbind.
func pduString(pdu gosnmp.SnmpPDU) string {
	if pdu.Type != gosnmp.OctetString {
		return ""
	}

	b, ok := pdu.Value.([]byte)
	if !ok {
		return ""
	}

	return string(b)
}

// indexSuffix extracts the trailing table index from a walked OID.
func indexSuffix(oid string) (int, bool) {
	dot := strings.LastIndex(oid, ".")
	if dot < 0 {
		return 0, false
	}

	idx, err := strconv.Atoi(oid[dot+1:])
	if err != nil {
		return 0, false
	}

	return idx, true
}

// FormatMAC formats a 6-byte physical address as aa:bb:cc:dd:ee:ff.
func FormatMAC(mac []byte) string {
	if len(mac) != 6 {
		return ""
	}

	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// IsTransportError reports whether err represents a transport failure
// (timeout, unreachable) as opposed to a clean no-data answer. Explicit
// no-data answers do not feed the circuit breaker.
func IsTransportError(err error) bool {
	return err != nil && !errors.Is(err, ErrNoData)
}
