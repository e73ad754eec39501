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

package snmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storegrid/fleetwatch/pkg/logger"
)

func TestPDUString(t *testing.T) {
	assert.Equal(t, "hello", pduString(gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("hello")}))
	assert.Empty(t, pduString(gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: 42}))
	assert.Empty(t, pduString(gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: 42}))
}

func TestIndexSuffix(t *testing.T) {
	idx, ok := indexSuffix(".1.3.6.1.2.1.2.2.1.2.10104")
	assert.True(t, ok)
	assert.Equal(t, 10104, idx)

	_, ok = indexSuffix("no-dots")
	assert.False(t, ok)

	_, ok = indexSuffix(".1.2.not-a-number")
	assert.False(t, ok)
}

func TestFormatMAC(t *testing.T) {
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", FormatMAC([]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}))
	assert.Empty(t, FormatMAC([]byte{0xaa, 0xbb}))
	assert.Empty(t, FormatMAC(nil))
}

func TestIsTransportError(t *testing.T) {
	assert.False(t, IsTransportError(nil))
	assert.False(t, IsTransportError(ErrNoData))
	assert.False(t, IsTransportError(fmt.Errorf("wrapped: %w", ErrNoData)))
	assert.True(t, IsTransportError(errors.New("request timeout")))
}

// Concurrent exchanges must never overlap on the wire. The responder
// records when each request arrives and never answers, so every Get holds
// the exchange slot for its full timeout; with serialization the second
// request cannot arrive before the first exchange has timed out.
func TestGetSerializesExchanges(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	port := uint16(conn.LocalAddr().(*net.UDPAddr).Port)

	var (
		mu       sync.Mutex
		arrivals []time.Time
	)

	go func() {
		buf := make([]byte, 2048)

		for {
			if _, _, readErr := conn.ReadFrom(buf); readErr != nil {
				return
			}

			mu.Lock()
			arrivals = append(arrivals, time.Now())
			mu.Unlock()
		}
	}()

	const exchangeTimeout = 250 * time.Millisecond

	client := NewClient(exchangeTimeout, 0, logger.NewTestLogger())

	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, getErr := client.Get(context.Background(), "127.0.0.1", "public", port, []string{OIDSysDescr})
			assert.Error(t, getErr)
		}()
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, arrivals, 2)
	assert.GreaterOrEqual(t, arrivals[1].Sub(arrivals[0]), 200*time.Millisecond)
}
