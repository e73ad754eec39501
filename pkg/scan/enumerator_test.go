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

package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storegrid/fleetwatch/pkg/logger"
)

func TestExpandSubnets(t *testing.T) {
	log := logger.NewTestLogger()

	t.Run("expands CIDRs excluding network and broadcast", func(t *testing.T) {
		hosts, err := ExpandSubnets("10.0.0.0/30,10.0.1.0/30", 1024, log)
		require.NoError(t, err)

		assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.1.1", "10.0.1.2"}, hosts)
	})

	t.Run("accepts bare IPs and deduplicates preserving order", func(t *testing.T) {
		hosts, err := ExpandSubnets("192.168.1.5, 192.168.1.4, 192.168.1.5", 1024, log)
		require.NoError(t, err)

		assert.Equal(t, []string{"192.168.1.5", "192.168.1.4"}, hosts)
	})

	t.Run("every address usable in a /31", func(t *testing.T) {
		hosts, err := ExpandSubnets("10.0.0.0/31", 1024, log)
		require.NoError(t, err)

		assert.Equal(t, []string{"10.0.0.0", "10.0.0.1"}, hosts)
	})

	t.Run("single host CIDR", func(t *testing.T) {
		hosts, err := ExpandSubnets("10.0.0.7/32", 1024, log)
		require.NoError(t, err)

		assert.Equal(t, []string{"10.0.0.7"}, hosts)
	})

	t.Run("malformed fragments are skipped not fatal", func(t *testing.T) {
		hosts, err := ExpandSubnets("garbage,10.0.0.0/30,300.1.2.3", 1024, log)
		require.NoError(t, err)

		assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, hosts)
	})

	t.Run("fails fast when expansion exceeds the cap", func(t *testing.T) {
		hosts, err := ExpandSubnets("10.0.0.0/24", 100, log)

		require.ErrorIs(t, err, ErrSubnetLimitExceeded)
		assert.Nil(t, hosts)
	})

	t.Run("cap counts across fragments", func(t *testing.T) {
		hosts, err := ExpandSubnets("10.0.0.0/30,10.0.1.0/30", 3, log)

		require.ErrorIs(t, err, ErrSubnetLimitExceeded)
		assert.Nil(t, hosts)
	})

	t.Run("no usable hosts", func(t *testing.T) {
		_, err := ExpandSubnets("garbage,also-garbage", 1024, log)

		require.ErrorIs(t, err, ErrNoValidHosts)
	})
}

func TestParsePorts(t *testing.T) {
	t.Run("drops invalid and duplicate tokens", func(t *testing.T) {
		ports, err := ParsePorts("9100, 631, not-a-port, 9100, 70000, 0")
		require.NoError(t, err)

		assert.Equal(t, []int{9100, 631}, ports)
	})

	t.Run("no usable ports", func(t *testing.T) {
		_, err := ParsePorts("zero, 0, 70000")

		require.ErrorIs(t, err, ErrNoValidPorts)
	})
}
