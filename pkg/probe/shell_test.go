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

package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePortName(t *testing.T) {
	cases := map[string]string{
		"GigabitEthernet1/0/1":    "gi1/0/1",
		"Gi1/0/1":                 "gi1/0/1",
		"TenGigabitEthernet1/1/1": "te1/1/1",
		"FastEthernet0/1":         "fa0/1",
		"Port-channel10":          "po10",
		"Ethernet1/1":             "eth1/1",
		" Gi1/0/2 ":               "gi1/0/2",
	}

	for in, want := range cases {
		assert.Equal(t, want, NormalizePortName(in), in)
	}

	t.Run("long and short forms join", func(t *testing.T) {
		assert.Equal(t, NormalizePortName("GigabitEthernet1/0/12"), NormalizePortName("Gi1/0/12"))
	})
}

func TestPromptDetection(t *testing.T) {
	assert.True(t, promptRe.MatchString("core-sw-1>"))
	assert.True(t, promptRe.MatchString("core-sw-1# "))
	assert.True(t, promptRe.MatchString("output line\r\ncore-sw-1(config)#"))
	assert.False(t, promptRe.MatchString("loading, please wait..."))
}

func TestParseShowVersion(t *testing.T) {
	out := `Cisco IOS Software, C2960X Software, Version 15.2(7)E3
core-sw-1 uptime is 2 weeks, 3 days, 1 hour, 5 minutes
Model Number                    : WS-C2960X-48TS-L`

	model, firmware, uptime := parseShowVersion(out)

	assert.Equal(t, "WS-C2960X-48TS-L", model)
	assert.Equal(t, "15.2(7)E3", firmware)

	want := int64(2*7*24*3600 + 3*24*3600 + 1*3600 + 5*60)
	assert.Equal(t, want, uptime)
}

func TestParseUptime(t *testing.T) {
	assert.Equal(t, int64(90061), parseUptime("1 day, 1 hour, 1 minute, 1 second"))
	assert.Equal(t, int64(0), parseUptime("garbage"))
}

func TestParseInterfaceStatus(t *testing.T) {
	out := `Port      Name               Status       Vlan       Duplex  Speed Type
Gi1/0/1   uplink to core     connected    1          a-full  a-1000 10/100/1000BaseTX
Gi1/0/2                      notconnect   100          auto    auto 10/100/1000BaseTX
Gi1/0/3   maintenance        disabled     100          auto    auto 10/100/1000BaseTX`

	states := parseInterfaceStatus(out)
	require.Len(t, states, 3)

	assert.Equal(t, "Gi1/0/1", states[0].Name)
	assert.Equal(t, "uplink to core", states[0].Description)
	assert.True(t, states[0].OperUp)
	assert.True(t, states[0].AdminUp)
	assert.Equal(t, 1, states[0].VLAN)

	assert.False(t, states[1].OperUp)
	assert.True(t, states[1].AdminUp)
	assert.Equal(t, 100, states[1].VLAN)

	assert.False(t, states[2].OperUp)
	assert.False(t, states[2].AdminUp)
}

func TestParseLLDPNeighbors(t *testing.T) {
	out := `Capability codes: (R) Router, (B) Bridge, (W) WLAN Access Point

Device ID           Local Intf     Hold-time  Capability      Port ID
ap-checkout-1       Gi1/0/12       120        B,W             eth0
ap-backroom         Gi1/0/13       120        B,W             eth0

Total entries displayed: 2`

	neighbors := parseLLDPNeighbors(out)
	require.Len(t, neighbors, 2)

	assert.Equal(t, "ap-checkout-1", neighbors[0].DeviceID)
	assert.Equal(t, "Gi1/0/12", neighbors[0].LocalPort)
	assert.Equal(t, "eth0", neighbors[0].PortID)
}

func TestParsePowerInline(t *testing.T) {
	out := `Interface Admin  Oper       Power   Device              Class Max
--------- ------ ---------- ------- ------------------- ----- ----
Gi1/0/12  auto   on         15.4    AIR-AP2802I         4     30.0
Gi1/0/13  auto   off        0.0     n/a                 n/a   30.0
Gi1/0/14  never  off        0.0     n/a                 n/a   30.0`

	ports := parsePowerInline(out)
	require.Len(t, ports, 3)

	assert.Equal(t, "Gi1/0/12", ports[0].Port)
	assert.True(t, ports[0].AdminOn)
	assert.True(t, ports[0].OperOn)
	assert.InDelta(t, 15.4, ports[0].Watts, 0.001)
	assert.Equal(t, "AIR-AP2802I", ports[0].Device)

	assert.False(t, ports[1].OperOn)
	assert.False(t, ports[2].AdminOn)
}

func TestParseMACTable(t *testing.T) {
	out := `          Mac Address Table
-------------------------------------------
Vlan    Mac Address       Type        Ports
----    -----------       --------    -----
 100    aabb.ccdd.eeff    DYNAMIC     Gi1/0/12
 100    0011.2233.4455    STATIC      Gi1/0/13`

	entries := parseMACTable(out)
	require.Len(t, entries, 2)

	assert.Equal(t, 100, entries[0].VLAN)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", entries[0].MAC)
	assert.Equal(t, "Gi1/0/12", entries[0].Port)
}

func TestDottedMACToColon(t *testing.T) {
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", dottedMACToColon("aabb.ccdd.eeff"))
	assert.Empty(t, dottedMACToColon("not-a-mac"))
	assert.Empty(t, dottedMACToColon("aabb.ccdd"))
}

func TestIntersectAccessPoints(t *testing.T) {
	macs := []macEntry{
		{VLAN: 100, MAC: "aa:bb:cc:dd:ee:ff", Port: "Gi1/0/12"},
		{VLAN: 100, MAC: "00:11:22:33:44:55", Port: "Gi1/0/13"}, // no LLDP neighbor
		{VLAN: 100, MAC: "de:ad:be:ef:00:01", Port: "Gi1/0/14"}, // PoE off
	}

	// neighbor table uses the long interface form; joining happens on the
	// normalized name
	neighbors := []ShellNeighbor{
		{DeviceID: "ap-checkout-1", LocalPort: "GigabitEthernet1/0/12", PortID: "eth0"},
		{DeviceID: "ap-backroom", LocalPort: "GigabitEthernet1/0/14", PortID: "eth0"},
	}

	poe := []PoEPort{
		{Port: "Gi1/0/12", AdminOn: true, OperOn: true, Watts: 15.4},
		{Port: "Gi1/0/13", AdminOn: true, OperOn: true, Watts: 12.0},
		{Port: "Gi1/0/14", AdminOn: true, OperOn: false},
	}

	aps := intersectAccessPoints(macs, neighbors, poe)
	require.Len(t, aps, 1)

	assert.Equal(t, "Gi1/0/12", aps[0].Port)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", aps[0].MAC)
	assert.Equal(t, "ap-checkout-1", aps[0].Neighbor)
	assert.InDelta(t, 15.4, aps[0].Watts, 0.001)
}

func TestStripEchoAndPrompt(t *testing.T) {
	out := "show version\nCisco IOS Software\nMore output\ncore-sw-1#"

	assert.Equal(t, "Cisco IOS Software\nMore output", stripEchoAndPrompt(out, "show version"))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "core-sw-1#", lastLine("banner\r\ncore-sw-1#\r\n"))
	assert.Empty(t, lastLine(""))
}
