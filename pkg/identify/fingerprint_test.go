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

package identify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// acceptSwitch mirrors the classification rule: switch hints present,
// printer hints absent.
func acceptSwitch(identity string) bool {
	identity = strings.ToLower(identity)

	return containsAny(identity, switchHints) && !containsAny(identity, printerHints)
}

func acceptPrinter(identity string) bool {
	identity = strings.ToLower(identity)

	return containsAny(identity, printerHints) && !containsAny(identity, switchHints)
}

func TestClassificationIsDisjoint(t *testing.T) {
	t.Run("switch identity accepted", func(t *testing.T) {
		assert.True(t, acceptSwitch("Cisco IOS Software, Catalyst 2960"))
		assert.False(t, acceptPrinter("Cisco IOS Software, Catalyst 2960"))
	})

	t.Run("printer identity accepted", func(t *testing.T) {
		assert.True(t, acceptPrinter("HP LaserJet 4250 series"))
		assert.False(t, acceptSwitch("HP LaserJet 4250 series"))
	})

	t.Run("ambiguous identity rejected by both", func(t *testing.T) {
		identity := "LaserJet print server switch module"

		assert.False(t, acceptSwitch(identity))
		assert.False(t, acceptPrinter(identity))
	})

	t.Run("generic sysDescr classified by appended device descr", func(t *testing.T) {
		// The printer path appends hrDeviceDescr when sysDescr alone
		// carries no hint.
		sysDescr := "Embedded Linux OS v2.1"
		assert.False(t, acceptPrinter(sysDescr))
		assert.True(t, acceptPrinter(sysDescr+" HP LaserJet M402dn"))
	})

	t.Run("unknown identity rejected by both", func(t *testing.T) {
		identity := "Linux fileserver 5.10"

		assert.False(t, acceptSwitch(identity))
		assert.False(t, acceptPrinter(identity))
	})
}

func TestVendorFromIdentity(t *testing.T) {
	cases := map[string]string{
		"cisco ios software":     "Cisco",
		"hp procurve 2810":       "HP",
		"aruba aos-cx":           "Aruba",
		"unifi switch usw-24":    "Ubiquiti",
		"hp laserjet 4250":       "HP",
		"kyocera ecosys m2040dn": "Kyocera",
		"xerox versalink c405":   "Xerox",
		"no known vendor here":   "",
	}

	for identity, vendor := range cases {
		assert.Equal(t, vendor, vendorFromIdentity(identity), identity)
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Cisco IOS", firstLine("Cisco IOS\r\nCompiled Mon"))
	assert.Equal(t, "one line", firstLine("  one line  "))
	assert.Empty(t, firstLine(""))
}

func TestStatusDocumentMatching(t *testing.T) {
	t.Run("all required tags", func(t *testing.T) {
		body := `{"playback_state":"playing","volume":40,"firmware":"2.1.0"}`

		assert.True(t, hasAllTags(body, requiredStatusTags))
	})

	t.Run("missing one tag", func(t *testing.T) {
		body := `{"playback_state":"playing","volume":40}`

		assert.False(t, hasAllTags(body, requiredStatusTags))
	})

	t.Run("bare page has no marker", func(t *testing.T) {
		body := "<html><body>It works!</body></html>"

		assert.False(t, hasAllTags(strings.ToLower(body), requiredStatusTags))
		assert.False(t, containsAny(strings.ToLower(body), nowPlayingMarkers))
	})
}

func TestExtractModel(t *testing.T) {
	assert.Equal(t, "MS-4200", extractModel(`{"model":"MS-4200","firmware":"2.1"}`))
	assert.Equal(t, "MS-4200", extractModel(`{"model": "MS-4200"}`))
	assert.Empty(t, extractModel(`{"name":"player"}`))
}

func TestHTTPPorts(t *testing.T) {
	assert.Equal(t, []int{80, 8080}, httpPorts([]int{22, 80, 443, 8080, 9100}))
	assert.Nil(t, httpPorts([]int{22, 9100}))
}
