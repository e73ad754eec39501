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

import "strings"

// Vendor output abbreviates interface names inconsistently between
// commands ("GigabitEthernet1/0/1" in one table, "Gi1/0/1" in another).
// NormalizePortName reduces both to the same short form so tables can be
// joined on port name.
func NormalizePortName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "")

	replacements := []struct {
		long  string
		short string
	}{
		{"twentyfivegigabitethernet", "twe"},
		{"hundredgigabitethernet", "hu"},
		{"fortygigabitethernet", "fo"},
		{"tengigabitethernet", "te"},
		{"gigabitethernet", "gi"},
		{"fastethernet", "fa"},
		{"port-channel", "po"},
		{"ethernet", "eth"},
		{"mgmt", "ma"},
	}

	for _, r := range replacements {
		if strings.HasPrefix(name, r.long) {
			return r.short + name[len(r.long):]
		}
	}

	return name
}
