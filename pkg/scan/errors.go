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

import "errors"

var (
	// ErrSubnetLimitExceeded is returned the moment CIDR expansion would
	// exceed the configured host cap. A truncated host list is never
	// returned silently.
	ErrSubnetLimitExceeded = errors.New("subnet expansion exceeds host limit")

	// ErrNoValidHosts is returned when no fragment of the subnet list
	// yields a usable host.
	ErrNoValidHosts = errors.New("no valid hosts in subnet list")

	// ErrNoValidPorts is returned when the port list has no usable entry.
	ErrNoValidPorts = errors.New("no valid ports in port list")
)
