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

import "errors"

var (
	// ErrNotSupported is returned by port operations on strategies that
	// cannot manage ports.
	ErrNotSupported = errors.New("operation not supported by this probe strategy")

	// ErrNoWriteCommunity is returned when a port write is requested but
	// the target carries no write community. A configuration error, not a
	// probe failure.
	ErrNoWriteCommunity = errors.New("no SNMP write community configured")

	// ErrNoCredentials is returned when the target lacks the credential
	// set its strategy requires.
	ErrNoCredentials = errors.New("target is missing required credentials")

	// ErrNoPrompt is returned when the remote shell never presented a
	// recognizable command prompt.
	ErrNoPrompt = errors.New("no command prompt detected")

	// ErrEnableFailed is returned when privileged-mode escalation was
	// prompted but rejected.
	ErrEnableFailed = errors.New("privileged mode escalation failed")
)
