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

// Common OIDs used by discovery and polling.
const (
	// System group
	OIDSysDescr    = ".1.3.6.1.2.1.1.1.0"
	OIDSysObjectID = ".1.3.6.1.2.1.1.2.0"
	OIDSysUptime   = ".1.3.6.1.2.1.1.3.0"
	OIDSysName     = ".1.3.6.1.2.1.1.5.0"

	// Interface table
	OIDIfDescr       = ".1.3.6.1.2.1.2.2.1.2"
	OIDIfSpeed       = ".1.3.6.1.2.1.2.2.1.5"
	OIDIfPhysAddress = ".1.3.6.1.2.1.2.2.1.6"
	OIDIfAdminStatus = ".1.3.6.1.2.1.2.2.1.7"
	OIDIfOperStatus  = ".1.3.6.1.2.1.2.2.1.8"

	// Extended interface table (ifXTable)
	OIDIfName      = ".1.3.6.1.2.1.31.1.1.1.1"
	OIDIfHighSpeed = ".1.3.6.1.2.1.31.1.1.1.15"
	OIDIfAlias     = ".1.3.6.1.2.1.31.1.1.1.18"

	// VLAN (Q-BRIDGE-MIB) and PoE (POWER-ETHERNET-MIB)
	OIDDot1qPvid            = ".1.3.6.1.2.1.17.7.1.4.5.1.1"
	OIDPethPsePortAdminEnab = ".1.3.6.1.2.1.105.1.1.1.3"

	// Printer MIB
	OIDHrDeviceDescr            = ".1.3.6.1.2.1.25.3.2.1.3"
	OIDPrtMarkerSuppliesDescr   = ".1.3.6.1.2.1.43.11.1.1.6"
	OIDPrtMarkerSuppliesMax     = ".1.3.6.1.2.1.43.11.1.1.8"
	OIDPrtMarkerSuppliesLevel   = ".1.3.6.1.2.1.43.11.1.1.9"
	OIDPrtGeneralSerialNumber   = ".1.3.6.1.2.1.43.5.1.1.17"
	OIDPrtGeneralPrinterName    = ".1.3.6.1.2.1.43.5.1.1.16"
	OIDHrPrinterDetectedErrorSt = ".1.3.6.1.2.1.25.3.5.1.2"
)

// Interface admin/oper status values from IF-MIB.
const (
	IfStatusUp   = 1
	IfStatusDown = 2
)
