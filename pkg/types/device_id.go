/*
 * Copyright (c) 2024, NVIDIA CORPORATION.  All rights reserved.
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

package types

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceID represents a PCI vendor:device pair, packed as <device><vendor>.
type DeviceID uint32

// NewDeviceID constructs a new 'DeviceID' from the device and vendor values pulled from a PCI function.
func NewDeviceID(device, vendor uint16) DeviceID {
	return DeviceID((uint32(device) << 16) | uint32(vendor))
}

// NewDeviceIDFromStrings constructs a 'DeviceID' from the contents of the
// sysfs 'vendor' and 'device' files of a PCI function (i.e. "0x1af4", "0x1041").
func NewDeviceIDFromStrings(vendor, device string) (DeviceID, error) {
	v, err := parseHex16(vendor)
	if err != nil {
		return 0, fmt.Errorf("malformed vendor id '%s': %v", vendor, err)
	}
	d, err := parseHex16(device)
	if err != nil {
		return 0, fmt.Errorf("malformed device id '%s': %v", device, err)
	}
	return NewDeviceID(d, v), nil
}

func parseHex16(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// Vendor returns the PCI vendor id.
func (d DeviceID) Vendor() uint16 {
	return uint16(d)
}

// Device returns the PCI device id.
func (d DeviceID) Device() uint16 {
	return uint16(d >> 16)
}

// String formats the 'DeviceID' the way sysfs spells it, as <vendor>:<device>.
func (d DeviceID) String() string {
	return fmt.Sprintf("0x%04x:0x%04x", d.Vendor(), d.Device())
}
