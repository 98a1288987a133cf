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
	"encoding/json"
	"errors"
	"fmt"
)

// DeviceType classifies the physical functions managed by vhostd.
// The set is closed: any vendor:device pair not listed here is an error.
type DeviceType int

const (
	// UnknownDeviceType is never returned alongside a nil error.
	UnknownDeviceType DeviceType = iota
	// VirtioNet is a virtio network device (rev 01)
	VirtioNet
	// VirtioBlk is a virtio block device (rev 01)
	VirtioBlk
)

const (
	vendorRedHat = 0x1af4

	deviceVirtioNet = 0x1041
	deviceVirtioBlk = 0x1042
)

// ErrUnknownDeviceType is returned for a vendor:device pair with no known device type.
var ErrUnknownDeviceType = errors.New("unknown device type")

// LookupDeviceType resolves a vendor:device pair to its 'DeviceType'.
func LookupDeviceType(id DeviceID) (DeviceType, error) {
	switch id {
	case NewDeviceID(deviceVirtioNet, vendorRedHat):
		return VirtioNet, nil
	case NewDeviceID(deviceVirtioBlk, vendorRedHat):
		return VirtioBlk, nil
	}
	return UnknownDeviceType, fmt.Errorf("%w: %v", ErrUnknownDeviceType, id)
}

func (t DeviceType) String() string {
	switch t {
	case VirtioNet:
		return "Virtio network device (rev 01)"
	case VirtioBlk:
		return "Virtio block device (rev 01)"
	}
	return "unknown"
}

// MarshalJSON renders the human readable label of the 'DeviceType'.
func (t DeviceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
