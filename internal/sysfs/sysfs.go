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

package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NVIDIA/vfe-vdpa-info/pkg/types"
)

const (
	// DefaultPCIDevicesRoot is where sysfs exposes PCI functions by bus address.
	DefaultPCIDevicesRoot = "/sys/bus/pci/devices"
)

// ErrNotFound is returned when a PF has no entry under the PCI devices root.
var ErrNotFound = errors.New("pf does not exist")

// PhysicalFunction describes an SR-IOV physical function as seen in sysfs.
type PhysicalFunction struct {
	Name     string           `json:"name"`
	DeviceID types.DeviceID   `json:"-"`
	Type     types.DeviceType `json:"type"`
	TotalVFs int              `json:"sriov_totalvfs"`
	NumVFs   int              `json:"sriov_numvfs"`
	// VFIDs maps a VF bus address to its slot. Slots begin at 1.
	VFIDs map[string]int `json:"vfid_map"`
}

// Reader reads physical function descriptors from sysfs.
type Reader struct {
	root string
}

// Option defines a function for passing options to the New() call.
type Option func(*Reader)

// WithRoot overrides the PCI devices root.
func WithRoot(root string) Option {
	return func(r *Reader) {
		r.root = root
	}
}

// New creates a new sysfs Reader.
func New(opts ...Option) *Reader {
	r := &Reader{root: DefaultPCIDevicesRoot}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DescribePhysicalFunction reads the descriptor of the PF at bus address 'address'.
func (r *Reader) DescribePhysicalFunction(address string) (*PhysicalFunction, error) {
	pfPath := filepath.Join(r.root, address)
	if _, err := os.Stat(pfPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, pfPath)
		}
		return nil, fmt.Errorf("unable to stat %s: %v", pfPath, err)
	}

	vendor, err := readString(pfPath, "vendor")
	if err != nil {
		return nil, err
	}
	device, err := readString(pfPath, "device")
	if err != nil {
		return nil, err
	}
	numVFs, err := readInt(pfPath, "sriov_numvfs")
	if err != nil {
		return nil, err
	}
	totalVFs, err := readInt(pfPath, "sriov_totalvfs")
	if err != nil {
		return nil, err
	}

	deviceID, err := types.NewDeviceIDFromStrings(vendor, device)
	if err != nil {
		return nil, fmt.Errorf("unable to parse device id of pf %s: %v", address, err)
	}
	deviceType, err := types.LookupDeviceType(deviceID)
	if err != nil {
		return nil, fmt.Errorf("pf %s: %w", address, err)
	}

	vfids := make(map[string]int, numVFs)
	for i := 0; i < numVFs; i++ {
		link := filepath.Join(pfPath, "virtfn"+strconv.Itoa(i))
		target, err := os.Readlink(link)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve virtual function %d of pf %s: %v", i, address, err)
		}
		vfids[filepath.Base(target)] = i + 1
	}

	pf := &PhysicalFunction{
		Name:     address,
		DeviceID: deviceID,
		Type:     deviceType,
		TotalVFs: totalVFs,
		NumVFs:   numVFs,
		VFIDs:    vfids,
	}
	return pf, nil
}

// Slot returns the 1-based slot of the VF at bus address 'vf'.
func (p *PhysicalFunction) Slot(vf string) (int, bool) {
	slot, ok := p.VFIDs[vf]
	return slot, ok
}

func readString(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("unable to read %s: %v", name, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func readInt(dir, name string) (int, error) {
	s, err := readString(dir, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unable to convert %s to an int: %v", name, err)
	}
	return n, nil
}
