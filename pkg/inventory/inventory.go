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

package inventory

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/NVIDIA/vfe-vdpa-info/internal/sysfs"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/types"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/vhostd"
)

var (
	// ErrNoPhysicalFunctions is returned when vhostd reports no management PF.
	ErrNoPhysicalFunctions = errors.New("no PF added to vhostd")
	// ErrSlotMismatch is returned when vhostd reports a VF that sysfs does not list under its PF.
	ErrSlotMismatch = errors.New("vf is not a virtual function of its pf in sysfs")
)

// Daemon lists the PFs and VFs registered with vhostd.
type Daemon interface {
	ListPhysicalFunctions() ([]string, error)
	ListVirtualFunctions(pf string) ([]vhostd.VirtualFunction, error)
}

// Describer reads the sysfs descriptor of a PF.
type Describer interface {
	DescribePhysicalFunction(address string) (*sysfs.PhysicalFunction, error)
}

// Inventory is the device state of one run: every PF and the VF registry.
type Inventory struct {
	PhysicalFunctions []*sysfs.PhysicalFunction
	Registry          *Registry
}

type builder struct {
	log *logrus.Logger
}

// Option defines a function for passing options to the Build() call.
type Option func(*builder)

// WithLogger sets the logger used while building the inventory.
func WithLogger(log *logrus.Logger) Option {
	return func(b *builder) {
		b.log = log
	}
}

// Build queries vhostd for its PFs and VFs, joins each VF with the slot
// sysfs assigns it, and indexes the result by socket file. Any
// inconsistency between vhostd and sysfs is returned as an error.
func Build(daemon Daemon, describer Describer, opts ...Option) (*Inventory, error) {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logrus.StandardLogger()
	}

	pfs, err := daemon.ListPhysicalFunctions()
	if err != nil {
		return nil, fmt.Errorf("error listing PFs: %w", err)
	}
	if len(pfs) == 0 {
		return nil, ErrNoPhysicalFunctions
	}

	inventory := &Inventory{}
	var vfs []VirtualFunction
	for _, address := range pfs {
		b.log.Debugf("Describing PF %s", address)
		pf, err := describer.DescribePhysicalFunction(address)
		if err != nil {
			return nil, fmt.Errorf("error describing PF: %w", err)
		}
		inventory.PhysicalFunctions = append(inventory.PhysicalFunctions, pf)

		entries, err := daemon.ListVirtualFunctions(address)
		if err != nil {
			return nil, fmt.Errorf("error listing VFs of PF %s: %w", address, err)
		}
		b.log.Debugf("  PF %s: %d VFs registered, %d enabled in sysfs", address, len(entries), pf.NumVFs)

		for _, entry := range entries {
			vf, err := newVirtualFunction(pf, entry)
			if err != nil {
				return nil, err
			}
			vfs = append(vfs, vf)
		}
	}

	inventory.Registry, err = NewRegistry(vfs...)
	if err != nil {
		return nil, err
	}
	return inventory, nil
}

func newVirtualFunction(pf *sysfs.PhysicalFunction, entry vhostd.VirtualFunction) (VirtualFunction, error) {
	slot, ok := pf.Slot(entry.VF)
	if !ok {
		return VirtualFunction{}, fmt.Errorf("%w: vf %s, pf %s", ErrSlotMismatch, entry.VF, pf.Name)
	}
	owner, err := types.ParseOwner(entry.VMUUID)
	if err != nil {
		return VirtualFunction{}, fmt.Errorf("vf %s: %w", entry.VF, err)
	}

	vf := VirtualFunction{
		Name:       entry.VF,
		PF:         pf.Name,
		Slot:       slot,
		SocketFile: entry.SocketFile,
		Configured: entry.Configured,
		Owner:      owner,
	}
	return vf, nil
}
