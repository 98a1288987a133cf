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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/vfe-vdpa-info/internal/sysfs"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/types"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/vhostd"
)

const (
	u1 = "11111111-2222-3333-4444-555555555555"
	u2 = "66666666-7777-8888-9999-000000000000"
)

type fakeDaemon struct {
	pfs []string
	vfs map[string][]vhostd.VirtualFunction
}

func (d *fakeDaemon) ListPhysicalFunctions() ([]string, error) {
	return d.pfs, nil
}

func (d *fakeDaemon) ListVirtualFunctions(pf string) ([]vhostd.VirtualFunction, error) {
	return d.vfs[pf], nil
}

type fakeDescriber map[string]*sysfs.PhysicalFunction

func (f fakeDescriber) DescribePhysicalFunction(address string) (*sysfs.PhysicalFunction, error) {
	pf, ok := f[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sysfs.ErrNotFound, address)
	}
	return pf, nil
}

func newDescriber() fakeDescriber {
	return fakeDescriber{
		"0000:01:00.0": {
			Name:     "0000:01:00.0",
			Type:     types.VirtioNet,
			TotalVFs: 8,
			NumVFs:   2,
			VFIDs:    map[string]int{"0000:01:00.2": 1, "0000:01:00.3": 2},
		},
		"0000:02:00.0": {
			Name:     "0000:02:00.0",
			Type:     types.VirtioBlk,
			TotalVFs: 8,
			NumVFs:   1,
			VFIDs:    map[string]int{"0000:02:00.2": 1},
		},
	}
}

func TestBuild(t *testing.T) {
	daemon := &fakeDaemon{
		pfs: []string{"0000:01:00.0", "0000:02:00.0"},
		vfs: map[string][]vhostd.VirtualFunction{
			"0000:01:00.0": {
				{VF: "0000:01:00.2", SocketFile: "/tmp/sock0", Configured: true, VMUUID: u1},
				{VF: "0000:01:00.3", SocketFile: "/tmp/sock1", Configured: false, VMUUID: types.ZeroOwner},
			},
			"0000:02:00.0": {
				{VF: "0000:02:00.2", SocketFile: "/tmp/blk0", Configured: true, VMUUID: u2},
			},
		},
	}

	inventory, err := Build(daemon, newDescriber())
	require.NoError(t, err)
	require.Len(t, inventory.PhysicalFunctions, 2)
	require.Equal(t, 3, inventory.Registry.Len())
	require.Equal(t, []string{"/tmp/blk0", "/tmp/sock0", "/tmp/sock1"}, inventory.Registry.Sockets())

	vf, ok := inventory.Registry.Get("/tmp/sock1")
	require.True(t, ok)
	require.Equal(t, "0000:01:00.3", vf.Name)
	require.Equal(t, "0000:01:00.0", vf.PF)
	require.Equal(t, 2, vf.Slot)
	require.False(t, vf.Configured)
	require.False(t, vf.Owner.IsOwned())

	vf, ok = inventory.Registry.Get("/tmp/blk0")
	require.True(t, ok)
	require.Equal(t, "0000:02:00.0", vf.PF)
	require.Equal(t, u2, vf.Owner.String())

	_, ok = inventory.Registry.Get("/tmp/unknown")
	require.False(t, ok)
}

func TestBuildFailures(t *testing.T) {
	testCases := []struct {
		description string
		daemon      *fakeDaemon
		expectedErr error
	}{
		{
			"No PFs",
			&fakeDaemon{},
			ErrNoPhysicalFunctions,
		},
		{
			"PF missing from sysfs",
			&fakeDaemon{pfs: []string{"0000:09:00.0"}},
			sysfs.ErrNotFound,
		},
		{
			"VF missing from slot map",
			&fakeDaemon{
				pfs: []string{"0000:01:00.0"},
				vfs: map[string][]vhostd.VirtualFunction{
					"0000:01:00.0": {{VF: "0000:01:00.7", SocketFile: "/tmp/sock0", VMUUID: u1}},
				},
			},
			ErrSlotMismatch,
		},
		{
			"Duplicate socket",
			&fakeDaemon{
				pfs: []string{"0000:01:00.0"},
				vfs: map[string][]vhostd.VirtualFunction{
					"0000:01:00.0": {
						{VF: "0000:01:00.2", SocketFile: "/tmp/sock0", VMUUID: u1},
						{VF: "0000:01:00.3", SocketFile: "/tmp/sock0", VMUUID: u1},
					},
				},
			},
			ErrDuplicateSocket,
		},
		{
			"Malformed owner",
			&fakeDaemon{
				pfs: []string{"0000:01:00.0"},
				vfs: map[string][]vhostd.VirtualFunction{
					"0000:01:00.0": {{VF: "0000:01:00.2", SocketFile: "/tmp/sock0", VMUUID: "vm1"}},
				},
			},
			nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			inventory, err := Build(tc.daemon, newDescriber())
			require.Error(t, err)
			require.Nil(t, inventory)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
			}
		})
	}
}

func TestBuildUnknownDeviceTypeAborts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "0000:01:00.0")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, contents := range map[string]string{
		"vendor":         "0x8086",
		"device":         "0x1572",
		"sriov_numvfs":   "0",
		"sriov_totalvfs": "64",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents+"\n"), 0644))
	}

	daemon := &fakeDaemon{pfs: []string{"0000:01:00.0"}}
	_, err := Build(daemon, sysfs.New(sysfs.WithRoot(root)))
	require.ErrorIs(t, err, types.ErrUnknownDeviceType)
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	require.Equal(t, 0, registry.Len())
	require.Empty(t, registry.Sockets())
}
