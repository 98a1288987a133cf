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
	"sort"

	"github.com/NVIDIA/vfe-vdpa-info/pkg/types"
)

// ErrDuplicateSocket is returned when two VFs report the same socket file.
var ErrDuplicateSocket = errors.New("socket file registered to more than one VF")

// VirtualFunction is a VF registered with vhostd, joined with its PF and slot.
type VirtualFunction struct {
	Name       string      `json:"vf"`
	PF         string      `json:"pf"`
	Slot       int         `json:"vfid"`
	SocketFile string      `json:"socket_file"`
	Configured bool        `json:"configured"`
	Owner      types.Owner `json:"vm_uuid"`
}

// Registry maps vhost-user socket files to the VF behind them.
// It is not modified after construction.
type Registry struct {
	vfs map[string]VirtualFunction
}

// NewRegistry builds a Registry from a set of VFs.
func NewRegistry(vfs ...VirtualFunction) (*Registry, error) {
	r := &Registry{vfs: make(map[string]VirtualFunction, len(vfs))}
	for _, vf := range vfs {
		if existing, exists := r.vfs[vf.SocketFile]; exists {
			return nil, fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateSocket, vf.SocketFile, existing.Name, vf.Name)
		}
		r.vfs[vf.SocketFile] = vf
	}
	return r, nil
}

// Get returns the VF registered for 'socket'.
func (r *Registry) Get(socket string) (VirtualFunction, bool) {
	vf, ok := r.vfs[socket]
	return vf, ok
}

// Len returns the number of registered VFs.
func (r *Registry) Len() int {
	return len(r.vfs)
}

// Sockets returns all registered socket files, sorted.
func (r *Registry) Sockets() []string {
	sockets := make([]string, 0, len(r.vfs))
	for socket := range r.vfs {
		sockets = append(sockets, socket)
	}
	sort.Strings(sockets)
	return sockets
}
