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

package reconcile

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/NVIDIA/vfe-vdpa-info/pkg/domain"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/inventory"
)

// Claim is one socket reference of a machine.
type Claim struct {
	Socket string `json:"socket"`
	// VF is nil when the socket is not registered with vhostd.
	VF *inventory.VirtualFunction `json:"vf,omitempty"`
	// ClaimedBy names the machine that referenced the socket first, when
	// that was not this reference.
	ClaimedBy string `json:"claimed_by,omitempty"`
}

// MachineClaims lists the socket references of one machine.
type MachineClaims struct {
	Machine string  `json:"machine"`
	Claims  []Claim `json:"claims"`
}

// ClaimReport maps every machine's socket references onto the registry
// and collects the VFs no machine references.
type ClaimReport struct {
	Machines  []MachineClaims             `json:"machines"`
	Unclaimed []inventory.VirtualFunction `json:"unclaimed"`
}

// Claims walks the machines in order, attributing each registered socket to
// the first machine that references it. It reports; it does not verify.
func Claims(registry *inventory.Registry, machines []*domain.Machine) ClaimReport {
	report := ClaimReport{}
	claimedBy := make(map[string]string)

	for _, m := range machines {
		mc := MachineClaims{Machine: m.Name, Claims: []Claim{}}
		for _, socket := range m.Sockets {
			claim := Claim{Socket: socket}
			vf, ok := registry.Get(socket)
			if ok {
				claim.VF = &vf
				if first, claimed := claimedBy[socket]; claimed {
					claim.ClaimedBy = first
				} else {
					claimedBy[socket] = m.Name
				}
			}
			mc.Claims = append(mc.Claims, claim)
		}
		report.Machines = append(report.Machines, mc)
	}

	unclaimed := sets.New(registry.Sockets()...).Difference(sets.KeySet(claimedBy))
	report.Unclaimed = []inventory.VirtualFunction{}
	for _, socket := range sets.List(unclaimed) {
		vf, _ := registry.Get(socket)
		report.Unclaimed = append(report.Unclaimed, vf)
	}
	return report
}
