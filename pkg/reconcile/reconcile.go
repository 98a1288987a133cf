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

// Package reconcile cross-checks the VF ownership vhostd reports against the
// vhost-user sockets each machine descriptor references.
package reconcile

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/NVIDIA/vfe-vdpa-info/pkg/domain"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/inventory"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/types"
)

// Result is the verification outcome for one machine.
type Result struct {
	Machine string `json:"machine"`
	Passed  bool   `json:"passed"`
	// Owner is the owner shared by the claimed sockets. It is nil when
	// the machine references no socket known to vhostd.
	Owner       *types.Owner `json:"owner,omitempty"`
	Claimed     []string     `json:"claimed,omitempty"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}

// Summary is the verification outcome for a run.
type Summary struct {
	Passed  bool     `json:"passed"`
	Results []Result `json:"results"`
}

func (r *Result) fail(format string, a ...any) {
	r.Passed = false
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, a...))
}

// Err returns the diagnostics of a failed Result as a single error.
func (r Result) Err() error {
	var errs []error
	for _, d := range r.Diagnostics {
		errs = append(errs, fmt.Errorf("%s", d))
	}
	return utilerrors.NewAggregate(errs)
}

// VerifyMachine checks that the sockets 'machine' references are owned by
// a single identifier and that no other VF is registered to it.
//
// Sockets unknown to vhostd are skipped. A repeated reference to an already
// claimed socket is a no-op. The first owner disagreement ends the check.
// When no referenced socket is known to vhostd there is no owner to look
// for, so unreferenced VFs are not inspected at all.
func VerifyMachine(registry *inventory.Registry, machine *domain.Machine) Result {
	result := Result{Machine: machine.Name, Passed: true}

	claimed := sets.New[string]()
	var owner *types.Owner
	for _, socket := range machine.Sockets {
		if claimed.Has(socket) {
			continue
		}
		vf, ok := registry.Get(socket)
		if !ok {
			continue
		}
		if owner == nil {
			o := vf.Owner
			owner = &o
		}
		if !vf.Owner.Equal(*owner) {
			result.Owner = owner
			result.Claimed = sets.List(claimed)
			result.fail("vsock:%s uuid %s is not the same as %s in %s", socket, vf.Owner, *owner, machine.Name)
			return result
		}
		claimed.Insert(socket)
	}

	result.Owner = owner
	result.Claimed = sets.List(claimed)
	if owner == nil || !owner.IsOwned() {
		return result
	}

	unclaimed := sets.New(registry.Sockets()...).Difference(claimed)
	for _, socket := range sets.List(unclaimed) {
		vf, _ := registry.Get(socket)
		if vf.Owner.Equal(*owner) {
			result.fail("vsock:%s uuid %s belong to %s, but not in VM xml", socket, vf.Owner, machine.Name)
		}
	}
	return result
}

// Verify checks every machine independently against the same registry.
func Verify(registry *inventory.Registry, machines []*domain.Machine) Summary {
	summary := Summary{Passed: true}
	for _, m := range machines {
		result := VerifyMachine(registry, m)
		if !result.Passed {
			summary.Passed = false
		}
		summary.Results = append(summary.Results, result)
	}
	return summary
}
