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
	"fmt"

	"github.com/google/uuid"
)

// ZeroOwner is the identifier vhostd reports for a VF that no machine owns.
const ZeroOwner = "00000000-0000-0000-0000-000000000000"

// Owner identifies the machine a VF is registered to.
// The zero value is an unowned VF.
type Owner struct {
	id uuid.UUID
	// raw is the identifier as vhostd reported it. Owners compare by raw
	// form, so two spellings of the same UUID are different owners.
	raw string
}

// NewOwner constructs an 'Owner' from a machine UUID. The nil UUID yields an unowned 'Owner'.
func NewOwner(id uuid.UUID) Owner {
	if id == uuid.Nil {
		return Owner{}
	}
	return Owner{id: id, raw: id.String()}
}

// ParseOwner converts the 'vm_uuid' string reported by vhostd into an 'Owner'.
// Any spelling of the nil UUID is unowned.
func ParseOwner(s string) (Owner, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Owner{}, fmt.Errorf("malformed owner uuid '%s': %v", s, err)
	}
	if id == uuid.Nil {
		return Owner{}, nil
	}
	return Owner{id: id, raw: s}, nil
}

// IsOwned returns true unless the 'Owner' is the zero sentinel.
func (o Owner) IsOwned() bool {
	return o.raw != ""
}

// UUID returns the owning machine UUID, if any.
func (o Owner) UUID() (uuid.UUID, bool) {
	return o.id, o.IsOwned()
}

// Equal checks if two owners were reported identically. Two unowned values are equal.
func (o Owner) Equal(other Owner) bool {
	return o.raw == other.raw
}

func (o Owner) String() string {
	if !o.IsOwned() {
		return ZeroOwner
	}
	return o.raw
}

// MarshalJSON renders the 'Owner' in the same form vhostd uses.
func (o Owner) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON parses an 'Owner' from the form vhostd uses.
func (o *Owner) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	owner, err := ParseOwner(s)
	if err != nil {
		return err
	}
	*o = owner
	return nil
}
