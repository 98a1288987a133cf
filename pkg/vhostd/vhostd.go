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

package vhostd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NVIDIA/vfe-vdpa-info/internal/rpc"
)

const (
	methodMgmtPF  = "mgmtpf"
	methodVF      = "vf"
	methodVersion = "version"
)

// ErrMissingField is returned when a vhostd response lacks a field the caller depends on.
var ErrMissingField = errors.New("missing field in vhostd response")

// Caller sends one request to vhostd and waits for its response.
type Caller interface {
	Call(method string, params any) (*rpc.Response, error)
}

// Client issues the queries vhostd exposes for its management PFs and their VFs.
type Client struct {
	caller Caller
}

// VirtualFunction is one entry of the 'vf' listing for a management PF.
type VirtualFunction struct {
	VF         string `json:"vf"`
	SocketFile string `json:"socket_file"`
	Configured bool   `json:"configured"`
	VMUUID     string `json:"vm_uuid"`
}

type listResult struct {
	Devices []json.RawMessage `json:"devices"`
}

type mgmtPFParams struct {
	List bool `json:"list"`
}

type vfParams struct {
	List   bool   `json:"list"`
	MgmtPF string `json:"mgmtpf"`
}

// New creates a vhostd query client on top of 'caller'.
func New(caller Caller) *Client {
	return &Client{caller: caller}
}

// ListPhysicalFunctions returns the bus address of every management PF added to vhostd.
func (c *Client) ListPhysicalFunctions() ([]string, error) {
	devices, err := c.list(methodMgmtPF, mgmtPFParams{List: true})
	if err != nil {
		return nil, err
	}

	var pfs []string
	for _, raw := range devices {
		var device struct {
			PF *string `json:"pf"`
		}
		if err := json.Unmarshal(raw, &device); err != nil {
			return nil, fmt.Errorf("malformed %s entry %s: %v", methodMgmtPF, raw, err)
		}
		if device.PF == nil {
			return nil, fmt.Errorf("%w: 'pf' in %s entry %s", ErrMissingField, methodMgmtPF, raw)
		}
		pfs = append(pfs, *device.PF)
	}
	return pfs, nil
}

// ListVirtualFunctions returns the VFs vhostd manages under the PF at 'pf'.
func (c *Client) ListVirtualFunctions(pf string) ([]VirtualFunction, error) {
	devices, err := c.list(methodVF, vfParams{List: true, MgmtPF: pf})
	if err != nil {
		return nil, err
	}

	vfs := make([]VirtualFunction, 0, len(devices))
	for _, raw := range devices {
		var vf VirtualFunction
		if err := json.Unmarshal(raw, &vf); err != nil {
			return nil, fmt.Errorf("malformed %s entry for pf %s: %w", methodVF, pf, err)
		}
		vfs = append(vfs, vf)
	}
	return vfs, nil
}

// Version returns the raw result of the 'version' query.
func (c *Client) Version() (json.RawMessage, error) {
	rsp, err := c.caller.Call(methodVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("error querying vhostd version: %w", err)
	}
	if len(rsp.Result) == 0 || string(rsp.Result) == "null" {
		return nil, fmt.Errorf("%w: 'result' in %s response", ErrMissingField, methodVersion)
	}
	return rsp.Result, nil
}

// list issues a listing query and returns 'result.devices'. A result
// without 'devices' is an empty listing.
func (c *Client) list(method string, params any) ([]json.RawMessage, error) {
	rsp, err := c.caller.Call(method, params)
	if err != nil {
		return nil, fmt.Errorf("error querying vhostd %s: %w", method, err)
	}
	if len(rsp.Result) == 0 || string(rsp.Result) == "null" {
		return nil, fmt.Errorf("%w: 'result' in %s response", ErrMissingField, method)
	}

	var result listResult
	if err := json.Unmarshal(rsp.Result, &result); err != nil {
		return nil, fmt.Errorf("malformed %s result: %v", method, err)
	}
	return result.Devices, nil
}

// UnmarshalJSON unmarshals a 'vf' listing entry, requiring every field the
// registry is built from.
func (v *VirtualFunction) UnmarshalJSON(b []byte) error {
	entry := make(map[string]json.RawMessage)
	err := json.Unmarshal(b, &entry)
	if err != nil {
		return err
	}

	required := []string{"vf", "socket_file", "configured", "vm_uuid"}
	for _, r := range required {
		if !containsKey(entry, r) {
			return fmt.Errorf("%w: '%v'", ErrMissingField, r)
		}
	}

	result := VirtualFunction{}
	for k, raw := range entry {
		switch k {
		case "vf":
			err = json.Unmarshal(raw, &result.VF)
		case "socket_file":
			err = json.Unmarshal(raw, &result.SocketFile)
		case "configured":
			err = json.Unmarshal(raw, &result.Configured)
		case "vm_uuid":
			err = json.Unmarshal(raw, &result.VMUUID)
		}
		if err != nil {
			return fmt.Errorf("invalid value for '%v': %v", k, err)
		}
	}

	*v = result
	return nil
}

func containsKey(m map[string]json.RawMessage, s string) bool {
	_, exists := m[s]
	return exists
}
