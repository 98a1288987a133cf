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

package v1

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version indicates the version of the 'Spec' struct used to hold the tool's configuration.
const Version = "v1"

// Spec is a versioned struct used to hold the tool's configuration.
type Spec struct {
	Version       string      `json:"version"                  yaml:"version"`
	Daemon        *DaemonSpec `json:"daemon,omitempty"         yaml:"daemon,omitempty"`
	SysfsRoot     string      `json:"sysfs-root,omitempty"     yaml:"sysfs-root,omitempty"`
	LibvirtSocket string      `json:"libvirt-socket,omitempty" yaml:"libvirt-socket,omitempty"`
}

// DaemonSpec declares how to reach vhostd and how long to wait for its replies.
type DaemonSpec struct {
	Address         string   `json:"address,omitempty"          yaml:"address,omitempty"`
	Port            int      `json:"port,omitempty"             yaml:"port,omitempty"`
	ResponseTimeout Duration `json:"response-timeout,omitempty" yaml:"response-timeout,omitempty"`
	DrainTimeout    Duration `json:"drain-timeout,omitempty"    yaml:"drain-timeout,omitempty"`
}

// Duration is a 'time.Duration' written as a Go duration string, e.g. "200ms".
type Duration time.Duration

// UnmarshalJSON unmarshals raw bytes into a versioned 'Spec'.
func (s *Spec) UnmarshalJSON(b []byte) error {
	spec := make(map[string]json.RawMessage)
	err := json.Unmarshal(b, &spec)
	if err != nil {
		return err
	}

	if !containsKey(spec, "version") && len(spec) > 0 {
		return fmt.Errorf("unable to parse with missing 'version' field")
	}

	result := Spec{}
	for k, v := range spec {
		switch k {
		case "version":
			var version string
			err = json.Unmarshal(v, &version)
			if err != nil {
				return err
			}
			if version != Version {
				return fmt.Errorf("unknown version: %v", version)
			}
			result.Version = version
		case "daemon":
			daemon := &DaemonSpec{}
			err := json.Unmarshal(v, daemon)
			if err != nil {
				return fmt.Errorf("error parsing '%v' field: %w", k, err)
			}
			result.Daemon = daemon
		case "sysfs-root":
			err := unmarshalPath(v, &result.SysfsRoot)
			if err != nil {
				return fmt.Errorf("error parsing '%v' field: %w", k, err)
			}
		case "libvirt-socket":
			err := unmarshalPath(v, &result.LibvirtSocket)
			if err != nil {
				return fmt.Errorf("error parsing '%v' field: %w", k, err)
			}
		default:
			return fmt.Errorf("unexpected field: %v", k)
		}
	}

	*s = result
	return nil
}

// UnmarshalJSON unmarshals raw bytes into a 'DaemonSpec'.
func (d *DaemonSpec) UnmarshalJSON(b []byte) error {
	spec := make(map[string]json.RawMessage)
	err := json.Unmarshal(b, &spec)
	if err != nil {
		return err
	}

	result := DaemonSpec{}
	for k, v := range spec {
		switch k {
		case "address":
			err := unmarshalPath(v, &result.Address)
			if err != nil {
				return fmt.Errorf("invalid '%v': %w", k, err)
			}
		case "port":
			err := json.Unmarshal(v, &result.Port)
			if err != nil {
				return err
			}
			if result.Port < 1 || result.Port > 65535 {
				return fmt.Errorf("invalid '%v': %v is out of range", k, result.Port)
			}
		case "response-timeout":
			err := json.Unmarshal(v, &result.ResponseTimeout)
			if err != nil {
				return fmt.Errorf("invalid '%v': %w", k, err)
			}
		case "drain-timeout":
			err := json.Unmarshal(v, &result.DrainTimeout)
			if err != nil {
				return fmt.Errorf("invalid '%v': %w", k, err)
			}
		default:
			return fmt.Errorf("unexpected field: %v", k)
		}
	}

	*d = result
	return nil
}

// UnmarshalJSON parses a positive Go duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var str string
	err := json.Unmarshal(b, &str)
	if err != nil {
		return err
	}
	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive: %v", str)
	}
	*d = Duration(duration)
	return nil
}

// MarshalJSON renders the 'Duration' as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func unmarshalPath(b []byte, dst *string) error {
	var str string
	err := json.Unmarshal(b, &str)
	if err != nil {
		return err
	}
	if str == "" {
		return fmt.Errorf("empty value")
	}
	*dst = str
	return nil
}

func containsKey(m map[string]json.RawMessage, s string) bool {
	_, exists := m[s]
	return exists
}
