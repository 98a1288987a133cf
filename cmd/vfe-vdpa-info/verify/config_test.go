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

package verify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	v1 "github.com/NVIDIA/vfe-vdpa-info/api/config/v1"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/report"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestParseConfigFile(t *testing.T) {
	testCases := []struct {
		description string
		contents    string
		expectError bool
	}{
		{
			"Well formed",
			"version: v1\ndaemon:\n  port: 12191\n",
			false,
		},
		{
			"Empty",
			"",
			false,
		},
		{
			"Unknown field",
			"version: v1\nvgpu-configs: {}\n",
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			f := &Flags{ConfigFile: writeConfig(t, tc.contents)}
			_, err := ParseConfigFile(f)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := ParseConfigFile(&Flags{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	f := &Flags{
		Address:         "10.0.0.1",
		Port:            12191,
		ResponseTimeout: 5 * time.Second,
		DrainTimeout:    time.Second,
		SysfsRoot:       "/tmp/sys",
		LibvirtSocket:   "/tmp/libvirt-sock",
	}

	testCases := []struct {
		description string
		set         []string
		expected    func() *v1.Spec
	}{
		{
			"Nothing set keeps the configuration",
			nil,
			v1.Default,
		},
		{
			"Daemon flags",
			[]string{"address", "port"},
			func() *v1.Spec {
				s := v1.Default()
				s.Daemon.Address = "10.0.0.1"
				s.Daemon.Port = 12191
				return s
			},
		},
		{
			"Every flag",
			[]string{"address", "port", "response-timeout", "drain-timeout", "sysfs-root", "libvirt-socket"},
			func() *v1.Spec {
				return &v1.Spec{
					Version: v1.Version,
					Daemon: &v1.DaemonSpec{
						Address:         "10.0.0.1",
						Port:            12191,
						ResponseTimeout: v1.Duration(5 * time.Second),
						DrainTimeout:    v1.Duration(time.Second),
					},
					SysfsRoot:     "/tmp/sys",
					LibvirtSocket: "/tmp/libvirt-sock",
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			isSet := func(name string) bool {
				for _, s := range tc.set {
					if s == name {
						return true
					}
				}
				return false
			}
			require.Equal(t, tc.expected(), ApplyFlags(v1.Default(), f, isSet))
		})
	}
}

func TestConfigFileLayering(t *testing.T) {
	f := &Flags{
		ConfigFile: writeConfig(t, "version: v1\ndaemon:\n  address: 192.168.0.1\n  port: 12191\nsysfs-root: /tmp/sys\n"),
		Port:       12192,
	}

	spec, err := ParseConfigFile(f)
	require.NoError(t, err)

	resolved := ApplyFlags(spec.Complete(), f, func(name string) bool { return name == "port" })
	require.Equal(t, "192.168.0.1", resolved.Daemon.Address)
	require.Equal(t, 12192, resolved.Daemon.Port)
	require.Equal(t, "/tmp/sys", resolved.SysfsRoot)
	require.Equal(t, v1.Default().LibvirtSocket, resolved.LibvirtSocket)
}

func TestCheckFlags(t *testing.T) {
	testCases := []struct {
		description string
		flags       Flags
		expected    report.Format
		expectError bool
	}{
		{"Defaults", Flags{Port: 12190}, report.FormatText, false},
		{"JSON", Flags{Port: 12190, Output: "json"}, report.FormatJSON, false},
		{"Unknown output", Flags{Port: 12190, Output: "xml"}, "", true},
		{"Port zero", Flags{Port: 0}, "", true},
		{"Port out of range", Flags{Port: 65536}, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			format, err := CheckFlags(&tc.flags)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, format)
		})
	}
}
