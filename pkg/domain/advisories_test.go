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

package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func advisoriesByCheck(t *testing.T, descriptor string) map[string]Advisory {
	d, err := ParseDescriptor([]byte(descriptor))
	require.NoError(t, err)

	result := make(map[string]Advisory)
	for _, a := range d.Advisories() {
		result[a.Check] = a
	}
	require.Len(t, result, 4)
	return result
}

func TestAdvisoriesWellFormed(t *testing.T) {
	advisories := advisoriesByCheck(t, vm1Descriptor)
	for check, a := range advisories {
		require.True(t, a.OK, "%s: %s", check, a.Message)
	}
	require.Contains(t, advisories[CheckHugepages].Message, "1.0 GiB")
	require.Contains(t, advisories[CheckHugepages].Message, "8.0 GiB of guest memory")
}

func TestAdvisories(t *testing.T) {
	testCases := []struct {
		description string
		descriptor  string
		check       string
		ok          bool
	}{
		{
			"No hugepages",
			`<domain><name>vm</name></domain>`,
			CheckHugepages,
			false,
		},
		{
			"No NUMA cells or shared access",
			`<domain><name>vm</name></domain>`,
			CheckNUMASharedMem,
			false,
		},
		{
			"NUMA cell with private memory",
			`<domain><name>vm</name><cpu><numa>
			  <cell id='0' memAccess='shared'/><cell id='1' memAccess='private'/>
			</numa></cpu></domain>`,
			CheckNUMASharedMem,
			false,
		},
		{
			"Shared memoryBacking access without NUMA",
			`<domain><name>vm</name><memoryBacking><access mode='shared'/></memoryBacking></domain>`,
			CheckNUMASharedMem,
			true,
		},
		{
			"Default emulator",
			`<domain><name>vm</name></domain>`,
			CheckEmulator,
			true,
		},
		{
			"Custom emulator",
			`<domain><name>vm</name><devices><emulator>/opt/qemu/bin/qemu-system-x86_64</emulator></devices></domain>`,
			CheckEmulator,
			false,
		},
		{
			"No qemu commandline",
			`<domain><name>vm</name></domain>`,
			CheckQemuNamespace,
			true,
		},
		{
			"Qemu commandline without namespace",
			`<domain><name>vm</name><qemu:commandline><qemu:arg value='-S'/></qemu:commandline></domain>`,
			CheckQemuNamespace,
			false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			a := advisoriesByCheck(t, tc.descriptor)[tc.check]
			require.Equal(t, tc.ok, a.OK, a.Message)
			require.NotEmpty(t, a.Message)
		})
	}
}

func TestScale(t *testing.T) {
	testCases := []struct {
		value    string
		unit     string
		expected uint64
		valid    bool
	}{
		{"2048", "", 2048 * 1024, true},
		{"2", "MiB", 2 * 1024 * 1024, true},
		{"1", "G", 1024 * 1024 * 1024, true},
		{"512", "b", 512, true},
		{"1", "parsecs", 0, false},
		{"x", "KiB", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.value+tc.unit, func(t *testing.T) {
			n, ok := scale(tc.value, tc.unit)
			require.Equal(t, tc.valid, ok)
			require.Equal(t, tc.expected, n)
		})
	}
}
