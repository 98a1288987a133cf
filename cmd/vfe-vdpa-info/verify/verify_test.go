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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v2"

	"github.com/NVIDIA/vfe-vdpa-info/internal/vhostdtest"
)

const (
	testPF    = "0000:01:00.0"
	testOwner = "11111111-2222-3333-4444-555555555555"
)

func writeDescriptor(t *testing.T, name string, sockets ...string) string {
	interfaces := ""
	for _, s := range sockets {
		interfaces += "<interface type='vhostuser'><source type='unix' path='" + s + "' mode='server'/></interface>\n"
	}
	xml := "<domain type='kvm'><name>" + name + "</name><devices>\n" + interfaces + "</devices></domain>"

	path := filepath.Join(t.TempDir(), name+".xml")
	require.NoError(t, os.WriteFile(path, []byte(xml), 0o600))
	return path
}

func startDaemon(t *testing.T) (*vhostdtest.Daemon, string) {
	root := t.TempDir()
	vhostdtest.WritePhysicalFunction(t, root, testPF, "0x1af4", "0x1041", 8, "0000:01:00.2", "0000:01:00.3")

	d := &vhostdtest.Daemon{
		PFs: map[string][]vhostdtest.VirtualFunction{
			testPF: {
				{VF: "0000:01:00.2", SocketFile: "/tmp/sock0", Configured: true, VMUUID: testOwner},
				{VF: "0000:01:00.3", SocketFile: "/tmp/sock1", Configured: true, VMUUID: testOwner},
			},
		},
	}
	d.Start(t)
	return d, root
}

func runVerify(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	app := cli.NewApp()
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = []*cli.Command{BuildCommand()}

	err := app.Run(append([]string{"vfe-vdpa-info", "verify"}, args...))
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	testCases := []struct {
		description    string
		sockets        []string
		failOnMismatch bool
		expectedOutput string
		expectedExit   int
	}{
		{
			"Every owned socket referenced",
			[]string{"/tmp/sock0", "/tmp/sock1"},
			false,
			"[/] UUID check pass for vm1",
			0,
		},
		{
			"Every owned socket referenced with fail-on-mismatch",
			[]string{"/tmp/sock0", "/tmp/sock1"},
			true,
			"[/] UUID check pass for vm1",
			0,
		},
		{
			"Unreferenced owned socket",
			[]string{"/tmp/sock0"},
			false,
			"[x] UUID check FAIL for vm1",
			0,
		},
		{
			"Unreferenced owned socket with fail-on-mismatch",
			[]string{"/tmp/sock0"},
			true,
			"[x] UUID check FAIL for vm1",
			1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			d, root := startDaemon(t)

			args := append(d.Args(), "--sysfs-root", root, "-x", writeDescriptor(t, "vm1", tc.sockets...))
			if tc.failOnMismatch {
				args = append(args, "--fail-on-mismatch")
			}

			out, err := runVerify(t, args...)
			require.Contains(t, out, tc.expectedOutput)
			require.Equal(t, 1, d.Connections())

			if tc.expectedExit == 0 {
				require.NoError(t, err)
				return
			}
			var exitErr cli.ExitCoder
			require.ErrorAs(t, err, &exitErr)
			require.Equal(t, tc.expectedExit, exitErr.ExitCode())
		})
	}
}

func TestVerifyCommandErrors(t *testing.T) {
	d, root := startDaemon(t)
	descriptor := writeDescriptor(t, "vm1", "/tmp/sock0")

	testCases := []struct {
		description string
		args        []string
	}{
		{
			"Unknown output format",
			append(d.Args(), "--sysfs-root", root, "-x", descriptor, "-o", "xml"),
		},
		{
			"PF missing from sysfs",
			append(d.Args(), "--sysfs-root", t.TempDir(), "-x", descriptor),
		},
		{
			"Unreadable descriptor",
			append(d.Args(), "--sysfs-root", root, "-x", filepath.Join(t.TempDir(), "missing.xml")),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := runVerify(t, tc.args...)
			require.Error(t, err)
			_, isExitCoder := err.(cli.ExitCoder)
			require.False(t, isExitCoder)
		})
	}
}
