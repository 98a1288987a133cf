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

package dump

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v2"

	"github.com/NVIDIA/vfe-vdpa-info/internal/vhostdtest"
)

const (
	testPF = "0000:01:00.0"
	vm1xml = `<domain type='kvm'>
  <name>vm1</name>
  <devices>
    <interface type='vhostuser'>
      <source type='unix' path='/tmp/sock0' mode='server'/>
    </interface>
    <interface type='vhostuser'>
      <source type='unix' path='/tmp/missing' mode='server'/>
    </interface>
  </devices>
</domain>`
)

func runDump(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	app := cli.NewApp()
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = []*cli.Command{BuildCommand()}

	err := app.Run(append([]string{"vfe-vdpa-info", "dump"}, args...))
	return out.String(), err
}

func TestDumpCommand(t *testing.T) {
	root := t.TempDir()
	vhostdtest.WritePhysicalFunction(t, root, testPF, "0x1af4", "0x1041", 8, "0000:01:00.2", "0000:01:00.3")

	descriptor := filepath.Join(t.TempDir(), "vm1.xml")
	require.NoError(t, os.WriteFile(descriptor, []byte(vm1xml), 0o600))

	testCases := []struct {
		description string
		version     json.RawMessage
		output      string
		expected    []string
		absent      []string
	}{
		{
			"Text",
			json.RawMessage(`{"version":"1.2.3"}`),
			"text",
			[]string{
				`"1.2.3"`,
				"== PF  ==",
				"Virtio network device (rev 01)",
				"VM: vm1",
				"/tmp/sock0: 0000:01:00.2, 11111111-2222-3333-4444-555555555555, vfid=1, configured=true, pf=0000:01:00.0",
				"/tmp/missing: Not in vhostd",
				"== Not added to VM ==",
				"/tmp/sock1: 0000:01:00.3, 00000000-0000-0000-0000-000000000000, vfid=2, configured=false, pf=0000:01:00.0",
			},
			nil,
		},
		{
			"JSON",
			json.RawMessage(`"1.2.3"`),
			"json",
			[]string{
				`"version": "1.2.3"`,
				`"unclaimed"`,
				`"socket_file": "/tmp/sock1"`,
			},
			nil,
		},
		{
			"Version unavailable",
			nil,
			"text",
			[]string{
				"VM: vm1",
				"== Not added to VM ==",
			},
			[]string{"vhostd version"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			d := &vhostdtest.Daemon{
				PFs: map[string][]vhostdtest.VirtualFunction{
					testPF: {
						{VF: "0000:01:00.2", SocketFile: "/tmp/sock0", Configured: true, VMUUID: "11111111-2222-3333-4444-555555555555"},
						{VF: "0000:01:00.3", SocketFile: "/tmp/sock1", Configured: false, VMUUID: "00000000-0000-0000-0000-000000000000"},
					},
				},
				Version: tc.version,
			}
			d.Start(t)

			args := append(d.Args(), "--sysfs-root", root, "-x", descriptor, "-o", tc.output)
			out, err := runDump(t, args...)
			require.NoError(t, err)
			for _, e := range tc.expected {
				require.Contains(t, out, e)
			}
			for _, a := range tc.absent {
				require.NotContains(t, out, a)
			}

			// Inventory and version queries share one connection.
			require.Equal(t, 1, d.Connections())
		})
	}
}
