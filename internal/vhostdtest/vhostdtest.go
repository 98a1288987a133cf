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

// Package vhostdtest provides a loopback vhostd and a sysfs tree for
// exercising the commands end to end.
package vhostdtest

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// VirtualFunction is one entry of the 'vf' listing served by Daemon.
type VirtualFunction struct {
	VF         string `json:"vf"`
	SocketFile string `json:"socket_file"`
	Configured bool   `json:"configured"`
	VMUUID     string `json:"vm_uuid"`
}

// Daemon answers 'mgmtpf', 'vf' and 'version' requests on a loopback port.
type Daemon struct {
	// PFs maps each management PF to the VFs registered under it.
	PFs     map[string][]VirtualFunction
	Version json.RawMessage

	listener net.Listener
	accepted atomic.Int32
}

type request struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params struct {
		MgmtPF string `json:"mgmtpf"`
	} `json:"params"`
}

// Start listens on 127.0.0.1 and serves every connection until the test ends.
func (d *Daemon) Start(t testing.TB) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d.listener = listener
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			d.accepted.Add(1)
			go d.serve(conn)
		}
	}()
}

// Address returns the host and port the daemon listens on.
func (d *Daemon) Address() (string, int) {
	addr := d.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// Args returns the command line flags that point a command at the daemon.
func (d *Daemon) Args() []string {
	host, port := d.Address()
	return []string{"--address", host, "--port", strconv.Itoa(port), "--drain-timeout", "50ms"}
}

// Connections returns how many connections the daemon has accepted.
func (d *Daemon) Connections() int {
	return int(d.accepted.Load())
}

func (d *Daemon) serve(conn net.Conn) {
	defer conn.Close()
	decoder := json.NewDecoder(conn)
	for {
		var req request
		if err := decoder.Decode(&req); err != nil {
			return
		}

		var result any
		switch req.Method {
		case "mgmtpf":
			devices := []map[string]string{}
			for pf := range d.PFs {
				devices = append(devices, map[string]string{"pf": pf})
			}
			result = map[string]any{"devices": devices}
		case "vf":
			devices := d.PFs[req.Params.MgmtPF]
			if devices == nil {
				devices = []VirtualFunction{}
			}
			result = map[string]any{"devices": devices}
		case "version":
			result = d.Version
		}

		b, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
		if err != nil {
			return
		}
		if _, err := conn.Write(b); err != nil {
			return
		}
	}
}

// WritePhysicalFunction creates the sysfs entry of a PF under 'root', with
// one virtfnN link per VF address.
func WritePhysicalFunction(t testing.TB, root, address, vendor, device string, totalVFs int, vfs ...string) {
	dir := filepath.Join(root, address)
	require.NoError(t, os.MkdirAll(dir, 0755))

	files := map[string]string{
		"vendor":         vendor,
		"device":         device,
		"sriov_numvfs":   strconv.Itoa(len(vfs)),
		"sriov_totalvfs": strconv.Itoa(totalVFs),
	}
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents+"\n"), 0644))
	}
	for i, vf := range vfs {
		require.NoError(t, os.Symlink(filepath.Join("..", vf), filepath.Join(dir, "virtfn"+strconv.Itoa(i))))
	}
}
