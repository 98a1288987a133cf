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
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/NVIDIA/vfe-vdpa-info/cmd/vfe-vdpa-info/verify"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/reconcile"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/report"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/vhostd"
)

var log = logrus.New()

// GetLogger returns the logger for the 'dump' command
func GetLogger() *logrus.Logger {
	return log
}

// Flags for the 'dump' command
type Flags struct {
	verify.Flags
}

// BuildCommand builds the 'dump' command
func BuildCommand() *cli.Command {
	dumpFlags := Flags{}

	dump := cli.Command{}
	dump.Name = "dump"
	dump.Usage = "Dump the vhostd inventory and the sockets referenced by every VM"
	dump.Action = func(c *cli.Context) error {
		return dumpWrapper(c, &dumpFlags)
	}
	dump.Flags = verify.BuildFlags(&dumpFlags.Flags)

	return &dump
}

func dumpWrapper(c *cli.Context, f *Flags) error {
	context, err := verify.NewContext(c, &f.Flags)
	if err != nil {
		return err
	}
	defer context.Close()

	version := daemonVersion(context.Daemon)

	log.Debugf("Matching VM sockets against vhostd...")
	claims := reconcile.Claims(context.Inventory.Registry, context.Machines)

	err = report.Dump(c.App.Writer, report.DumpReport{
		Version:           version,
		PhysicalFunctions: context.Inventory.PhysicalFunctions,
		Claims:            claims,
	}, context.Format)
	if err != nil {
		return fmt.Errorf("error writing report: %v", err)
	}
	return nil
}

// daemonVersion asks vhostd for its version. The dump is still useful
// without it, so failures are only logged.
func daemonVersion(daemon *vhostd.Client) json.RawMessage {
	version, err := daemon.Version()
	if err != nil {
		log.Warnf("Unable to query vhostd version: %v", err)
		return nil
	}
	return version
}
