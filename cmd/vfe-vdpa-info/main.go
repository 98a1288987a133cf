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

package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/NVIDIA/vfe-vdpa-info/cmd/vfe-vdpa-info/dump"
	"github.com/NVIDIA/vfe-vdpa-info/cmd/vfe-vdpa-info/info"
	"github.com/NVIDIA/vfe-vdpa-info/cmd/vfe-vdpa-info/verify"
)

// Flags represents the top level flags that can be passed to the vfe-vdpa-info CLI
type Flags struct {
	Debug bool
}

func main() {
	flags := Flags{}

	c := cli.NewApp()
	c.Name = "vfe-vdpa-info"
	c.Usage = "Check VM ownership of vfe-vdpa virtual functions managed by vhostd"
	c.Version = "0.1.0"
	c.DefaultCommand = "verify"

	c.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:        "debug",
			Aliases:     []string{"d"},
			Usage:       "Enable debug-level logging",
			Destination: &flags.Debug,
			EnvVars:     []string{"VFE_VDPA_INFO_DEBUG"},
		},
	}

	c.Commands = []*cli.Command{
		verify.BuildCommand(),
		dump.BuildCommand(),
		info.BuildCommand(),
	}

	c.Before = func(c *cli.Context) error {
		logLevel := log.InfoLevel
		if flags.Debug {
			logLevel = log.DebugLevel
		}
		verify.GetLogger().SetLevel(logLevel)
		dump.GetLogger().SetLevel(logLevel)
		info.GetLogger().SetLevel(logLevel)
		return nil
	}

	err := c.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
