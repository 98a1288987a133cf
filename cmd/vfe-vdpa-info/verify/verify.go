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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	v1 "github.com/NVIDIA/vfe-vdpa-info/api/config/v1"
	"github.com/NVIDIA/vfe-vdpa-info/internal/rpc"
	"github.com/NVIDIA/vfe-vdpa-info/internal/sysfs"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/domain"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/inventory"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/reconcile"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/report"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/vhostd"
)

var log = logrus.New()

// GetLogger returns the logger for the 'verify' command
func GetLogger() *logrus.Logger {
	return log
}

// Flags for the 'verify' command
type Flags struct {
	ConfigFile      string
	Address         string
	Port            int
	ResponseTimeout time.Duration
	DrainTimeout    time.Duration
	SysfsRoot       string
	LibvirtSocket   string
	DescriptorFiles cli.StringSlice
	Output          string
	FailOnMismatch  bool
}

// Context containing CLI flags, the resolved configuration, the open vhostd
// connection and the inventory and machines to reconcile
type Context struct {
	*cli.Context
	Flags     *Flags
	Config    *v1.Spec
	Format    report.Format
	Daemon    *vhostd.Client
	Inventory *inventory.Inventory
	Machines  []*domain.Machine

	client *rpc.Client
}

// Close closes the vhostd connection.
func (c *Context) Close() error {
	return c.client.Close()
}

// BuildCommand builds the 'verify' command
func BuildCommand() *cli.Command {
	verifyFlags := Flags{}

	verify := cli.Command{}
	verify.Name = "verify"
	verify.Usage = "Verify that every VM owns exactly the vhostd virtual functions its descriptor references"
	verify.Action = func(c *cli.Context) error {
		return verifyWrapper(c, &verifyFlags)
	}

	verify.Flags = append(BuildFlags(&verifyFlags),
		&cli.BoolFlag{
			Name:        "fail-on-mismatch",
			Usage:       "Exit with a non-zero status when any VM fails verification",
			Destination: &verifyFlags.FailOnMismatch,
			EnvVars:     []string{"VFE_VDPA_INFO_FAIL_ON_MISMATCH"},
		},
	)

	return &verify
}

// BuildFlags returns the flags shared by every command that talks to vhostd
func BuildFlags(f *Flags) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config-file",
			Aliases:     []string{"f"},
			Usage:       "Path to the configuration file",
			Destination: &f.ConfigFile,
			EnvVars:     []string{"VFE_VDPA_INFO_CONFIG_FILE"},
		},
		&cli.StringFlag{
			Name:        "address",
			Aliases:     []string{"a"},
			Usage:       "Address vhostd listens on",
			Value:       rpc.DefaultAddress,
			Destination: &f.Address,
			EnvVars:     []string{"VHOSTD_ADDRESS"},
		},
		&cli.IntFlag{
			Name:        "port",
			Aliases:     []string{"p"},
			Usage:       "Port vhostd listens on",
			Value:       rpc.DefaultPort,
			Destination: &f.Port,
			EnvVars:     []string{"VHOSTD_PORT"},
		},
		&cli.DurationFlag{
			Name:        "response-timeout",
			Usage:       "How long to wait for the first byte of a vhostd response",
			Value:       rpc.DefaultResponseTimeout,
			Destination: &f.ResponseTimeout,
		},
		&cli.DurationFlag{
			Name:        "drain-timeout",
			Usage:       "Idle time after which a vhostd response is considered complete",
			Value:       rpc.DefaultDrainTimeout,
			Destination: &f.DrainTimeout,
		},
		&cli.StringFlag{
			Name:        "sysfs-root",
			Usage:       "Directory holding the PCI device entries",
			Value:       sysfs.DefaultPCIDevicesRoot,
			Destination: &f.SysfsRoot,
		},
		&cli.StringFlag{
			Name:        "libvirt-socket",
			Usage:       "Path to the libvirtd socket",
			Value:       domain.DefaultLibvirtSocket,
			Destination: &f.LibvirtSocket,
		},
		&cli.StringSliceFlag{
			Name:        "descriptor-file",
			Aliases:     []string{"x"},
			Usage:       "Read VM descriptors from these files instead of libvirt",
			Destination: &f.DescriptorFiles,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Output format: text, json or yaml",
			Value:       string(report.FormatText),
			Destination: &f.Output,
		},
	}
}

func verifyWrapper(c *cli.Context, f *Flags) error {
	context, err := NewContext(c, f)
	if err != nil {
		return err
	}
	defer context.Close()

	log.Debugf("Verifying VM ownership of %d vhostd sockets...", context.Inventory.Registry.Len())
	summary := reconcile.Verify(context.Inventory.Registry, context.Machines)
	for _, result := range summary.Results {
		if err := result.Err(); err != nil {
			log.Debugf("VM %s failed verification: %v", result.Machine, err)
		}
	}

	err = report.Verify(c.App.Writer, summary, context.Format)
	if err != nil {
		return fmt.Errorf("error writing report: %v", err)
	}

	if !summary.Passed && f.FailOnMismatch {
		return cli.Exit("", 1)
	}
	return nil
}

// NewContext resolves the configuration, connects to vhostd, builds the
// device inventory from vhostd and sysfs, and loads the machines to
// reconcile against it. The connection stays open for further queries
// until the Context is closed.
func NewContext(c *cli.Context, f *Flags) (*Context, error) {
	format, err := CheckFlags(f)
	if err != nil {
		_ = cli.ShowSubcommandHelp(c)
		return nil, err
	}

	config, err := ResolveConfig(c, f)
	if err != nil {
		return nil, err
	}

	client, err := Dial(config)
	if err != nil {
		return nil, err
	}
	daemon := vhostd.New(client)

	inv, err := BuildInventory(config, daemon)
	if err != nil {
		client.Close()
		return nil, err
	}

	source, err := OpenSource(config, f)
	if err != nil {
		client.Close()
		return nil, err
	}
	defer source.Close()

	log.Debugf("Loading VM descriptors...")
	machines, err := source.Machines()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("error loading VMs: %v", err)
	}

	return &Context{
		Context:   c,
		Flags:     f,
		Config:    config,
		Format:    format,
		Daemon:    daemon,
		Inventory: inv,
		Machines:  machines,
		client:    client,
	}, nil
}

// CheckFlags ensures that the provided flags are well-formed.
func CheckFlags(f *Flags) (report.Format, error) {
	format, err := report.ParseFormat(f.Output)
	if err != nil {
		return "", err
	}
	if f.Port < 1 || f.Port > 65535 {
		return "", fmt.Errorf("invalid port: %v", f.Port)
	}
	return format, nil
}

// Dial connects to vhostd as described by the resolved configuration.
func Dial(config *v1.Spec) (*rpc.Client, error) {
	daemon := config.Daemon
	log.Debugf("Connecting to vhostd at %s:%d...", daemon.Address, daemon.Port)
	return rpc.Dial(daemon.Address, daemon.Port,
		rpc.WithResponseTimeout(daemon.ResponseTimeout.Duration()),
		rpc.WithDrainTimeout(daemon.DrainTimeout.Duration()),
		rpc.WithLogger(log),
	)
}

// BuildInventory queries 'daemon' and sysfs for every managed physical and
// virtual function.
func BuildInventory(config *v1.Spec, daemon inventory.Daemon) (*inventory.Inventory, error) {
	log.Debugf("Building device inventory...")
	reader := sysfs.New(sysfs.WithRoot(config.SysfsRoot))
	inv, err := inventory.Build(daemon, reader, inventory.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("error building device inventory: %w", err)
	}
	return inv, nil
}

// OpenSource returns the descriptor files given on the command line, or
// the libvirt daemon when there are none.
func OpenSource(config *v1.Spec, f *Flags) (domain.Source, error) {
	if files := f.DescriptorFiles.Value(); len(files) > 0 {
		return domain.NewFileSource(files...), nil
	}
	log.Debugf("Connecting to libvirt at %s...", config.LibvirtSocket)
	return domain.NewLibvirtSource(config.LibvirtSocket, log)
}
