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

package info

import (
	"fmt"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/NVIDIA/vfe-vdpa-info/pkg/domain"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/report"
)

var log = logrus.New()

// GetLogger returns the logger for the 'info' command
func GetLogger() *logrus.Logger {
	return log
}

// Flags for the 'info' command
type Flags struct {
	LibvirtSocket   string
	DescriptorFiles cli.StringSlice
	Output          string
}

// BuildCommand builds the 'info' command
func BuildCommand() *cli.Command {
	infoFlags := Flags{}

	info := cli.Command{}
	info.Name = "info"
	info.Usage = "Show the vhost-user sockets and descriptor advisories of VMs"
	info.ArgsUsage = "[VM name...]"
	info.Action = func(c *cli.Context) error {
		return infoWrapper(c, &infoFlags)
	}

	info.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "libvirt-socket",
			Usage:       "Path to the libvirtd socket",
			Value:       domain.DefaultLibvirtSocket,
			Destination: &infoFlags.LibvirtSocket,
		},
		&cli.StringSliceFlag{
			Name:        "descriptor-file",
			Aliases:     []string{"x"},
			Usage:       "Read VM descriptors from these files instead of libvirt",
			Destination: &infoFlags.DescriptorFiles,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Output format: text, json or yaml",
			Value:       string(report.FormatText),
			Destination: &infoFlags.Output,
		},
	}

	return &info
}

func infoWrapper(c *cli.Context, f *Flags) error {
	format, err := report.ParseFormat(f.Output)
	if err != nil {
		_ = cli.ShowSubcommandHelp(c)
		return err
	}

	descriptors, err := loadDescriptors(f, c.Args().Slice())
	if err != nil {
		return err
	}

	infos := make([]report.MachineInfo, 0, len(descriptors))
	for _, b := range descriptors {
		info, err := Describe(b)
		if err != nil {
			return err
		}
		infos = append(infos, *info)
	}

	err = report.Info(c.App.Writer, infos, format)
	if err != nil {
		return fmt.Errorf("error writing report: %v", err)
	}
	return nil
}

// Describe extracts the machine and its advisories from a descriptor.
func Describe(b []byte) (*report.MachineInfo, error) {
	d, err := domain.ParseDescriptor(b)
	if err != nil {
		return nil, err
	}
	m, err := d.Machine()
	if err != nil {
		return nil, err
	}
	return &report.MachineInfo{
		Machine:    m,
		Advisories: d.Advisories(),
	}, nil
}

// loadDescriptors returns the descriptor files when given, otherwise the
// descriptors of the named libvirt domains, or of every active domain.
func loadDescriptors(f *Flags, names []string) ([][]byte, error) {
	if files := f.DescriptorFiles.Value(); len(files) > 0 {
		return readDescriptors(domain.NewFileSource(files...), files)
	}

	log.Debugf("Connecting to libvirt at %s...", f.LibvirtSocket)
	source, err := domain.NewLibvirtSource(f.LibvirtSocket, log)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	if len(names) == 0 {
		machines, err := source.Machines()
		if err != nil {
			return nil, err
		}
		for _, m := range machines {
			names = append(names, m.Name)
		}
	}
	return readDescriptors(source, names)
}

func readDescriptors(source domain.Source, names []string) ([][]byte, error) {
	descriptors := make([][]byte, 0, len(names))
	for _, name := range names {
		log.Debugf("Reading descriptor of %s...", name)
		b, err := source.Descriptor(name)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, b)
	}
	return descriptors, nil
}
