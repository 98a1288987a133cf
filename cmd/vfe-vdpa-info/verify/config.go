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
	"bufio"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
	"sigs.k8s.io/yaml"

	v1 "github.com/NVIDIA/vfe-vdpa-info/api/config/v1"
)

// ParseConfigFile parses the configuration file
func ParseConfigFile(f *Flags) (*v1.Spec, error) {
	var err error
	var configYaml []byte

	if f.ConfigFile == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			configYaml = append(configYaml, scanner.Bytes()...)
			configYaml = append(configYaml, '\n')
		}
	} else {
		configYaml, err = os.ReadFile(f.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("read error: %v", err)
		}
	}

	var spec v1.Spec
	err = yaml.Unmarshal(configYaml, &spec)
	if err != nil {
		return nil, fmt.Errorf("unmarshal error: %v", err)
	}

	return &spec, nil
}

// ResolveConfig layers flags and environment variables over the
// configuration file, which in turn is layered over the defaults.
func ResolveConfig(c *cli.Context, f *Flags) (*v1.Spec, error) {
	var spec *v1.Spec
	if f.ConfigFile != "" {
		log.Debugf("Parsing config file...")
		var err error
		spec, err = ParseConfigFile(f)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}
	return ApplyFlags(spec.Complete(), f, c.IsSet), nil
}

// ApplyFlags overrides 'spec' with every flag for which 'isSet' is true.
func ApplyFlags(spec *v1.Spec, f *Flags, isSet func(string) bool) *v1.Spec {
	if isSet("address") {
		spec.Daemon.Address = f.Address
	}
	if isSet("port") {
		spec.Daemon.Port = f.Port
	}
	if isSet("response-timeout") {
		spec.Daemon.ResponseTimeout = v1.Duration(f.ResponseTimeout)
	}
	if isSet("drain-timeout") {
		spec.Daemon.DrainTimeout = v1.Duration(f.DrainTimeout)
	}
	if isSet("sysfs-root") {
		spec.SysfsRoot = f.SysfsRoot
	}
	if isSet("libvirt-socket") {
		spec.LibvirtSocket = f.LibvirtSocket
	}
	return spec
}
