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

package v1

import (
	"time"

	"github.com/NVIDIA/vfe-vdpa-info/internal/rpc"
	"github.com/NVIDIA/vfe-vdpa-info/internal/sysfs"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/domain"
)

// Default returns a 'Spec' with every field set to its built-in default.
func Default() *Spec {
	return &Spec{
		Version: Version,
		Daemon: &DaemonSpec{
			Address:         rpc.DefaultAddress,
			Port:            rpc.DefaultPort,
			ResponseTimeout: Duration(rpc.DefaultResponseTimeout),
			DrainTimeout:    Duration(rpc.DefaultDrainTimeout),
		},
		SysfsRoot:     sysfs.DefaultPCIDevicesRoot,
		LibvirtSocket: domain.DefaultLibvirtSocket,
	}
}

// Complete fills every field left unset in 's' from 'Default()'.
func (s *Spec) Complete() *Spec {
	result := Default()
	if s == nil {
		return result
	}
	if s.SysfsRoot != "" {
		result.SysfsRoot = s.SysfsRoot
	}
	if s.LibvirtSocket != "" {
		result.LibvirtSocket = s.LibvirtSocket
	}
	if s.Daemon == nil {
		return result
	}
	if s.Daemon.Address != "" {
		result.Daemon.Address = s.Daemon.Address
	}
	if s.Daemon.Port != 0 {
		result.Daemon.Port = s.Daemon.Port
	}
	if s.Daemon.ResponseTimeout != 0 {
		result.Daemon.ResponseTimeout = s.Daemon.ResponseTimeout
	}
	if s.Daemon.DrainTimeout != 0 {
		result.Daemon.DrainTimeout = s.Daemon.DrainTimeout
	}
	return result
}

// Duration returns the value as a 'time.Duration'.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
