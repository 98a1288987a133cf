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
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	libvirt "github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLibvirtSocket is the libvirtd socket of the system instance.
	DefaultLibvirtSocket = "/var/run/libvirt/libvirt-sock"

	libvirtDialTimeout = 5 * time.Second
)

// Source provides the machines to reconcile against vhostd.
type Source interface {
	Machines() ([]*Machine, error)
	Descriptor(name string) ([]byte, error)
	Close() error
}

// LibvirtSource enumerates the active domains of a libvirt daemon.
type LibvirtSource struct {
	libvirt *libvirt.Libvirt
	log     *logrus.Logger
}

var _ Source = (*LibvirtSource)(nil)

// NewLibvirtSource connects to the libvirt daemon listening on 'socket'.
func NewLibvirtSource(socket string, log *logrus.Logger) (*LibvirtSource, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	conn, err := net.DialTimeout("unix", socket, libvirtDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to libvirt at %s: %v", socket, err)
	}

	l := libvirt.New(conn)
	if err := l.Connect(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to libvirt: %v", err)
	}
	return &LibvirtSource{libvirt: l, log: log}, nil
}

// Machines returns every active domain, sorted by name.
func (s *LibvirtSource) Machines() ([]*Machine, error) {
	domains, _, err := s.libvirt.ConnectListAllDomains(1, libvirt.ConnectListDomainsActive)
	if err != nil {
		return nil, fmt.Errorf("unable to list active domains: %v", err)
	}
	sort.Slice(domains, func(i, j int) bool {
		return domains[i].Name < domains[j].Name
	})

	machines := make([]*Machine, 0, len(domains))
	for _, d := range domains {
		xml, err := s.libvirt.DomainGetXMLDesc(d, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to get descriptor of domain %s: %v", d.Name, err)
		}
		m, err := ExtractSockets([]byte(xml))
		if err != nil {
			return nil, fmt.Errorf("domain %s: %v", d.Name, err)
		}
		m.UUID = uuid.UUID(d.UUID)
		s.log.Debugf("Domain %s (%s): %d vhost-user sockets", m.Name, m.UUID, len(m.Sockets))
		machines = append(machines, m)
	}
	return machines, nil
}

// Descriptor returns the descriptor of the domain called 'name'.
func (s *LibvirtSource) Descriptor(name string) ([]byte, error) {
	d, err := s.libvirt.DomainLookupByName(name)
	if err != nil {
		return nil, fmt.Errorf("unable to find domain %s: %v", name, err)
	}
	xml, err := s.libvirt.DomainGetXMLDesc(d, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to get descriptor of domain %s: %v", name, err)
	}
	return []byte(xml), nil
}

// Close disconnects from libvirt.
func (s *LibvirtSource) Close() error {
	return s.libvirt.Disconnect()
}

// FileSource reads machine descriptors from files.
type FileSource struct {
	paths []string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a Source over a set of descriptor files.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

// Machines parses every descriptor file, in the order given.
func (s *FileSource) Machines() ([]*Machine, error) {
	machines := make([]*Machine, 0, len(s.paths))
	for _, path := range s.paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read error: %v", err)
		}
		m, err := ExtractSockets(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", path, err)
		}
		machines = append(machines, m)
	}
	return machines, nil
}

// Descriptor returns the contents of the descriptor file named 'name'.
func (s *FileSource) Descriptor(name string) ([]byte, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read error: %v", err)
	}
	return b, nil
}

// Close is a no-op.
func (s *FileSource) Close() error {
	return nil
}
