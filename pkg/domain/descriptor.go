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
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

const vhostUserType = "vhostuser"

// Machine is a virtual machine and the vhost-user sockets its descriptor references.
type Machine struct {
	Name string    `json:"name"`
	UUID uuid.UUID `json:"uuid"`
	// Sockets are in descriptor order: interfaces, then disks, then
	// emulator arguments. Duplicates are kept.
	Sockets []string `json:"sockets"`
}

// Descriptor is a parsed machine descriptor (libvirt domain XML).
type Descriptor struct {
	doc *etree.Document
}

// ParseDescriptor parses a machine descriptor document.
func ParseDescriptor(b []byte) (*Descriptor, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(b); err != nil {
		return nil, fmt.Errorf("unable to parse descriptor: %v", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("unable to parse descriptor: no root element")
	}
	return &Descriptor{doc: doc}, nil
}

// ExtractSockets parses a machine descriptor and returns the Machine it describes.
func ExtractSockets(b []byte) (*Machine, error) {
	d, err := ParseDescriptor(b)
	if err != nil {
		return nil, err
	}
	return d.Machine()
}

// Machine returns the name, UUID and referenced sockets of the descriptor.
func (d *Descriptor) Machine() (*Machine, error) {
	name, err := d.Name()
	if err != nil {
		return nil, err
	}
	sockets, err := d.Sockets()
	if err != nil {
		return nil, fmt.Errorf("machine %s: %v", name, err)
	}

	m := &Machine{
		Name:    name,
		Sockets: sockets,
	}
	if el := d.doc.FindElement("//uuid"); el != nil {
		if id, err := uuid.Parse(strings.TrimSpace(el.Text())); err == nil {
			m.UUID = id
		}
	}
	return m, nil
}

// Name returns the text of the first 'name' element.
func (d *Descriptor) Name() (string, error) {
	el := d.doc.FindElement("//name")
	if el == nil {
		return "", fmt.Errorf("descriptor has no 'name' element")
	}
	name := strings.TrimSpace(el.Text())
	if name == "" {
		return "", fmt.Errorf("descriptor has an empty 'name' element")
	}
	return name, nil
}

// Sockets returns the vhost-user socket paths referenced by the descriptor.
func (d *Descriptor) Sockets() ([]string, error) {
	var sockets []string
	for _, tag := range []string{"interface", "disk"} {
		s, err := d.vhostUserSources(tag)
		if err != nil {
			return nil, err
		}
		sockets = append(sockets, s...)
	}
	sockets = append(sockets, d.emulatorArgSockets()...)
	return sockets, nil
}

// vhostUserSources returns the source path of every 'tag' element of type vhostuser.
func (d *Descriptor) vhostUserSources(tag string) ([]string, error) {
	var paths []string
	for _, el := range d.doc.FindElements(fmt.Sprintf("//%s[@type='%s']", tag, vhostUserType)) {
		source := el.FindElement(".//source")
		if source == nil {
			return nil, fmt.Errorf("vhostuser %s has no 'source' element", tag)
		}
		paths = append(paths, source.SelectAttrValue("path", ""))
	}
	return paths, nil
}

// emulatorArgSockets returns the value of every 'path=' field found in
// the comma separated value of a raw emulator argument.
func (d *Descriptor) emulatorArgSockets() []string {
	var paths []string
	for _, el := range d.doc.FindElements("//qemu:arg") {
		for _, field := range strings.Split(el.SelectAttrValue("value", ""), ",") {
			if !strings.Contains(field, "path=") {
				continue
			}
			_, path, _ := strings.Cut(field, "=")
			paths = append(paths, path)
		}
	}
	return paths
}
