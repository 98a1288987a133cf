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
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/dustin/go-humanize"
)

const qemuNamespace = "http://libvirt.org/schemas/domain/qemu/1.0"

// Advisory checks performed on a descriptor.
const (
	CheckHugepages     = "hugepages"
	CheckNUMASharedMem = "numa-shared-memory"
	CheckEmulator      = "emulator"
	CheckQemuNamespace = "qemu-namespace"
)

// Emulator binaries shipped by distributions.
var defaultEmulators = map[string]bool{
	"/usr/bin/qemu-system-x86_64":  true,
	"/usr/bin/qemu-system-aarch64": true,
	"/usr/bin/qemu-kvm":            true,
	"/usr/libexec/qemu-kvm":        true,
}

// Advisory is the outcome of one descriptor-quality check.
type Advisory struct {
	Check   string `json:"check"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Advisories runs every descriptor-quality check. The checks are
// independent heuristics and do not take part in verification.
func (d *Descriptor) Advisories() []Advisory {
	return []Advisory{
		d.checkHugepages(),
		d.checkNUMASharedMemory(),
		d.checkEmulator(),
		d.checkQemuNamespace(),
	}
}

func (d *Descriptor) checkHugepages() Advisory {
	a := Advisory{Check: CheckHugepages}
	hugepages := d.doc.FindElement("//memoryBacking/hugepages")
	if hugepages == nil {
		a.Message = "guest memory is not backed by hugepages; vhost-user backends need hugepage memory"
		return a
	}

	a.OK = true
	a.Message = "guest memory is backed by hugepages"
	var sizes []string
	for _, page := range hugepages.SelectElements("page") {
		if size, ok := sizeOf(page, "size", "unit"); ok {
			sizes = append(sizes, humanize.IBytes(size))
		}
	}
	if len(sizes) > 0 {
		a.Message += fmt.Sprintf(" (page size %s)", strings.Join(sizes, ", "))
	}
	if memory := d.doc.FindElement("//memory"); memory != nil {
		if size, ok := sizeOfText(memory, "unit"); ok {
			a.Message += fmt.Sprintf(", %s of guest memory", humanize.IBytes(size))
		}
	}
	return a
}

func (d *Descriptor) checkNUMASharedMemory() Advisory {
	a := Advisory{Check: CheckNUMASharedMem}
	cells := d.doc.FindElements("//cpu/numa/cell")
	if len(cells) > 0 {
		for _, cell := range cells {
			if cell.SelectAttrValue("memAccess", "") != "shared" {
				a.Message = fmt.Sprintf("NUMA cell %s does not set memAccess='shared'", cell.SelectAttrValue("id", "?"))
				return a
			}
		}
		a.OK = true
		a.Message = fmt.Sprintf("all %d NUMA cells set memAccess='shared'", len(cells))
		return a
	}
	if d.doc.FindElement("//memoryBacking/access[@mode='shared']") != nil {
		a.OK = true
		a.Message = "memoryBacking sets access mode 'shared'"
		return a
	}
	a.Message = "guest memory is not shared; set memAccess='shared' on NUMA cells or memoryBacking access mode 'shared'"
	return a
}

func (d *Descriptor) checkEmulator() Advisory {
	a := Advisory{Check: CheckEmulator, OK: true}
	el := d.doc.FindElement("//devices/emulator")
	if el == nil {
		a.Message = "no emulator set, the hypervisor default is used"
		return a
	}
	emulator := strings.TrimSpace(el.Text())
	if defaultEmulators[emulator] {
		a.Message = fmt.Sprintf("emulator %s", emulator)
		return a
	}
	a.OK = false
	a.Message = fmt.Sprintf("custom emulator binary %s", emulator)
	return a
}

func (d *Descriptor) checkQemuNamespace() Advisory {
	a := Advisory{Check: CheckQemuNamespace, OK: true}
	if len(d.doc.FindElements("//qemu:commandline")) == 0 {
		a.Message = "no qemu:commandline extensions"
		return a
	}
	ns := d.doc.Root().SelectAttrValue("xmlns:qemu", "")
	if ns != qemuNamespace {
		a.OK = false
		a.Message = fmt.Sprintf("qemu:commandline is used but xmlns:qemu is %q, expected %q", ns, qemuNamespace)
		return a
	}
	a.Message = "qemu:commandline extensions with the qemu namespace declared"
	return a
}

// sizeOf reads a size attribute scaled by a libvirt unit attribute, in bytes.
func sizeOf(el *etree.Element, sizeAttr, unitAttr string) (uint64, bool) {
	return scale(el.SelectAttrValue(sizeAttr, ""), el.SelectAttrValue(unitAttr, ""))
}

// sizeOfText reads a size from element text scaled by a libvirt unit attribute, in bytes.
func sizeOfText(el *etree.Element, unitAttr string) (uint64, bool) {
	return scale(strings.TrimSpace(el.Text()), el.SelectAttrValue(unitAttr, ""))
}

// scale converts a libvirt scaled integer to bytes. libvirt defaults to KiB.
func scale(value, unit string) (uint64, bool) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(unit) {
	case "b", "bytes":
		return n, true
	case "", "k", "kib":
		return n * humanize.KiByte, true
	case "m", "mib":
		return n * humanize.MiByte, true
	case "g", "gib":
		return n * humanize.GiByte, true
	case "kb":
		return n * humanize.KByte, true
	case "mb":
		return n * humanize.MByte, true
	case "gb":
		return n * humanize.GByte, true
	}
	return 0, false
}
