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

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NVIDIA/vfe-vdpa-info/internal/sysfs"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/inventory"
	"github.com/NVIDIA/vfe-vdpa-info/pkg/reconcile"
)

// DumpReport is everything shown by dump mode.
type DumpReport struct {
	Version           json.RawMessage           `json:"version,omitempty"`
	PhysicalFunctions []*sysfs.PhysicalFunction `json:"physical_functions"`
	Claims            reconcile.ClaimReport     `json:"claims"`
}

// Dump writes the physical functions, the sockets referenced by each
// machine and the virtual functions no machine references.
func Dump(w io.Writer, report DumpReport, format Format) error {
	if format != FormatText {
		return writeStructured(w, report, format)
	}

	s := newStyles(w)
	var sb strings.Builder

	if len(report.Version) > 0 {
		sb.WriteString(s.label.Render("vhostd version:") + " " + string(report.Version) + "\n")
	}

	sb.WriteString("\n" + s.header.Render("== PF  ==") + "\n")
	sb.WriteString(physicalFunctionTable(s, report.PhysicalFunctions) + "\n")

	for _, mc := range report.Claims.Machines {
		sb.WriteString("\n" + s.header.Render("VM: "+mc.Machine) + "\n")
		for _, c := range mc.Claims {
			switch {
			case c.VF == nil:
				sb.WriteString(c.Socket + ": " + s.warn.Render("Not in vhostd") + "\n")
			case c.ClaimedBy != "":
				sb.WriteString(c.Socket + ": " + s.warn.Render("claimed by "+c.ClaimedBy) + "\n")
			default:
				sb.WriteString(virtualFunctionLine(c.VF) + "\n")
			}
		}
	}

	sb.WriteString("\n" + s.header.Render("== Not added to VM ==") + "\n")
	for i := range report.Claims.Unclaimed {
		sb.WriteString(virtualFunctionLine(&report.Claims.Unclaimed[i]) + "\n")
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func virtualFunctionLine(vf *inventory.VirtualFunction) string {
	return fmt.Sprintf("%s: %s, %s, vfid=%d, configured=%t, pf=%s",
		vf.SocketFile, vf.Name, vf.Owner, vf.Slot, vf.Configured, vf.PF)
}

func physicalFunctionTable(s *styles, pfs []*sysfs.PhysicalFunction) string {
	rows := make([][]string, 0, len(pfs))
	for _, pf := range pfs {
		rows = append(rows, []string{
			pf.Name,
			pf.Type.String(),
			strconv.Itoa(pf.NumVFs) + "/" + strconv.Itoa(pf.TotalVFs),
			slotMap(pf.VFIDs),
		})
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header.Padding(0, 1)
			}
			return cell
		}).
		Headers("PF", "TYPE", "VFS", "SLOTS").
		Rows(rows...)
	return t.String()
}

func slotMap(vfids map[string]int) string {
	names := make([]string, 0, len(vfids))
	for name := range vfids {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return vfids[names[i]] < vfids[names[j]]
	})

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, fmt.Sprintf("%d=%s", vfids[name], name))
	}
	return strings.Join(pairs, " ")
}
