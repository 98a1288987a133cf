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
	"io"
	"strings"

	"github.com/NVIDIA/vfe-vdpa-info/pkg/domain"
)

// MachineInfo holds the extracted sockets and descriptor advisories of one
// machine.
type MachineInfo struct {
	Machine    *domain.Machine   `json:"machine"`
	Advisories []domain.Advisory `json:"advisories"`
}

// Info writes each machine's sockets followed by its advisories.
func Info(w io.Writer, infos []MachineInfo, format Format) error {
	if format != FormatText {
		return writeStructured(w, infos, format)
	}

	s := newStyles(w)
	var sb strings.Builder
	for _, info := range infos {
		sb.WriteString(s.header.Render("VM: "+info.Machine.Name) + "\n")
		sb.WriteString("  " + s.label.Render("uuid:") + " " + info.Machine.UUID.String() + "\n")
		for _, socket := range info.Machine.Sockets {
			sb.WriteString("  " + s.label.Render("socket:") + " " + socket + "\n")
		}
		for _, a := range info.Advisories {
			mark := s.success.Render("[/]")
			if !a.OK {
				mark = s.failure.Render("[x]")
			}
			sb.WriteString("  " + mark + " " + a.Check + ": " + a.Message + "\n")
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
