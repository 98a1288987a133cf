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
	"fmt"
	"io"
	"strings"

	"github.com/NVIDIA/vfe-vdpa-info/pkg/reconcile"
)

// Verify writes the per-machine ownership verdicts of a verification run,
// each preceded by the diagnostics that explain it.
func Verify(w io.Writer, summary reconcile.Summary, format Format) error {
	if format != FormatText {
		return writeStructured(w, summary, format)
	}

	s := newStyles(w)
	var sb strings.Builder
	sb.WriteString("\n")
	for _, result := range summary.Results {
		for _, d := range result.Diagnostics {
			sb.WriteString(s.warn.Render(d) + "\n")
		}
		if result.Passed {
			sb.WriteString(s.success.Render(fmt.Sprintf("[/] UUID check pass for %s", result.Machine)) + "\n")
		} else {
			sb.WriteString(s.failure.Render(fmt.Sprintf("[x] UUID check FAIL for %s", result.Machine)) + "\n")
		}
	}
	sb.WriteString("\n")
	if !summary.Passed {
		sb.WriteString(s.failure.Render(" !! verify fail !!") + "\n\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
