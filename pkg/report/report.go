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

// Package report renders verification, dump and info results either as
// styled text for a terminal or as JSON/YAML documents.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"sigs.k8s.io/yaml"
)

// Format selects how results are written.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name. An empty name selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported output format '%v'", s)
}

type styles struct {
	success lipgloss.Style
	failure lipgloss.Style
	warn    lipgloss.Style
	header  lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
}

// newStyles binds every style to a renderer for w, so colour is only
// emitted when w is a terminal.
func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		success: r.NewStyle().Foreground(lipgloss.Color("76")),
		failure: r.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		header:  r.NewStyle().Foreground(lipgloss.Color("99")).Bold(true),
		label:   r.NewStyle().Foreground(lipgloss.Color("243")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

func writeStructured(w io.Writer, v any, format Format) error {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatJSON:
		out, err = json.MarshalIndent(v, "", "  ")
		out = append(out, '\n')
	case FormatYAML:
		out, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unsupported output format '%v'", format)
	}
	if err != nil {
		return fmt.Errorf("error marshalling report: %w", err)
	}
	_, err = w.Write(out)
	return err
}
