/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a conversion result into files: data table CSVs,
// a draw.io flowchart, the companion schema and diagram previews.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	applog "scenarioconv/internal/log"
	"scenarioconv/internal/pipeline"
)

// Format names an artifact family.
type Format string

const (
	CSV    Format = "csv"
	DrawIO Format = "drawio"
	Schema Format = "schema"
	SVG    Format = "svg"
	PDF    Format = "pdf"
	PNG    Format = "png"
)

// AllFormats lists every format in output order.
var AllFormats = []Format{CSV, DrawIO, Schema, SVG, PDF, PNG}

// ErrUnknownFormat is returned for a format name that is not supported.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormats validates names (case-insensitive, blanks skipped, duplicates
// dropped). An empty list selects every format.
func ParseFormats(names []string) ([]Format, error) {
	seen := map[Format]bool{}
	var out []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		if f == "" || seen[f] {
			continue
		}
		if !f.valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, n)
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return append([]Format(nil), AllFormats...), nil
	}
	return out, nil
}

func (f Format) valid() bool {
	for _, k := range AllFormats {
		if k == f {
			return true
		}
	}
	return false
}

// Artifact is one rendered output file.
type Artifact struct {
	Name string
	Data []byte
}

// Render produces the artifacts of one format.
func Render(res *pipeline.Result, f Format) ([]Artifact, error) {
	switch f {
	case CSV:
		return renderCSV(res.Tables)
	case DrawIO:
		b, err := DrawIOXML(res.Diagram)
		if err != nil {
			return nil, err
		}
		return []Artifact{{Name: DrawIOFileName, Data: b}}, nil
	case Schema:
		return renderSchema()
	case SVG:
		b, err := DiagramSVG(res.Diagram)
		if err != nil {
			return nil, err
		}
		return []Artifact{{Name: "flowchart.svg", Data: b}}, nil
	case PDF:
		b, err := DiagramPDF(res.Diagram)
		if err != nil {
			return nil, err
		}
		return []Artifact{{Name: "flowchart.pdf", Data: b}}, nil
	case PNG:
		b, err := DiagramPNG(res.Diagram, PNGOptions{})
		if err != nil {
			return nil, err
		}
		return []Artifact{{Name: "flowchart.png", Data: b}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Failure records a format that could not be rendered or written.
type Failure struct {
	Format Format
	Err    error
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.Format, f.Err) }

// Report lists written files (sorted) and per-format failures.
type Report struct {
	Files  []string
	Failed []Failure
}

// Err joins the failures, or returns nil when every format succeeded.
func (r Report) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// RenderAll renders formats concurrently. A failing format is reported and
// does not affect the others.
func RenderAll(res *pipeline.Result, formats []Format) ([]Artifact, []Failure) {
	p := pool.New().WithMaxGoroutines(len(formats) + 1)
	var mu sync.Mutex
	byFormat := map[Format][]Artifact{}
	var failed []Failure
	for _, f := range formats {
		p.Go(func() {
			arts, err := Render(res, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, Failure{Format: f, Err: err})
				return
			}
			byFormat[f] = arts
		})
	}
	p.Wait()

	var out []Artifact
	for _, f := range formats {
		out = append(out, byFormat[f]...)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Format < failed[j].Format })
	return out, failed
}

// WriteAll renders formats and writes the artifacts into dir.
func WriteAll(dir string, res *pipeline.Result, formats []Format) (Report, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "write_all").With(slog.String("dir", dir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Report{}, fmt.Errorf("ensure out dir: %w", err)
	}
	arts, failed := RenderAll(res, formats)
	rep := Report{Failed: failed}
	for _, a := range arts {
		path := filepath.Join(dir, a.Name)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			rep.Failed = append(rep.Failed, Failure{Format: formatOf(a.Name), Err: fmt.Errorf("write %s: %w", a.Name, err)})
			continue
		}
		rep.Files = append(rep.Files, path)
	}
	sort.Strings(rep.Files)
	for _, f := range rep.Failed {
		l.Warn("artifact failed", slog.String("format", string(f.Format)), slog.Any("err", f.Err))
	}
	l.Info("artifacts written", slog.Int("files", len(rep.Files)), slog.Int("failed", len(rep.Failed)))
	return rep, nil
}

func formatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return CSV
	case ".drawio":
		return DrawIO
	case ".json", ".h":
		return Schema
	case ".svg":
		return SVG
	case ".pdf":
		return PDF
	case ".png":
		return PNG
	}
	return ""
}
