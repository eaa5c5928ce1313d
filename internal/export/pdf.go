/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/jung-kurt/gofpdf"

	"scenarioconv/internal/diagram"
	"scenarioconv/internal/version"
)

// DiagramPDF renders doc on a single PDF page sized to the diagram.
// Units are points; one layout unit maps to one point.
// Text uses built-in Helvetica, so characters outside cp1252 are not representable.
func DiagramPDF(doc diagram.Document) ([]byte, error) {
	w, h, dx, dy := canvas(doc)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("scenarioconv "+version.Version, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: w, Ht: h})

	// Edges below nodes
	setDrawColor(pdf, edgeColor)
	setFillColor(pdf, edgeColor)
	pdf.SetLineWidth(0.8)
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetTextColor(int(edgeColor.R), int(edgeColor.G), int(edgeColor.B))
	for _, e := range doc.Edges {
		src, ok1 := doc.Node(e.Source)
		dst, ok2 := doc.Node(e.Target)
		if !ok1 || !ok2 {
			continue
		}
		x0, y0, x1, y1 := anchors(src.Bounds, dst.Bounds)
		x0, y0, x1, y1 = x0+dx, y0+dy, x1+dx, y1+dy
		pdf.Line(x0, y0, x1, y1)
		arrowHead(pdf, x0, y0, x1, y1)
		if e.Label != "" {
			pdf.Text((x0+x1)/2+3, (y0+y1)/2, tr(e.Label))
		}
	}

	pdf.SetLineWidth(1)
	pdf.SetTextColor(int(textColor.R), int(textColor.G), int(textColor.B))
	for _, n := range doc.Nodes {
		r := n.Bounds
		x, y := r.X+dx, r.Y+dy
		fill, stroke := nodeColors(n.Kind)
		setFillColor(pdf, fill)
		setDrawColor(pdf, stroke)
		switch n.Kind {
		case diagram.KindScene:
			roundedRect(pdf, x, y, r.W, r.H, 8, "FD")
		default:
			cx, cy := x+r.W/2, y+r.H/2
			pdf.Polygon([]gofpdf.PointType{{X: cx, Y: y}, {X: x + r.W, Y: cy}, {X: cx, Y: y + r.H}, {X: x, Y: cy}}, "FD")
		}
		ty := y + 12
		size := 9.0
		for i, line := range labelLines(n) {
			if i > 0 {
				size = 6.5
			}
			pdf.SetFont("Helvetica", "", size)
			txt := fitText(pdf, tr(line), r.W-6)
			pdf.Text(x+(r.W-pdf.GetStringWidth(txt))/2, ty, txt)
			ty += size * 1.2
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fitText shortens s until it fits into width at the current font.
func fitText(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	b := []byte(s) // cp1252 after translation: one byte per glyph
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"..") > width {
		b = b[:len(b)-1]
	}
	return string(b) + ".."
}

func arrowHead(pdf *gofpdf.Fpdf, x0, y0, x1, y1 float64) {
	const size = 5.0
	a := math.Atan2(y1-y0, x1-x0)
	p1 := gofpdf.PointType{X: x1 - size*math.Cos(a-math.Pi/7), Y: y1 - size*math.Sin(a-math.Pi/7)}
	p2 := gofpdf.PointType{X: x1 - size*math.Cos(a+math.Pi/7), Y: y1 - size*math.Sin(a+math.Pi/7)}
	pdf.Polygon([]gofpdf.PointType{{X: x1, Y: y1}, p1, p2}, "F")
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func roundedRect(pdf *gofpdf.Fpdf, x, y, w, h, r float64, style string) {
	// parameter r reserved for rounded corners; gofpdf draws a plain rectangle here
	_ = r
	pdf.Rect(x, y, w, h, style)
}
