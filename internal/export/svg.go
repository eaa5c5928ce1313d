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

	"scenarioconv/internal/diagram"
)

// DiagramSVG renders doc as a standalone SVG image. Scenes are rounded boxes,
// choices are diamonds and edges are straight arrows labeled with the choice text.
func DiagramSVG(doc diagram.Document) ([]byte, error) {
	w, h, dx, dy := canvas(doc)

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%gpx\" height=\"%gpx\" viewBox=\"0 0 %g %g\">\n", w, h, w, h)
	if doc.Title != "" {
		wf("  <title>%s</title>\n", escText(doc.Title))
	}
	wf("  <defs><marker id=\"arrow\" viewBox=\"0 0 10 10\" refX=\"10\" refY=\"5\" markerWidth=\"6\" markerHeight=\"6\" orient=\"auto-start-reverse\"><path d=\"M 0 0 L 10 5 L 0 10 z\" fill=\"%s\"/></marker></defs>\n", hexColor(edgeColor))
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", w, h, hexColor(background))

	for _, e := range doc.Edges {
		src, ok1 := doc.Node(e.Source)
		dst, ok2 := doc.Node(e.Target)
		if !ok1 || !ok2 {
			continue
		}
		x0, y0, x1, y1 := anchors(src.Bounds, dst.Bounds)
		wf("  <line id=\"%s\" x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"%s\" stroke-width=\"1\" marker-end=\"url(#arrow)\"/>\n",
			escAttr(e.ID), x0+dx, y0+dy, x1+dx, y1+dy, hexColor(edgeColor))
		if e.Label != "" {
			wf("  <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"9\" fill=\"%s\">%s</text>\n",
				(x0+x1)/2+dx+4, (y0+y1)/2+dy, hexColor(edgeColor), escText(e.Label))
		}
	}

	for _, n := range doc.Nodes {
		r := n.Bounds
		x, y := r.X+dx, r.Y+dy
		fill, stroke := nodeColors(n.Kind)
		switch n.Kind {
		case diagram.KindScene:
			wf("  <rect id=\"%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" rx=\"8\" ry=\"8\" fill=\"%s\" stroke=\"%s\" stroke-width=\"1\"/>\n",
				escAttr(n.ID), x, y, r.W, r.H, hexColor(fill), hexColor(stroke))
		default:
			cx, cy := x+r.W/2, y+r.H/2
			wf("  <polygon id=\"%s\" points=\"%g,%g %g,%g %g,%g %g,%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"1\"/>\n",
				escAttr(n.ID), cx, y, x+r.W, cy, cx, y+r.H, x, cy, hexColor(fill), hexColor(stroke))
		}
		// Text: title first, preview lines stacked below, clipped by the viewer.
		ty := y + 14
		size := 11.0
		for i, line := range labelLines(n) {
			if i > 0 {
				size = 8
			}
			wf("  <text x=\"%g\" y=\"%g\" text-anchor=\"middle\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"%g\" fill=\"%s\">%s</text>\n",
				x+r.W/2, ty, size, hexColor(textColor), escText(line))
			ty += size * 1.2
		}
	}

	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

// labelLines returns the text lines drawn inside a node.
func labelLines(n diagram.Node) []string {
	lines := append([]string{n.Title}, n.Lines...)
	if n.More > 0 {
		lines = append(lines, diagram.MoreSuffix(n.More))
	}
	return lines
}

func escAttr(s string) string {
	// naive escaping sufficient for our simple usage
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
