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
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"

	"scenarioconv/internal/diagram"
)

const DrawIOFileName = "flowchart.drawio"

const (
	sceneStyle  = "rounded=1;whiteSpace=wrap;html=1;fillColor=#dae8fc;strokeColor=#6c8ebf;"
	choiceStyle = "rhombus;whiteSpace=wrap;html=1;fillColor=#fff2cc;strokeColor=#d6b656;"
	edgeStyle   = "edgeStyle=orthogonalEdgeStyle;rounded=0;orthogonalLoop=1;jettySize=auto;html=1;"
)

// mxGraphModel is the draw.io diagram document.
type mxGraphModel struct {
	XMLName xml.Name `xml:"mxGraphModel"`
	Root    mxRoot   `xml:"root"`
}

type mxRoot struct {
	Cells []mxCell `xml:"mxCell"`
}

type mxCell struct {
	ID       string      `xml:"id,attr"`
	Value    string      `xml:"value,attr,omitempty"`
	Style    string      `xml:"style,attr,omitempty"`
	Vertex   string      `xml:"vertex,attr,omitempty"`
	Edge     string      `xml:"edge,attr,omitempty"`
	Parent   string      `xml:"parent,attr,omitempty"`
	Source   string      `xml:"source,attr,omitempty"`
	Target   string      `xml:"target,attr,omitempty"`
	Geometry *mxGeometry `xml:"mxGeometry,omitempty"`
}

type mxGeometry struct {
	X        string `xml:"x,attr,omitempty"`
	Y        string `xml:"y,attr,omitempty"`
	Width    string `xml:"width,attr,omitempty"`
	Height   string `xml:"height,attr,omitempty"`
	Relative string `xml:"relative,attr,omitempty"`
	As       string `xml:"as,attr"`
}

// DrawIOXML serializes doc as an uncompressed draw.io mxGraphModel. Cell ids
// are the diagram node and edge ids; cells 0 and 1 are the draw.io root and
// default layer.
func DrawIOXML(doc diagram.Document) ([]byte, error) {
	m := mxGraphModel{}
	m.Root.Cells = append(m.Root.Cells, mxCell{ID: "0"}, mxCell{ID: "1", Parent: "0"})
	for _, n := range doc.Nodes {
		c := mxCell{ID: n.ID, Vertex: "1", Parent: "1", Geometry: &mxGeometry{
			X: num(n.Bounds.X), Y: num(n.Bounds.Y), Width: num(n.Bounds.W), Height: num(n.Bounds.H), As: "geometry",
		}}
		switch n.Kind {
		case diagram.KindScene:
			c.Style = sceneStyle
			c.Value = SceneLabelHTML(n)
		default:
			c.Style = choiceStyle
			c.Value = n.Title
		}
		m.Root.Cells = append(m.Root.Cells, c)
	}
	for _, e := range doc.Edges {
		m.Root.Cells = append(m.Root.Cells, mxCell{
			ID: e.ID, Value: e.Label, Style: edgeStyle, Edge: "1", Parent: "1",
			Source: e.Source, Target: e.Target,
			Geometry: &mxGeometry{Relative: "1", As: "geometry"},
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode drawio: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// SceneLabelHTML renders a scene node as draw.io HTML: the bold title, the
// preview lines and the overflow marker, each followed by a line break.
func SceneLabelHTML(n diagram.Node) string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(n.Title) + "</b><br/>")
	for _, l := range n.Lines {
		b.WriteString(html.EscapeString(l) + "<br/>")
	}
	if n.More > 0 {
		b.WriteString(html.EscapeString(diagram.MoreSuffix(n.More)))
	}
	return b.String()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
