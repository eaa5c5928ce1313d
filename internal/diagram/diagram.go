/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package diagram projects a scenario graph into an abstract node/edge
// document with a fixed vertical layout. Serializing the document to a
// concrete file format is left to the export package.
package diagram

import (
	"fmt"
	"math"
	"strconv"

	"scenarioconv/internal/scenario"
)

type Kind string

const (
	KindScene  Kind = "scene"
	KindChoice Kind = "choice"
)

type EdgeKind string

const (
	// EdgeBranch links a scene to one of its choice nodes.
	EdgeBranch EdgeKind = "branch"
	// EdgeNext links a scene to its direct successor.
	EdgeNext EdgeKind = "next"
	// EdgeTarget links a choice (or its scene) to the scene the choice leads to.
	EdgeTarget EdgeKind = "target"
)

// Rect is an axis-aligned bounding box; X and Y are the top-left corner.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Center returns the midpoint of r.
func (r Rect) Center() (float64, float64) { return r.X + r.W/2, r.Y + r.H/2 }

// Union returns the smallest rect containing r and o.
func (r Rect) Union(o Rect) Rect {
	x0, y0 := math.Min(r.X, o.X), math.Min(r.Y, o.Y)
	x1, y1 := math.Max(r.Right(), o.Right()), math.Max(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

type Node struct {
	ID     string
	Kind   Kind
	Title  string   // scene title or choice text
	Lines  []string // dialogue preview lines, scenes only
	More   int      // dialogues not shown in Lines
	Bounds Rect
}

// Label renders the node text as plain lines.
func (n Node) Label() string {
	s := n.Title
	for _, l := range n.Lines {
		s += "\n" + l
	}
	if n.More > 0 {
		s += "\n" + MoreSuffix(n.More)
	}
	return s
}

// MoreSuffix renders the overflow marker for n hidden dialogue lines.
func MoreSuffix(n int) string { return fmt.Sprintf("... (+%d more)", n) }

type Edge struct {
	ID     string
	Kind   EdgeKind
	Source string
	Target string
	Label  string
}

type Document struct {
	Title string
	Nodes []Node
	Edges []Edge
}

// Node returns the node with the given id.
func (d Document) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Extent returns the rect covering every node, or a zero rect for an empty document.
func (d Document) Extent() Rect {
	if len(d.Nodes) == 0 {
		return Rect{}
	}
	r := d.Nodes[0].Bounds
	for _, n := range d.Nodes[1:] {
		r = r.Union(n.Bounds)
	}
	return r
}

// Layout holds the geometry constants of the vertical arrangement.
type Layout struct {
	SceneW, SceneH   float64
	ChoiceW, ChoiceH float64
	SpacingX         float64 // horizontal distance between sibling choices
	SpacingY         float64 // gap between scenes; also the choice drop below its scene
	StartX, StartY   float64
	PreviewLines     int // dialogue lines shown in a scene label
	PreviewRunes     int // runes kept per preview line
}

// DefaultLayout returns the standard geometry.
func DefaultLayout() Layout {
	return Layout{
		SceneW: 120, SceneH: 60,
		ChoiceW: 100, ChoiceH: 40,
		SpacingX: 200, SpacingY: 150,
		StartX: 100, StartY: 100,
		PreviewLines: 2, PreviewRunes: 30,
	}
}

type Options struct {
	// SceneSourcedChoiceEdges draws resolved choice edges from the scene node
	// rather than the choice node, matching older diagram consumers.
	SceneSourcedChoiceEdges bool
	// Layout overrides DefaultLayout when non-zero.
	Layout Layout
}

// ChoiceNodeID returns the node id of choice i (0-based) of a scene.
func ChoiceNodeID(sceneID string, i int) string {
	return sceneID + "_choice_" + strconv.Itoa(i+1)
}

// Project lays out g. Scenes form one column in graph order; each scene's
// choices sit one row below it, spread symmetrically around the scene's x.
// Edges to scenes are resolved by exact title match; unresolved titles
// produce no edge.
func Project(g *scenario.Graph, opts Options) Document {
	lay := opts.Layout
	if lay == (Layout{}) {
		lay = DefaultLayout()
	}
	doc := Document{Title: g.Title}
	edgeSeq := 0
	addEdge := func(kind EdgeKind, src, dst, label string) {
		edgeSeq++
		doc.Edges = append(doc.Edges, Edge{
			ID: "edge_" + strconv.Itoa(edgeSeq), Kind: kind, Source: src, Target: dst, Label: label,
		})
	}

	for i, s := range g.Scenes {
		x := lay.StartX
		y := lay.StartY + float64(i)*(lay.SceneH+lay.SpacingY)
		lines, more := preview(s, lay)
		doc.Nodes = append(doc.Nodes, Node{
			ID: s.ID, Kind: KindScene, Title: s.Title, Lines: lines, More: more,
			Bounds: Rect{X: x, Y: y, W: lay.SceneW, H: lay.SceneH},
		})
		n := float64(len(s.Choices))
		for j, c := range s.Choices {
			cid := ChoiceNodeID(s.ID, j)
			doc.Nodes = append(doc.Nodes, Node{
				ID: cid, Kind: KindChoice, Title: c.Text,
				Bounds: Rect{
					X: x + (float64(j)-n/2+0.5)*lay.SpacingX,
					Y: y + lay.SpacingY,
					W: lay.ChoiceW, H: lay.ChoiceH,
				},
			})
			addEdge(EdgeBranch, s.ID, cid, "")
		}
	}

	for _, s := range g.Scenes {
		if to := g.ResolveTitle(s.NextScene); to != "" {
			addEdge(EdgeNext, s.ID, to, "")
		}
		for j, c := range s.Choices {
			to := g.ResolveTitle(c.TargetSceneTitle)
			if to == "" {
				continue
			}
			src := ChoiceNodeID(s.ID, j)
			if opts.SceneSourcedChoiceEdges {
				src = s.ID
			}
			addEdge(EdgeTarget, src, to, c.Text)
		}
	}
	return doc
}

func preview(s scenario.Scene, lay Layout) ([]string, int) {
	k := max(0, min(len(s.Dialogues), lay.PreviewLines))
	lines := make([]string, 0, k)
	for _, d := range s.Dialogues[:k] {
		lines = append(lines, d.Character+": "+truncate(d.Text, lay.PreviewRunes)+"...")
	}
	return lines, len(s.Dialogues) - k
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
