/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenarioconv/internal/scenario"
)

func edgesOfKind(d Document, k EdgeKind) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func TestProjectReferenceExample(t *testing.T) {
	g := scenario.ParseText("【A】\nX：hi\n1. go → B\n\n【B】\nY：bye")
	d := Project(g, Options{})

	require.Len(t, d.Nodes, 3)
	assert.Equal(t, Node{
		ID: "scene_1", Kind: KindScene, Title: "A", Lines: []string{"X: hi..."},
		Bounds: Rect{X: 100, Y: 100, W: 120, H: 60},
	}, d.Nodes[0])
	assert.Equal(t, Node{
		ID: "scene_1_choice_1", Kind: KindChoice, Title: "go",
		Bounds: Rect{X: 100, Y: 250, W: 100, H: 40},
	}, d.Nodes[1])
	assert.Equal(t, Rect{X: 100, Y: 310, W: 120, H: 60}, d.Nodes[2].Bounds)

	assert.Equal(t, []Edge{
		{ID: "edge_1", Kind: EdgeBranch, Source: "scene_1", Target: "scene_1_choice_1"},
		{ID: "edge_2", Kind: EdgeTarget, Source: "scene_1_choice_1", Target: "scene_2", Label: "go"},
	}, d.Edges)
}

func TestProjectSceneSourcedChoiceEdges(t *testing.T) {
	g := scenario.ParseText("【A】\n1. go → B\n【B】")
	d := Project(g, Options{SceneSourcedChoiceEdges: true})
	targets := edgesOfKind(d, EdgeTarget)
	require.Len(t, targets, 1)
	assert.Equal(t, "scene_1", targets[0].Source)
	assert.Equal(t, "scene_2", targets[0].Target)
	assert.Len(t, edgesOfKind(d, EdgeBranch), 1)
}

func TestProjectChoiceSpread(t *testing.T) {
	g := scenario.ParseText("【A】\n1. a\n2. b\n3. c")
	d := Project(g, Options{})
	require.Len(t, d.Nodes, 4)
	xs := []float64{d.Nodes[1].Bounds.X, d.Nodes[2].Bounds.X, d.Nodes[3].Bounds.X}
	assert.Equal(t, []float64{-100, 100, 300}, xs)
	for _, n := range d.Nodes[1:] {
		assert.Equal(t, 250.0, n.Bounds.Y)
	}

	two := Project(scenario.ParseText("【A】\n1. a\n2. b"), Options{})
	assert.Equal(t, 0.0, two.Nodes[1].Bounds.X)
	assert.Equal(t, 200.0, two.Nodes[2].Bounds.X)
}

func TestProjectUnresolvedTargetsHaveNoEdge(t *testing.T) {
	g := scenario.ParseWith("【A】\n1. a → Nowhere\n2. b\n→ Elsewhere", scenario.Metadata{}, scenario.Options{SuccessorLines: true})
	d := Project(g, Options{})
	assert.Empty(t, edgesOfKind(d, EdgeTarget))
	assert.Empty(t, edgesOfKind(d, EdgeNext))
	assert.Len(t, edgesOfKind(d, EdgeBranch), 2)
}

func TestProjectSuccessorEdge(t *testing.T) {
	assert.Empty(t, edgesOfKind(Project(scenario.ParseText("【A】\nX：hi\n→ B\n【B】"), Options{}), EdgeNext))

	g := scenario.ParseWith("【A】\nX：hi\n→ B\n【B】", scenario.Metadata{}, scenario.Options{SuccessorLines: true})
	d := Project(g, Options{})
	next := edgesOfKind(d, EdgeNext)
	require.Len(t, next, 1)
	assert.Equal(t, Edge{ID: "edge_1", Kind: EdgeNext, Source: "scene_1", Target: "scene_2"}, next[0])
}

func TestSceneLabelPreview(t *testing.T) {
	g := scenario.ParseText("【Long】\nA：0123456789012345678901234567890123456789\nB：short\nC：third\nD：fourth")
	d := Project(g, Options{})
	n := d.Nodes[0]
	assert.Equal(t, []string{"A: 012345678901234567890123456789...", "B: short..."}, n.Lines)
	assert.Equal(t, 2, n.More)
	assert.Equal(t, "Long\nA: 012345678901234567890123456789...\nB: short...\n... (+2 more)", n.Label())
}

func TestSceneLabelTruncatesRunes(t *testing.T) {
	g := scenario.ParseText("【J】\n勇者：あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほまみむめも")
	n := Project(g, Options{}).Nodes[0]
	require.Len(t, n.Lines, 1)
	assert.Equal(t, "勇者: あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほ...", n.Lines[0])
}

func TestProjectDeterministicAndExtent(t *testing.T) {
	g := scenario.ParseText(scenario.Sample)
	a, b := Project(g, Options{}), Project(g, Options{})
	assert.Equal(t, a, b)

	ext := a.Extent()
	for _, n := range a.Nodes {
		assert.LessOrEqual(t, ext.X, n.Bounds.X)
		assert.LessOrEqual(t, ext.Y, n.Bounds.Y)
		assert.GreaterOrEqual(t, ext.Right(), n.Bounds.Right())
		assert.GreaterOrEqual(t, ext.Bottom(), n.Bounds.Bottom())
	}
	assert.Equal(t, Rect{}, Document{}.Extent())

	n, ok := a.Node("scene_2_choice_2")
	require.True(t, ok)
	assert.Equal(t, "Run away", n.Title)
	_, ok = a.Node("missing")
	assert.False(t, ok)
}

func TestProjectCustomLayout(t *testing.T) {
	lay := DefaultLayout()
	lay.StartX, lay.StartY, lay.PreviewLines = 0, 0, 0
	d := Project(scenario.ParseText("【A】\nX：hi\n【B】"), Options{Layout: lay})
	assert.Equal(t, Rect{X: 0, Y: 0, W: 120, H: 60}, d.Nodes[0].Bounds)
	assert.Equal(t, 210.0, d.Nodes[1].Bounds.Y)
	assert.Empty(t, d.Nodes[0].Lines)
	assert.Equal(t, 1, d.Nodes[0].More)
}
