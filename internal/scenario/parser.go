/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scenario

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultTitle is used when no enricher title is available.
const DefaultTitle = "Untitled Scenario"

// Implicit scene used when the text contains no header lines.
const (
	MainSceneID    = "main"
	MainSceneTitle = "main scene"
)

// Whitespace classes include Unicode space separators such as the ideographic space.
var (
	// 【Title】 alone on a line.
	reHeader = regexp.MustCompile(`^[\s\p{Zs}]*【(.+?)】[\s\p{Zs}]*$`)
	// speaker：text or speaker:text; the speaker holds no colon of either width.
	reDialogue = regexp.MustCompile(`^([^：:]+)[：:](.+)$`)
	// 1. label → target (target optional)
	reChoice = regexp.MustCompile(`^[\s\p{Zs}]*([1-9])\.[\s\p{Zs}]*(.+?)(?:[\s\p{Zs}]*→[\s\p{Zs}]*(.+?))?$`)
	// → Title alone on a line; read only with Options.SuccessorLines.
	reNext = regexp.MustCompile(`^[\s\p{Zs}]*→[\s\p{Zs}]*(.+?)[\s\p{Zs}]*$`)
)

// Parse builds a Graph from raw script text. It never fails: lines that match
// no construct end up in the owning scene's description.
//
// Supported syntax:
//   - Scene headers: a line holding only 【Title】. Without any header the
//     whole text becomes one scene (id "main"). Text before the first header
//     belongs to no scene.
//   - Dialogue: Speaker：text or Speaker:text (full- or half-width colon).
//   - Choices: "1. label → Target Title" with digits 1-9; the arrow part is optional.
//
// meta supplies the title and an initial character roster; structurally derived
// data is never overridden by it. Titles and dialogue are only trimmed and
// descriptions only have whitespace collapsed; no other rewriting happens.
func Parse(text string, meta Metadata) *Graph { return ParseWith(text, meta, Options{}) }

// Options enables syntax beyond the base script format.
type Options struct {
	// SuccessorLines makes a line holding only "→ Target Title" set
	// Scene.NextScene (first one wins). The line stays in the description.
	SuccessorLines bool
}

// ParseWith is Parse with optional syntax enabled.
func ParseWith(text string, meta Metadata, opts Options) *Graph {
	lines := splitLines(text)
	g := &Graph{Title: DefaultTitle}
	if t := strings.TrimSpace(meta.Title); t != "" {
		g.Title = t
	}
	for _, seg := range segment(lines) {
		g.Scenes = append(g.Scenes, parseScene(seg, opts))
	}
	g.Characters = roster(meta.Characters, g.Scenes)
	return g
}

// ParseText parses text without enricher metadata.
func ParseText(text string) *Graph { return Parse(text, Metadata{}) }

type sceneSegment struct {
	id    string
	title string
	body  []string
}

func splitLines(text string) []string {
	var out []string
	for line := range strings.Lines(text) {
		out = append(out, strings.TrimRight(line, "\r\n"))
	}
	return out
}

func segment(lines []string) []sceneSegment {
	var segs []sceneSegment
	for _, line := range lines {
		if m := reHeader.FindStringSubmatch(line); m != nil {
			segs = append(segs, sceneSegment{
				id:    "scene_" + strconv.Itoa(len(segs)+1),
				title: strings.TrimSpace(m[1]),
			})
			continue
		}
		if len(segs) > 0 {
			segs[len(segs)-1].body = append(segs[len(segs)-1].body, line)
		}
	}
	if len(segs) == 0 {
		return []sceneSegment{{id: MainSceneID, title: MainSceneTitle, body: lines}}
	}
	return segs
}

func parseScene(seg sceneSegment, opts Options) Scene {
	sc := Scene{ID: seg.id, Title: seg.title}
	var residue []string
	for _, line := range seg.body {
		// Choices are matched first so a numbered line is never also a dialogue.
		if m := reChoice.FindStringSubmatch(line); m != nil {
			sc.Choices = append(sc.Choices, Choice{
				Text:             strings.TrimSpace(m[2]),
				TargetSceneTitle: strings.TrimSpace(m[3]),
			})
			continue
		}
		if opts.SuccessorLines && sc.NextScene == "" {
			if m := reNext.FindStringSubmatch(line); m != nil {
				sc.NextScene = m[1]
			}
		}
		if m := reDialogue.FindStringSubmatch(line); m != nil {
			speaker, said := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if speaker != "" && said != "" {
				sc.Dialogues = append(sc.Dialogues, DialogueLine{Character: speaker, Text: said})
				continue
			}
		}
		residue = append(residue, line)
	}
	sc.Description = strings.Join(strings.Fields(strings.Join(residue, " ")), " ")
	return sc
}

// roster merges enricher-supplied characters (first occurrence wins) with every
// distinct dialogue speaker in document order.
func roster(hinted []Character, scenes []Scene) []Character {
	var out []Character
	seen := map[string]bool{}
	add := func(c Character) {
		if c.Name == "" || seen[c.Name] {
			return
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	for _, c := range hinted {
		add(Character{Name: strings.TrimSpace(c.Name), Description: strings.TrimSpace(c.Description)})
	}
	for _, s := range scenes {
		for _, d := range s.Dialogues {
			add(Character{Name: d.Character})
		}
	}
	return out
}
