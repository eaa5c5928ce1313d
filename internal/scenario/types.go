/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scenario

import "golang.org/x/text/unicode/norm"

// Graph is the parsed representation of one narrative script.
// It is built once by Parse and treated as read-only afterwards; derived
// identifiers (dialogue, choice, character) are not stored here but recomputed
// from structural order by the projectors.
type Graph struct {
	Title      string
	Characters []Character // insertion order = first-seen order
	Scenes     []Scene     // source order
}

// Character is a speaker known to the graph. Name is unique within a graph.
type Character struct {
	Name        string
	Description string
}

// DefaultEmotion is the emotion tag used by projections when a line has none.
const DefaultEmotion = "Normal"

// DialogueLine is one speaker-attributed utterance. Character need not resolve
// to an entry of Graph.Characters.
type DialogueLine struct {
	Character string
	Text      string
	Emotion   string // empty until set; see EmotionOrDefault
}

// EmotionOrDefault returns the emotion tag, or DefaultEmotion when unset.
func (d DialogueLine) EmotionOrDefault() string {
	if d.Emotion == "" {
		return DefaultEmotion
	}
	return d.Emotion
}

// Choice is a branching option. TargetSceneTitle is a free-text reference that
// may be empty or name a scene that does not exist.
type Choice struct {
	Text             string
	TargetSceneTitle string
}

// Scene is a contiguous narrative unit opened by a header line.
type Scene struct {
	ID          string
	Title       string
	Description string
	Dialogues   []DialogueLine
	Choices     []Choice
	NextScene   string // direct successor title; only meaningful without choices
}

// IsEnd reports whether the scene has neither choices nor a successor.
func (s Scene) IsEnd() bool { return len(s.Choices) == 0 && s.NextScene == "" }

// ResolveTitle returns the id of the first scene whose title equals title,
// or "" when there is none (including for an empty title). Titles compare by
// their NFC form, so composed and decomposed accents match.
func (g *Graph) ResolveTitle(title string) string {
	if title == "" {
		return ""
	}
	key := titleKey(title)
	for _, s := range g.Scenes {
		if titleKey(s.Title) == key {
			return s.ID
		}
	}
	return ""
}

// SceneIndex returns the position of the scene with the given id, or -1.
func (g *Graph) SceneIndex(id string) int {
	for i, s := range g.Scenes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// DuplicateTitles lists scene titles shared by more than one scene, in order of
// their first repeat. Cross references to such titles resolve to the first scene.
func DuplicateTitles(g *Graph) []string {
	seen := map[string]int{}
	var dups []string
	for _, s := range g.Scenes {
		k := titleKey(s.Title)
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, s.Title)
		}
	}
	return dups
}

// titleKey is the comparison form of a scene title. Stored titles are never
// rewritten.
func titleKey(title string) string { return norm.NFC.String(title) }

// Stats summarizes the size of a graph.
type Stats struct {
	Scenes     int `json:"scenes"`
	Dialogues  int `json:"dialogues"`
	Choices    int `json:"choices"`
	Characters int `json:"characters"`
}

// Stats counts the entities of g.
func (g *Graph) Stats() Stats {
	st := Stats{Scenes: len(g.Scenes), Characters: len(g.Characters)}
	for _, s := range g.Scenes {
		st.Dialogues += len(s.Dialogues)
		st.Choices += len(s.Choices)
	}
	return st
}
