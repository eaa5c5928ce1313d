/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ids allocates the derived identifiers used by the table and diagram
// projections: DLG_0001 for dialogue lines, CHC_0001 for choices and CHAR_0001
// for characters. Scene ids come from the parser and are not renumbered.
//
// Numbering follows one fixed traversal: scenes in graph order and, within a
// scene, dialogues then choices. Every consumer derives ids from that traversal,
// so the same dialogue line gets the same id no matter who asks for it.
package ids

import (
	"fmt"

	"scenarioconv/internal/scenario"
)

const (
	DialoguePrefix  = "DLG"
	ChoicePrefix    = "CHC"
	CharacterPrefix = "CHAR"
)

// Format renders prefix and a 1-based counter as PREFIX_0001.
func Format(prefix string, n int) string { return fmt.Sprintf("%s_%04d", prefix, n) }

// Allocator is an allocation context computed once from a graph. It holds no
// counters after construction, so lookups can happen in any order and from any
// number of goroutines.
type Allocator struct {
	dialogues  map[string][]string // scene id -> ids in dialogue order
	choices    map[string][]string // scene id -> ids in choice order
	characters []string
}

// New replays the traversal over g and records every id.
func New(g *scenario.Graph) *Allocator {
	a := &Allocator{
		dialogues: make(map[string][]string, len(g.Scenes)),
		choices:   make(map[string][]string, len(g.Scenes)),
	}
	dlg, chc := 0, 0
	for _, s := range g.Scenes {
		// Scene ids are unique per graph; a repeated id keeps its first allocation.
		if _, dup := a.dialogues[s.ID]; dup {
			dlg += len(s.Dialogues)
			chc += len(s.Choices)
			continue
		}
		d := make([]string, len(s.Dialogues))
		for i := range s.Dialogues {
			dlg++
			d[i] = Format(DialoguePrefix, dlg)
		}
		c := make([]string, len(s.Choices))
		for i := range s.Choices {
			chc++
			c[i] = Format(ChoicePrefix, chc)
		}
		a.dialogues[s.ID] = d
		a.choices[s.ID] = c
	}
	a.characters = make([]string, len(g.Characters))
	for i := range g.Characters {
		a.characters[i] = Format(CharacterPrefix, i+1)
	}
	return a
}

// DialogueID returns the id of dialogue i of the scene, or "" if out of range.
func (a *Allocator) DialogueID(sceneID string, i int) string { return at(a.dialogues[sceneID], i) }

// ChoiceID returns the id of choice i of the scene, or "" if out of range.
func (a *Allocator) ChoiceID(sceneID string, i int) string { return at(a.choices[sceneID], i) }

// CharacterID returns the id of the i-th roster entry, or "" if out of range.
func (a *Allocator) CharacterID(i int) string { return at(a.characters, i) }

// FirstDialogueID returns the id of the scene's first dialogue, or "".
func (a *Allocator) FirstDialogueID(sceneID string) string { return at(a.dialogues[sceneID], 0) }

// LastDialogueID returns the id of the scene's last dialogue, or "".
func (a *Allocator) LastDialogueID(sceneID string) string {
	d := a.dialogues[sceneID]
	return at(d, len(d)-1)
}

func at(s []string, i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}

// DialogueIDFor resolves a (scene, dialogue index) pair without building an
// Allocator. It replays the traversal on every call.
func DialogueIDFor(g *scenario.Graph, sceneID string, i int) string {
	n := 0
	for _, s := range g.Scenes {
		if s.ID == sceneID {
			if i < 0 || i >= len(s.Dialogues) {
				return ""
			}
			return Format(DialoguePrefix, n+i+1)
		}
		n += len(s.Dialogues)
	}
	return ""
}
