/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tables projects a scenario graph into four relational row sets:
// dialogue, choice, scene and character rows with resolved cross references.
package tables

import (
	"scenarioconv/internal/ids"
	"scenarioconv/internal/scenario"
)

type DialogueRow struct {
	ID             string
	SceneID        string
	SceneName      string
	CharacterName  string
	DialogueText   string
	EmotionTag     string
	NextDialogueID string
	HasChoices     bool
	ChoiceCount    int
}

type ChoiceRow struct {
	ID              string
	DialogueID      string // last dialogue of the owning scene
	ChoiceText      string
	TargetSceneID   string // empty when the target title does not resolve
	TargetSceneName string
	ChoiceIndex     int // 1-based
}

type SceneRow struct {
	ID              string
	SceneName       string
	Description     string
	FirstDialogueID string
	DialogueCount   int
	HasChoices      bool
	IsEndScene      bool
}

type CharacterRow struct {
	ID            string
	CharacterName string
	Description   string
	DialogueCount int
}

// Set holds the four row sets of one projection.
type Set struct {
	Dialogue  []DialogueRow
	Choice    []ChoiceRow
	Scene     []SceneRow
	Character []CharacterRow
}

// Project derives all rows from g. It is a pure function: the same graph always
// yields the same rows and identifiers.
func Project(g *scenario.Graph) Set {
	a := ids.New(g)
	var set Set
	spoken := map[string]int{}

	for _, s := range g.Scenes {
		nd, nc := len(s.Dialogues), len(s.Choices)
		for i, d := range s.Dialogues {
			row := DialogueRow{
				ID:             a.DialogueID(s.ID, i),
				SceneID:        s.ID,
				SceneName:      s.Title,
				CharacterName:  d.Character,
				DialogueText:   d.Text,
				EmotionTag:     d.EmotionOrDefault(),
				NextDialogueID: a.DialogueID(s.ID, i+1),
			}
			if i == nd-1 && nc > 0 {
				row.HasChoices = true
				row.ChoiceCount = nc
			}
			set.Dialogue = append(set.Dialogue, row)
			spoken[d.Character]++
		}
		last := a.LastDialogueID(s.ID)
		for j, c := range s.Choices {
			set.Choice = append(set.Choice, ChoiceRow{
				ID:              a.ChoiceID(s.ID, j),
				DialogueID:      last,
				ChoiceText:      c.Text,
				TargetSceneID:   g.ResolveTitle(c.TargetSceneTitle),
				TargetSceneName: c.TargetSceneTitle,
				ChoiceIndex:     j + 1,
			})
		}
		set.Scene = append(set.Scene, SceneRow{
			ID:              s.ID,
			SceneName:       s.Title,
			Description:     s.Description,
			FirstDialogueID: a.FirstDialogueID(s.ID),
			DialogueCount:   nd,
			HasChoices:      nc > 0,
			IsEndScene:      s.IsEnd(),
		})
	}

	for i, c := range g.Characters {
		set.Character = append(set.Character, CharacterRow{
			ID:            a.CharacterID(i),
			CharacterName: c.Name,
			Description:   c.Description,
			DialogueCount: spoken[c.Name],
		})
	}
	return set
}

// OrphanSpeakers lists dialogue speakers missing from the character roster, in
// first-seen order. Parse always adds speakers to the roster, so this only
// reports graphs assembled by other means.
func OrphanSpeakers(g *scenario.Graph) []string {
	known := make(map[string]bool, len(g.Characters))
	for _, c := range g.Characters {
		known[c.Name] = true
	}
	var out []string
	for _, s := range g.Scenes {
		for _, d := range s.Dialogues {
			if !known[d.Character] {
				known[d.Character] = true
				out = append(out, d.Character)
			}
		}
	}
	return out
}

// Unresolved lists choice rows whose target title is set but names no scene.
func (s Set) Unresolved() []ChoiceRow {
	var out []ChoiceRow
	for _, c := range s.Choice {
		if c.TargetSceneName != "" && c.TargetSceneID == "" {
			out = append(out, c)
		}
	}
	return out
}
