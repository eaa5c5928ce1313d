/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenarioconv/internal/scenario"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "DLG_0001", Format(DialoguePrefix, 1))
	assert.Equal(t, "CHC_0042", Format(ChoicePrefix, 42))
	assert.Equal(t, "CHAR_12345", Format(CharacterPrefix, 12345))
}

func TestAllocatorTraversalOrder(t *testing.T) {
	g := scenario.ParseText("【A】\nX：1\nY：2\n1. a\n2. b\n【B】\n【C】\nX：3\n1. c")
	a := New(g)

	assert.Equal(t, "DLG_0001", a.DialogueID("scene_1", 0))
	assert.Equal(t, "DLG_0002", a.DialogueID("scene_1", 1))
	assert.Equal(t, "DLG_0003", a.DialogueID("scene_3", 0))
	assert.Equal(t, "CHC_0001", a.ChoiceID("scene_1", 0))
	assert.Equal(t, "CHC_0002", a.ChoiceID("scene_1", 1))
	assert.Equal(t, "CHC_0003", a.ChoiceID("scene_3", 0))

	assert.Equal(t, "DLG_0001", a.FirstDialogueID("scene_1"))
	assert.Equal(t, "DLG_0002", a.LastDialogueID("scene_1"))
	assert.Equal(t, "", a.FirstDialogueID("scene_2"))
	assert.Equal(t, "", a.LastDialogueID("scene_2"))

	assert.Equal(t, "CHAR_0001", a.CharacterID(0))
	assert.Equal(t, "CHAR_0002", a.CharacterID(1))
	assert.Equal(t, "", a.CharacterID(2))
}

func TestAllocatorOutOfRange(t *testing.T) {
	a := New(scenario.ParseText("【A】\nX：1"))
	assert.Equal(t, "", a.DialogueID("scene_1", 1))
	assert.Equal(t, "", a.DialogueID("scene_1", -1))
	assert.Equal(t, "", a.DialogueID("missing", 0))
	assert.Equal(t, "", a.ChoiceID("scene_1", 0))
}

func TestDialogueIDForMatchesAllocator(t *testing.T) {
	g := scenario.ParseText(scenario.Sample)
	a := New(g)
	for _, s := range g.Scenes {
		for i := range s.Dialogues {
			require.Equal(t, a.DialogueID(s.ID, i), DialogueIDFor(g, s.ID, i), "scene %s index %d", s.ID, i)
		}
		assert.Equal(t, "", DialogueIDFor(g, s.ID, len(s.Dialogues)))
	}
	assert.Equal(t, "", DialogueIDFor(g, "missing", 0))
}

func TestAllocatorIsFreshPerGraph(t *testing.T) {
	g := scenario.ParseText(scenario.Sample)
	first, second := New(g), New(g)
	assert.Equal(t, first, second)
}

func TestAllocatorConcurrentLookups(t *testing.T) {
	g := scenario.ParseText(scenario.Sample)
	a := New(g)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range g.Scenes {
				for i := range s.Dialogues {
					if a.DialogueID(s.ID, i) != DialogueIDFor(g, s.ID, i) {
						t.Errorf("mismatch for %s/%d", s.ID, i)
					}
				}
			}
		}()
	}
	wg.Wait()
}
