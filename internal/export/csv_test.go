/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strings"
	"testing"

	"scenarioconv/internal/scenario"
	"scenarioconv/internal/tables"
)

func TestDialogueCSV(t *testing.T) {
	res := convertSample(t)
	b, err := TableCSV(res.Tables, tables.DialogueTable)
	if err != nil {
		t.Fatalf("TableCSV error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected header + 7 rows, got %d lines", len(lines))
	}
	if lines[0] != "ID,SceneID,SceneName,CharacterName,DialogueText,EmotionTag,NextDialogueID,HasChoices,ChoiceCount" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if lines[1] != `DLG_0001,scene_1,Prologue,Hero,"Hello, I am an adventurer.",Normal,DLG_0002,False,0` {
		t.Fatalf("unexpected first row: %s", lines[1])
	}
	if lines[2] != "DLG_0002,scene_1,Prologue,Narrator,You stand before an old castle.,Normal,,True,2" {
		t.Fatalf("unexpected second row: %s", lines[2])
	}
}

func TestChoiceCSVKeepsUnresolvedTarget(t *testing.T) {
	res := convertSample(t)
	b, err := TableCSV(res.Tables, tables.ChoiceTable)
	if err != nil {
		t.Fatalf("TableCSV error: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "CHC_0001,DLG_0002,Enter the castle,scene_2,Castle Interior,1\n") {
		t.Fatalf("missing resolved choice row:\n%s", s)
	}
	if !strings.Contains(s, "CHC_0002,DLG_0002,Turn back,,Village,2\n") {
		t.Fatalf("missing unresolved choice row:\n%s", s)
	}
}

func TestEmptyTablesProduceNoFiles(t *testing.T) {
	g := scenario.ParseText("【Quiet】\nNothing is said here.")
	arts, err := renderCSV(tables.Project(g))
	if err != nil {
		t.Fatalf("renderCSV error: %v", err)
	}
	var names []string
	for _, a := range arts {
		names = append(names, a.Name)
	}
	// one scene, no dialogue, no choices, no characters
	if len(arts) != 1 || arts[0].Name != "SceneTable.csv" {
		t.Fatalf("unexpected artifacts: %v", names)
	}
}
