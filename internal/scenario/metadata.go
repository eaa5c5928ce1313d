/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scenario

import (
	"encoding/json"
	"strings"
)

// Metadata is the supplementary information an enricher may supply. Only Title
// and Characters are consumed by Parse; the rest is informational.
type Metadata struct {
	Title          string          `json:"title,omitempty"`
	Characters     []Character     `json:"characters,omitempty"`
	Scenes         json.RawMessage `json:"scenes,omitempty"`
	DialogueFormat string          `json:"dialogue_format,omitempty"`
	ChoiceFormat   string          `json:"choice_format,omitempty"`
}

// IsEmpty reports whether m carries nothing Parse would use.
func (m Metadata) IsEmpty() bool {
	return strings.TrimSpace(m.Title) == "" && len(m.Characters) == 0
}

// UnmarshalJSON decodes enricher output leniently. Characters may be given as
// plain names or as {name, description} objects; fields of an unexpected type
// are ignored rather than failing the whole document.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	m.Title = looseString(raw["title"])
	m.DialogueFormat = looseString(raw["dialogue_format"])
	m.ChoiceFormat = looseString(raw["choice_format"])
	if s, ok := raw["scenes"]; ok && string(s) != "null" {
		m.Scenes = append(json.RawMessage(nil), s...)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw["characters"], &items); err == nil {
		for _, it := range items {
			if c, ok := decodeCharacter(it); ok {
				m.Characters = append(m.Characters, c)
			}
		}
	}
	return nil
}

// MarshalJSON writes characters as {name, description} objects.
func (c Character) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}{c.Name, c.Description})
}

func decodeCharacter(data json.RawMessage) (Character, bool) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return Character{Name: name}, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Character{}, false
	}
	return Character{Name: looseString(obj["name"]), Description: looseString(obj["description"])}, true
}

func looseString(data json.RawMessage) string {
	var s string
	if len(data) == 0 || json.Unmarshal(data, &s) != nil {
		return ""
	}
	return s
}
