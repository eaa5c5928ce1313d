/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"strings"
)

// PresetName represents a named group of formats.
type PresetName string

const (
	// PresetData is what a game engine import needs.
	PresetData PresetName = "data"
	// PresetPreview renders the flowchart for people.
	PresetPreview PresetName = "preview"
	PresetFull    PresetName = "full"
)

// PresetFormats returns the formats of a preset. An empty name selects PresetData.
func PresetFormats(name PresetName) ([]Format, error) {
	switch PresetName(strings.ToLower(strings.TrimSpace(string(name)))) {
	case "", PresetData:
		return []Format{CSV, DrawIO, Schema}, nil
	case PresetPreview:
		return []Format{DrawIO, SVG, PDF, PNG}, nil
	case PresetFull:
		return append([]Format(nil), AllFormats...), nil
	}
	return nil, fmt.Errorf("unknown preset %q", name)
}
