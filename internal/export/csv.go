/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"scenarioconv/internal/tables"
)

// TableCSV renders one row set as CSV with a header row. A table without rows
// yields nil.
func TableCSV(set tables.Set, table string) ([]byte, error) {
	recs := set.Records(table)
	if recs == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(recs); err != nil {
		return nil, fmt.Errorf("write %s csv: %w", table, err)
	}
	return buf.Bytes(), nil
}

// renderCSV writes one <Table>.csv per non-empty row set.
func renderCSV(set tables.Set) ([]Artifact, error) {
	var out []Artifact
	for _, t := range tables.Schema() {
		b, err := TableCSV(set, t.Name)
		if err != nil {
			return nil, err
		}
		if b == nil {
			continue
		}
		out = append(out, Artifact{Name: t.Name + ".csv", Data: b})
	}
	return out, nil
}
