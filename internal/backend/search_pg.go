/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"scenarioconv/internal/storage"
)

// SearchPG searches published dialogue lines with Postgres full-text search and
// returns results in the shape of the local store's search so both can be
// compared. An empty q.RunID searches every published run.
func SearchPG(ctx context.Context, db *sql.DB, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString("SELECT d.run_id, d.id, d.scene_id, d.character_name, d.dialogue_text FROM scv_dialogues d WHERE 1=1 ")
	if s := strings.TrimSpace(q.Text); s != "" {
		b.WriteString(" AND to_tsvector('simple', d.dialogue_text) @@ plainto_tsquery('simple', " + place(s) + ") ")
	}
	if id := strings.TrimSpace(q.RunID); id != "" {
		b.WriteString(" AND d.run_id = " + place(id) + " ")
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		b.WriteString(" AND lower(d.character_name) = " + place(strings.ToLower(c)) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.run_id, d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		r := storage.SearchResult{Type: "dialogue"}
		if err := rows.Scan(&r.RunID, &r.Ref, &r.SceneID, &r.Character, &r.Text); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
