/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SearchQuery describes a search over recorded runs.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT); use Phrase for raw user input.
// Types restricts the kinds of text searched: dialogue, choice, scene.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string
	RunID     string
	Character string
	Types     []string
	Limit     int
	Offset    int
}

// SearchResult is a single matching text item.
type SearchResult struct {
	DocID     int64  `json:"-"`
	RunID     string `json:"run_id"`
	Type      string `json:"type"`
	Ref       string `json:"ref"`
	SceneID   string `json:"scene_id,omitempty"`
	Character string `json:"character,omitempty"`
	Text      string `json:"text"`
}

// Phrase quotes s as a single FTS5 phrase so that operators and punctuation in
// user input are matched literally.
func Phrase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SearchDialogue performs full-text search with optional filters.
// When q.Text is empty, it falls back to a non-FTS scan with filters applied.
func (s *Store) SearchDialogue(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT d.doc_id, d.run_id, d.type, d.ref, COALESCE(d.scene_id,''), COALESCE(d.character,''), COALESCE(d.text,'')\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.run_id, d.type, d.ref, COALESCE(d.scene_id,''), COALESCE(d.character,''), COALESCE(d.text,'')\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	if len(q.Types) > 0 {
		sb.WriteString(" AND d.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if id := strings.TrimSpace(q.RunID); id != "" {
		sb.WriteString(" AND d.run_id = ?\n")
		args = append(args, id)
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		sb.WriteString(" AND lower(d.character) = ?\n")
		args = append(args, strings.ToLower(c))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocID, &r.RunID, &r.Type, &r.Ref, &r.SceneID, &r.Character, &r.Text); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns run and document counts.
func (s *Store) Stats(ctx context.Context) (runs, documents int, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM runs), (SELECT COUNT(*) FROM documents)`)
	err = row.Scan(&runs, &documents)
	if err == sql.ErrNoRows {
		err = nil
	}
	return runs, documents, err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
