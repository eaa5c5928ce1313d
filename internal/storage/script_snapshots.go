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
	"errors"
	"time"
)

// language=SQL
// dialect=SQLite
const insertScriptSnapshotSQL = `INSERT INTO script_snapshots(run_id, ts, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectScriptSnapshotSQL = `SELECT ts, text FROM script_snapshots WHERE run_id = ? ORDER BY ts DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listScriptSnapshotsSQL = `SELECT run_id, ts, text FROM script_snapshots ORDER BY ts DESC LIMIT ?`

// ScriptSnapshot is the source text a run was converted from.
type ScriptSnapshot struct {
	RunID string
	TS    time.Time
	Text  string
}

// Script returns the source text recorded for a run.
func (s *Store) Script(ctx context.Context, runID string) (ScriptSnapshot, error) {
	var tsStr, txt string
	err := s.db.QueryRowContext(ctx, selectScriptSnapshotSQL, runID).Scan(&tsStr, &txt)
	if errors.Is(err, sql.ErrNoRows) {
		return ScriptSnapshot{}, ErrRunNotFound
	}
	if err != nil {
		return ScriptSnapshot{}, err
	}
	ts, _ := time.Parse(time.RFC3339Nano, tsStr)
	return ScriptSnapshot{RunID: runID, TS: ts, Text: txt}, nil
}

// ListScriptSnapshots returns up to limit most recent script snapshots.
func (s *Store) ListScriptSnapshots(ctx context.Context, limit int) ([]ScriptSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listScriptSnapshotsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptSnapshot
	for rows.Next() {
		var snap ScriptSnapshot
		var tsStr string
		if err := rows.Scan(&snap.RunID, &tsStr, &snap.Text); err != nil {
			return nil, err
		}
		snap.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, snap)
	}
	return out, rows.Err()
}
