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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	applog "scenarioconv/internal/log"
	"scenarioconv/internal/scenario"
	"scenarioconv/internal/tables"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run is the summary record of one conversion.
type Run struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Source    string         `json:"source,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Stats     scenario.Stats `json:"stats"`
	Enriched  bool           `json:"enriched"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// language=SQL
// dialect=SQLite
// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const insertRunSQL = `INSERT INTO runs(id, title, source, created_at, scenes, dialogues, choices, characters, enriched, warnings)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectRunSQL = `SELECT id, title, source, created_at, scenes, dialogues, choices, characters, enriched, warnings
FROM runs WHERE id = ?`

// language=SQL
// dialect=SQLite
const listRunsSQL = `SELECT id, title, source, created_at, scenes, dialogues, choices, characters, enriched, warnings
FROM runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

// language=SQL
// dialect=SQLite
const insertDocumentSQL = `INSERT INTO documents(run_id, type, ref, scene_id, character, text) VALUES (?, ?, ?, ?, ?, ?)`

// SaveRun records run together with its rows, searchable text and source script
// in a single transaction. A zero CreatedAt is set to now.
func (s *Store) SaveRun(ctx context.Context, run Run, script string, set tables.Set) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "save_run").With(slog.String("run", run.ID))
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	wj, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st := run.Stats
	if _, err := tx.ExecContext(ctx, insertRunSQL,
		run.ID, run.Title, run.Source, run.CreatedAt.UTC().Format(timeLayout),
		st.Scenes, st.Dialogues, st.Choices, st.Characters, run.Enriched, string(wj),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, t := range tables.Schema() {
		rows := set.Rows(t.Name)
		if len(rows) == 0 {
			continue
		}
		stmt, err := tx.PrepareContext(ctx, tables.InsertSQL(tables.SQLite, rowTables, t))
		if err != nil {
			return fmt.Errorf("prepare %s: %w", t.SQLName, err)
		}
		for _, r := range rows {
			args := append([]any{run.ID}, r...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("insert %s row: %w", t.SQLName, err)
			}
		}
		_ = stmt.Close()
	}

	if err := insertDocuments(ctx, tx, run.ID, set); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insertScriptSnapshotSQL, run.ID, run.CreatedAt.UTC().Format(timeLayout), script); err != nil {
		return fmt.Errorf("insert script snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.Debug("run saved", slog.Int("dialogues", len(set.Dialogue)), slog.Int("choices", len(set.Choice)))
	return nil
}

func insertDocuments(ctx context.Context, tx *sql.Tx, runID string, set tables.Set) error {
	stmt, err := tx.PrepareContext(ctx, insertDocumentSQL)
	if err != nil {
		return fmt.Errorf("prepare documents: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, d := range set.Dialogue {
		if _, err := stmt.ExecContext(ctx, runID, "dialogue", d.ID, d.SceneID, d.CharacterName, d.DialogueText); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	sceneOf := make(map[string]string, len(set.Dialogue))
	for _, d := range set.Dialogue {
		sceneOf[d.ID] = d.SceneID
	}
	for _, c := range set.Choice {
		if _, err := stmt.ExecContext(ctx, runID, "choice", c.ID, sceneOf[c.DialogueID], nil, c.ChoiceText); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	for _, sc := range set.Scene {
		if strings.TrimSpace(sc.Description) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, runID, "scene", sc.ID, sc.ID, nil, sc.Description); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

// GetRun returns the run record and its stored rows.
func (s *Store) GetRun(ctx context.Context, id string) (Run, tables.Set, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRunSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, tables.Set{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, tables.Set{}, err
	}
	set, err := s.loadSet(ctx, id)
	if err != nil {
		return Run{}, tables.Set{}, err
	}
	return run, set, nil
}

// ListRuns returns run records, newest first. limit defaults to 100.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, listRunsSQL, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	stmts := []string{`DELETE FROM documents WHERE run_id = ?`, `DELETE FROM script_snapshots WHERE run_id = ?`}
	for _, t := range tables.Schema() {
		stmts = append(stmts, fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, rowTables.TableName(t)))
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete run rows: %w", err)
		}
	}
	return tx.Commit()
}

// PruneRuns keeps the keepLast newest runs and deletes the rest. It returns
// the ids of the deleted runs.
func (s *Store) PruneRuns(ctx context.Context, keepLast int) ([]string, error) {
	if keepLast <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY created_at DESC, id LIMIT -1 OFFSET ?`, keepLast)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := s.DeleteRun(ctx, id); err != nil && !errors.Is(err, ErrRunNotFound) {
			return nil, err
		}
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (Run, error) {
	var (
		r        Run
		created  string
		warnings string
	)
	if err := sc.Scan(&r.ID, &r.Title, &r.Source, &created,
		&r.Stats.Scenes, &r.Stats.Dialogues, &r.Stats.Choices, &r.Stats.Characters,
		&r.Enriched, &warnings); err != nil {
		return Run{}, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if warnings != "" {
		_ = json.Unmarshal([]byte(warnings), &r.Warnings)
	}
	return r, nil
}

// loadSet reads the stored rows of a run back in their original order.
func (s *Store) loadSet(ctx context.Context, runID string) (tables.Set, error) {
	var set tables.Set
	for _, t := range tables.Schema() {
		cols := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			cols[i] = f.Column()
		}
		q := fmt.Sprintf(`SELECT %s FROM %s WHERE run_id = ? ORDER BY rowid`, strings.Join(cols, ", "), rowTables.TableName(t))
		rows, err := s.db.QueryContext(ctx, q, runID)
		if err != nil {
			return tables.Set{}, fmt.Errorf("load %s: %w", t.SQLName, err)
		}
		for rows.Next() {
			if err := scanRow(&set, t.Name, rows); err != nil {
				_ = rows.Close()
				return tables.Set{}, fmt.Errorf("scan %s: %w", t.SQLName, err)
			}
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return tables.Set{}, err
		}
	}
	return set, nil
}

func scanRow(set *tables.Set, table string, sc rowScanner) error {
	switch table {
	case tables.DialogueTable:
		var r tables.DialogueRow
		if err := sc.Scan(&r.ID, &r.SceneID, &r.SceneName, &r.CharacterName, &r.DialogueText,
			&r.EmotionTag, &r.NextDialogueID, &r.HasChoices, &r.ChoiceCount); err != nil {
			return err
		}
		set.Dialogue = append(set.Dialogue, r)
	case tables.ChoiceTable:
		var r tables.ChoiceRow
		if err := sc.Scan(&r.ID, &r.DialogueID, &r.ChoiceText, &r.TargetSceneID, &r.TargetSceneName, &r.ChoiceIndex); err != nil {
			return err
		}
		set.Choice = append(set.Choice, r)
	case tables.SceneTable:
		var r tables.SceneRow
		if err := sc.Scan(&r.ID, &r.SceneName, &r.Description, &r.FirstDialogueID,
			&r.DialogueCount, &r.HasChoices, &r.IsEndScene); err != nil {
			return err
		}
		set.Scene = append(set.Scene, r)
	case tables.CharacterTable:
		var r tables.CharacterRow
		if err := sc.Scan(&r.ID, &r.CharacterName, &r.Description, &r.DialogueCount); err != nil {
			return err
		}
		set.Character = append(set.Character, r)
	}
	return nil
}
