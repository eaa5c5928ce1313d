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
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"scenarioconv/internal/scenario"
	"scenarioconv/internal/storage"
	"scenarioconv/internal/tables"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]int64{
		"0001_runs.sql":                   1,
		"migrations/0002_dialogue_search": 2,
		"10_more.sql":                     10,
	}
	for in, want := range cases {
		got, err := parseVersion(in)
		if err != nil {
			t.Fatalf("parseVersion(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("parseVersion(%q) = %d, want %d", in, got, want)
		}
	}
	for _, bad := range []string{"runs.sql", "x_runs.sql"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestMigrationFilesAreOrdered(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles error: %v", err)
	}
	if len(files) < 2 || files[0] != "0001_runs.sql" || files[1] != "0002_dialogue_search.sql" {
		t.Fatalf("unexpected migrations: %v", files)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestPublishRequiresRunID(t *testing.T) {
	if err := Publish(context.Background(), nil, Run{}, tables.Set{}); err == nil {
		t.Fatalf("expected error for empty run id")
	}
}

// openPGForTest connects to the database named by SCV_PG_DSN and skips otherwise.
func openPGForTest(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("SCV_PG_DSN")
	if dsn == "" {
		t.Skip("SCV_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func TestPublishAndSearchPG(t *testing.T) {
	db := openPGForTest(t)
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Schema application is idempotent.
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema twice: %v", err)
	}

	g := scenario.ParseText(scenario.Sample)
	st := g.Stats()
	run := Run{ID: uuid.NewString(), Title: g.Title, Scenes: st.Scenes, Dialogues: st.Dialogues, Choices: st.Choices, Characters: st.Characters}
	set := tables.Project(g)
	if err := Publish(ctx, db, run, set); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// Republishing replaces rows instead of duplicating them.
	if err := Publish(ctx, db, run, set); err != nil {
		t.Fatalf("republish: %v", err)
	}
	t.Cleanup(func() {
		for _, tbl := range tables.Schema() {
			_, _ = db.Exec(`DELETE FROM `+RowTables.TableName(tbl)+` WHERE run_id = $1`, run.ID)
		}
		_, _ = db.Exec(`DELETE FROM scv_runs WHERE id = $1`, run.ID)
	})

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scv_dialogues WHERE run_id = $1`, run.ID).Scan(&n); err != nil {
		t.Fatalf("count dialogues: %v", err)
	}
	if n != len(set.Dialogue) {
		t.Fatalf("published %d dialogues, want %d", n, len(set.Dialogue))
	}
	var end bool
	if err := db.QueryRowContext(ctx, `SELECT is_end_scene FROM scv_scenes WHERE run_id = $1 AND id = 'scene_3'`, run.ID).Scan(&end); err != nil {
		t.Fatalf("select scene: %v", err)
	}
	if !end {
		t.Fatalf("scene_3 should be an end scene")
	}

	res, err := SearchPG(ctx, db, storage.SearchQuery{Text: "castle", RunID: run.ID, Character: "Wizard"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 || res[0].Ref != "DLG_0007" {
		t.Fatalf("unexpected search result: %+v", res)
	}
}
