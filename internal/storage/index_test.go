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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesWALAndTables(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(IndexPath(dir)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	q := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN
		('meta','version','runs','documents','fts_documents','script_snapshots',
		 'run_dialogues','run_choices','run_scenes','run_characters')`
	if err := s.db.QueryRowContext(ctx, q).Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 10 {
		t.Fatalf("expected 10 tables, got %d", cnt)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestMigrationsReachCurrentSchema(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	var v int
	if err := s.db.QueryRow(`SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("schema = %d, want %d", v, schemaVersion)
	}
	var idx int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_runs_created'`).Scan(&idx); err != nil {
		t.Fatalf("query index: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected migration index to exist")
	}
	_ = s.Close()

	// Reopening is idempotent.
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	_ = s2.Close()
}

func TestOpenOrRecoverReplacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(IndexPath(dir), []byte("this is not a sqlite database, just garbage bytes"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	s, recovered, err := OpenOrRecover(context.Background(), dir)
	if err != nil {
		t.Fatalf("OpenOrRecover error: %v", err)
	}
	defer s.Close()
	if !recovered {
		t.Fatalf("expected recovery")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "backups", IndexFileName+".*.bak"))
	if len(matches) == 0 {
		t.Fatalf("expected a backup of the corrupt file")
	}
	if _, err := s.ListRuns(context.Background(), 0, 0); err != nil {
		t.Fatalf("fresh store unusable: %v", err)
	}
}

func TestOpenOrRecoverHealthyStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	_ = s.Close()
	s, recovered, err := OpenOrRecover(context.Background(), dir)
	if err != nil {
		t.Fatalf("OpenOrRecover error: %v", err)
	}
	defer s.Close()
	if recovered {
		t.Fatalf("healthy store should not be recovered")
	}
}
