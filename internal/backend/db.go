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
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	applog "scenarioconv/internal/log"
	"scenarioconv/internal/tables"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RowTables is the layout of published row sets in Postgres.
var RowTables = tables.DDLOptions{RunColumn: true, Prefix: "scv_"}

// Run is the header row of a published conversion.
type Run struct {
	ID         string
	Title      string
	Scenes     int
	Dialogues  int
	Choices    int
	Characters int
}

// Open connects to Postgres through the pgx database/sql driver and verifies
// the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the published row tables and applies pending migrations.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, q := range tables.DDLStatements(tables.Postgres, RowTables) {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure row tables: %w", err)
		}
	}
	return applyMigrations(ctx, db)
}

// Publish replaces the published rows of run in a single transaction.
func Publish(ctx context.Context, db *sql.DB, run Run, set tables.Set) error {
	l := applog.WithOperation(applog.WithComponent("backend"), "publish").With(slog.String("run", run.ID))
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// dialect=PostgreSQL
	if _, err := tx.ExecContext(ctx, `INSERT INTO scv_runs(id, title, scenes, dialogues, choices, characters)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, scenes = EXCLUDED.scenes,
			dialogues = EXCLUDED.dialogues, choices = EXCLUDED.choices,
			characters = EXCLUDED.characters, published_at = now()`,
		run.ID, run.Title, run.Scenes, run.Dialogues, run.Choices, run.Characters); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	for _, t := range tables.Schema() {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1`, RowTables.TableName(t)), run.ID); err != nil {
			return fmt.Errorf("clear %s: %w", t.SQLName, err)
		}
		insert := tables.InsertSQL(tables.Postgres, RowTables, t)
		for _, r := range set.Rows(t.Name) {
			args := append([]any{run.ID}, r...)
			if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
				return fmt.Errorf("insert %s row: %w", t.SQLName, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	l.Info("run published", slog.Int("dialogues", len(set.Dialogue)), slog.Int("choices", len(set.Choice)))
	return nil
}

// migrationFiles lists the embedded migration files in version order.
func migrationFiles() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithComponent("backend")
	files, err := migrationFiles()
	if err != nil {
		return err
	}

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS scv_schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM scv_schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		sqlText := string(b)
		if strings.TrimSpace(sqlText) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO scv_schema_migrations(version, name) VALUES ($1, $2)`, version, fname); err != nil {
			return fmt.Errorf("record %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
