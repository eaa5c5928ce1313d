/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scenarioconv/internal/backend"
	"scenarioconv/internal/export"
	applog "scenarioconv/internal/log"
	"scenarioconv/internal/pipeline"
	"scenarioconv/internal/storage"
)

func convertCmd(a *app) *cobra.Command {
	var (
		outFlag      string
		zipFlag      bool
		formatsFlag  []string
		presetFlag   string
		noEnrichFlag bool
		publishFlag  bool
		saveFlag     bool
	)
	cmd := &cobra.Command{
		Use:   "convert <script.txt|->",
		Short: "Convert a script file into tables, flowchart and schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, source, err := readScriptFile(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			formats, err := resolveFormats(presetFlag, formatsFlag, a.cfg.Export.Formats)
			if err != nil {
				return err
			}

			id := uuid.NewString()
			ctx := applog.ContextWithRun(cmd.Context(), id)
			l := applog.WithComponent("cli")

			conv := pipeline.New(a.cfg, a.apiKey)
			if noEnrichFlag {
				conv.Enricher = nil
			}
			res, err := conv.Convert(ctx, text)
			if err != nil {
				return err
			}

			var rep export.Report
			if zipFlag {
				rep, err = export.BundleFile(filepath.Join(outFlag, export.BundleFileName), res, formats)
			} else {
				rep, err = export.WriteAll(outFlag, res, formats)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			st := res.Stats()
			fmt.Fprintf(out, "%s: %d scenes, %d dialogues, %d choices, %d characters\n",
				res.Graph.Title, st.Scenes, st.Dialogues, st.Choices, st.Characters)
			for _, f := range rep.Files {
				fmt.Fprintf(out, "  wrote %s\n", f)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			run := storage.Run{
				ID:        id,
				Title:     res.Graph.Title,
				Source:    source,
				CreatedAt: time.Now(),
				Stats:     st,
				Enriched:  res.Enriched,
				Warnings:  res.Warnings,
			}
			if saveFlag {
				store, _, err := storage.OpenOrRecover(ctx, a.cfg.Storage.DataDir)
				if err != nil {
					return fmt.Errorf("open run index: %w", err)
				}
				defer func() { _ = store.Close() }()
				if err := store.SaveRun(ctx, run, text, res.Tables); err != nil {
					return err
				}
				fmt.Fprintf(out, "  recorded run %s\n", id)
			}
			if publishFlag {
				if err := publishRun(cmd, a.cfg.Storage.PostgresDSN, run, res); err != nil {
					return err
				}
				fmt.Fprintf(out, "  published run %s\n", id)
			}
			if err := rep.Err(); err != nil {
				l.ErrorContext(ctx, "some exports failed", slog.Any("err", err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFlag, "out", "o", "output", "output directory")
	cmd.Flags().BoolVar(&zipFlag, "zip", false, "write a single zip bundle instead of loose files")
	cmd.Flags().StringSliceVar(&formatsFlag, "formats", nil, "comma-separated formats: csv, drawio, schema, svg, pdf, png")
	cmd.Flags().StringVar(&presetFlag, "preset", "", "format preset: data, preview, full")
	cmd.Flags().BoolVar(&noEnrichFlag, "no-enrich", false, "skip metadata enrichment")
	cmd.Flags().BoolVar(&publishFlag, "publish", false, "publish the tables to the configured Postgres database")
	cmd.Flags().BoolVar(&saveFlag, "save", false, "record the run in the local index")
	cmd.MarkFlagsMutuallyExclusive("formats", "preset")
	return cmd
}

// readScriptFile reads path, or stdin when path is "-".
func readScriptFile(stdin io.Reader, path string) (text, source string, err error) {
	var b []byte
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
		source = filepath.Base(path)
	}
	if err != nil {
		return "", "", fmt.Errorf("read script: %w", err)
	}
	text = strings.TrimPrefix(string(b), "\ufeff")
	if !utf8.ValidString(text) {
		return "", "", errors.New("script is not valid UTF-8")
	}
	if strings.TrimSpace(text) == "" {
		return "", "", errors.New("script is empty")
	}
	return text, source, nil
}

func resolveFormats(preset string, flag, configured []string) ([]export.Format, error) {
	switch {
	case preset != "":
		return export.PresetFormats(export.PresetName(preset))
	case len(flag) > 0:
		return export.ParseFormats(flag)
	default:
		return export.ParseFormats(configured)
	}
}

func publishRun(cmd *cobra.Command, dsn string, run storage.Run, res *pipeline.Result) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("publish: no Postgres DSN configured (set SCV_PG_DSN)")
	}
	db, err := backend.Open(cmd.Context(), dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := backend.EnsureSchema(cmd.Context(), db); err != nil {
		return err
	}
	return backend.Publish(cmd.Context(), db, backendRun(run), res.Tables)
}

func backendRun(run storage.Run) backend.Run {
	return backend.Run{
		ID:         run.ID,
		Title:      run.Title,
		Scenes:     run.Stats.Scenes,
		Dialogues:  run.Stats.Dialogues,
		Choices:    run.Stats.Choices,
		Characters: run.Stats.Characters,
	}
}
