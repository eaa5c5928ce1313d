/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scenarioconv/internal/backend"
	"scenarioconv/internal/storage"
)

func searchCmd(a *app) *cobra.Command {
	var (
		runFlag       string
		characterFlag string
		typesFlag     []string
		limitFlag     int
		pgFlag        bool
		jsonFlag      bool
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search recorded dialogue, choices and scene descriptions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := storage.SearchQuery{
				RunID:     runFlag,
				Character: characterFlag,
				Types:     typesFlag,
				Limit:     limitFlag,
			}
			if len(args) == 1 {
				q.Text = storage.Phrase(args[0])
			}
			var (
				res []storage.SearchResult
				err error
			)
			if pgFlag {
				res, err = searchPostgres(cmd, a.cfg.Storage.PostgresDSN, args, q)
			} else {
				var store *storage.Store
				store, err = storage.Open(a.cfg.Storage.DataDir)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				res, err = store.SearchDialogue(cmd.Context(), q)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonFlag {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			for _, r := range res {
				who := r.Character
				if who == "" {
					who = r.Type
				}
				fmt.Fprintf(out, "%s  %s/%s  %s: %s\n", r.RunID, r.SceneID, r.Ref, who, r.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runFlag, "run", "", "restrict to one run id")
	cmd.Flags().StringVar(&characterFlag, "character", "", "restrict to one speaker")
	cmd.Flags().StringSliceVar(&typesFlag, "type", nil, "document types: dialogue, choice, scene")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "maximum number of results")
	cmd.Flags().BoolVar(&pgFlag, "pg", false, "search published dialogue in Postgres instead of the local index")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print results as JSON")
	return cmd
}

func searchPostgres(cmd *cobra.Command, dsn string, args []string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("search: no Postgres DSN configured (set SCV_PG_DSN)")
	}
	db, err := backend.Open(cmd.Context(), dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	// Postgres takes plain words, not an FTS5 phrase.
	q.Text = ""
	if len(args) == 1 {
		q.Text = args[0]
	}
	return backend.SearchPG(cmd.Context(), db, q)
}
