/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"scenarioconv/internal/backend"
	"scenarioconv/internal/export"
	applog "scenarioconv/internal/log"
	"scenarioconv/internal/pipeline"
	"scenarioconv/internal/storage"
	"scenarioconv/internal/tables"
	"scenarioconv/internal/web"
)

func serveCmd(a *app) *cobra.Command {
	var (
		addrFlag  string
		debugFlag bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web front-end and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l := applog.WithComponent("cli")
			if addrFlag == "" {
				addrFlag = a.cfg.Server.Addr
			}
			formats, err := export.ParseFormats(a.cfg.Export.Formats)
			if err != nil {
				return err
			}

			store, recovered, err := storage.OpenOrRecover(ctx, a.cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("open run index: %w", err)
			}
			defer func() { _ = store.Close() }()
			if recovered {
				l.Warn("run index was corrupt and has been recreated", slog.String("path", store.Path()))
			}

			opts := web.Options{
				Converter:      pipeline.New(a.cfg, a.apiKey),
				Store:          store,
				DataDir:        a.cfg.Storage.DataDir,
				Formats:        formats,
				MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
				KeepRuns:       a.cfg.Storage.KeepRuns,
				Debug:          debugFlag,
			}
			if dsn := strings.TrimSpace(a.cfg.Storage.PostgresDSN); dsn != "" {
				db, err := backend.Open(ctx, dsn)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				if err := backend.EnsureSchema(ctx, db); err != nil {
					return err
				}
				opts.Publisher = pgPublisher(db)
				l.Info("publishing runs to postgres")
			}
			return web.New(opts).Run(ctx, addrFlag)
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&debugFlag, "debug", false, "run gin in debug mode")
	return cmd
}

func pgPublisher(db *sql.DB) web.Publisher {
	return web.PublisherFunc(func(ctx context.Context, run storage.Run, set tables.Set) error {
		return backend.Publish(ctx, db, backendRun(run), set)
	})
}
