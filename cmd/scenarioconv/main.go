/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command scenarioconv converts narrative scripts into scenario tables and flowcharts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scenarioconv/internal/config"
	"scenarioconv/internal/crash"
	applog "scenarioconv/internal/log"
	"scenarioconv/internal/scenario"
	"scenarioconv/internal/telemetry"
	"scenarioconv/internal/version"
)

// app carries the loaded configuration into every subcommand.
type app struct {
	cfg    config.AppConfig
	apiKey string
	cfgErr error
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a := &app{}
	a.cfg, a.apiKey, a.cfgErr = config.Load()
	applog.Init(applog.Options{
		Level:     a.cfg.Logging.Level,
		Format:    a.cfg.Logging.Format,
		AddSource: a.cfg.Logging.Source,
		File:      a.cfg.Logging.File,
	})
	telemetry.NewDefault(telemetry.FromConfig(a.cfg.General))
	defer crash.Recover(a.cfg.Storage.DataDir)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		telemetry.Flush(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := rootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func rootCmd(a *app) *cobra.Command {
	var dataDir string
	root := &cobra.Command{
		Use:   "scenarioconv",
		Short: "Convert narrative scripts into scenario data",
		Long: `scenarioconv parses scripts made of 【Scene】 headers, Name：line dialogue and
numbered choices, then exports data tables, a flowchart and schemas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfgErr != nil {
				return fmt.Errorf("load config: %w", a.cfgErr)
			}
			if dataDir != "" {
				a.cfg.Storage.DataDir = dataDir
			}
			applog.WithComponent("cli").Debug("start", slog.String("cmd", cmd.CommandPath()))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory (run index, bundles, crash reports)")

	root.AddCommand(
		convertCmd(a),
		serveCmd(a),
		schemaCmd(),
		searchCmd(a),
		runsCmd(a),
		configCmd(a),
		sampleCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func sampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print the bundled sample script",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), scenario.Sample)
		},
	}
}
