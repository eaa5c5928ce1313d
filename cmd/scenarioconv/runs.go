/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"scenarioconv/internal/export"
	"scenarioconv/internal/storage"
	"scenarioconv/internal/tables"
)

func runsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and prune the local run history",
	}
	cmd.AddCommand(runsListCmd(a), runsScriptsCmd(a), runsScriptCmd(a), runsExportCmd(a), runsDeleteCmd(a), runsPruneCmd(a))
	return cmd
}

func withStore(a *app, fn func(*storage.Store) error) error {
	st, err := storage.Open(a.cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open run index: %w", err)
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

func runsListCmd(a *app) *cobra.Command {
	var limitFlag int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(a, func(st *storage.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limitFlag, 0)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tSCENES\tDIALOGUES\tWARNINGS")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
						r.Title, r.Stats.Scenes, r.Stats.Dialogues, len(r.Warnings))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum number of runs")
	return cmd
}

func runsScriptsCmd(a *app) *cobra.Command {
	var limitFlag int
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List recently converted scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(a, func(st *storage.Store) error {
				snaps, err := st.ListScriptSnapshots(cmd.Context(), limitFlag)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN\tCONVERTED\tLINES\tFIRST LINE")
				for _, s := range snaps {
					first, _, _ := strings.Cut(strings.TrimSpace(s.Text), "\n")
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.RunID, s.TS.Local().Format("2006-01-02 15:04"),
						strings.Count(s.Text, "\n")+1, first)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum number of scripts")
	return cmd
}

func runsScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script <run-id>",
		Short: "Print the script a run was converted from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, func(st *storage.Store) error {
				snap, err := st.Script(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), snap.Text)
				return err
			})
		},
	}
}

func runsExportCmd(a *app) *cobra.Command {
	var outFlag string
	cmd := &cobra.Command{
		Use:   "export <run-id> [table...]",
		Short: "Write the recorded tables of a run as CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, func(st *storage.Store) error {
				_, set, err := st.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				names := args[1:]
				if len(names) == 0 {
					for _, t := range tables.Schema() {
						names = append(names, t.Name)
					}
				}
				if err := os.MkdirAll(outFlag, 0o755); err != nil {
					return err
				}
				for _, name := range names {
					if _, ok := tables.Lookup(name); !ok {
						return fmt.Errorf("unknown table %q", name)
					}
					b, err := export.TableCSV(set, name)
					if err != nil {
						return err
					}
					if b == nil {
						continue
					}
					path := filepath.Join(outFlag, name+".csv")
					if err := os.WriteFile(path, b, 0o644); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outFlag, "out", "o", ".", "output directory")
	return cmd
}

func runsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete recorded runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, func(st *storage.Store) error {
				for _, id := range args {
					if err := st.DeleteRun(cmd.Context(), id); err != nil {
						return fmt.Errorf("delete %s: %w", id, err)
					}
					removeBundle(a, id)
				}
				return nil
			})
		},
	}
}

func runsPruneCmd(a *app) *cobra.Command {
	var keepFlag int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("keep") {
				keepFlag = a.cfg.Storage.KeepRuns
			}
			if keepFlag < 0 {
				return nil
			}
			return withStore(a, func(st *storage.Store) error {
				ids, err := st.PruneRuns(cmd.Context(), keepFlag)
				if err != nil {
					return err
				}
				for _, id := range ids {
					removeBundle(a, id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d run(s)\n", len(ids))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keepFlag, "keep", 0, "number of runs to keep (default from config)")
	return cmd
}

// removeBundle drops the zip the web server kept for a run, if any.
func removeBundle(a *app, id string) {
	if strings.ContainsAny(id, `/\`) {
		return
	}
	_ = os.Remove(filepath.Join(a.cfg.Storage.DataDir, "exports", id+".zip"))
}
