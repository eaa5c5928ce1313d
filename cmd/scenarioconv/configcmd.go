/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scenarioconv/internal/config"
)

// overridableKeys are the config keys reported by "config show".
var overridableKeys = []string{
	"server.addr", "server.max_upload_bytes",
	"enricher.enabled", "enricher.base_url", "enricher.model", "enricher.timeout_ms",
	"export.formats",
	"storage.data_dir", "storage.postgres_dsn",
	"general.telemetry_opt_in", "general.telemetry_endpoint",
	"logging.level", "logging.format", "logging.source", "logging.file",
}

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the user configuration",
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := config.ConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and its environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, string(b))
			for _, k := range overridableKeys {
				if name, ok := config.EnvOverrideFor(k); ok {
					fmt.Fprintf(out, "# %s is set by %s\n", k, name)
				}
			}
			if a.apiKey != "" {
				fmt.Fprintln(out, "# enricher API key: configured")
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Save(a.cfg, ""); err != nil {
				return err
			}
			p, _ := config.ConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
			return nil
		},
	}

	setKeyCmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store the enricher API key (read from stdin) in the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			key := strings.TrimSpace(line)
			if key == "" {
				if err != nil {
					return fmt.Errorf("read key: %w", err)
				}
				return errors.New("empty API key")
			}
			if err := config.Save(a.cfg, key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
			return nil
		},
	}

	deleteKeyCmd := &cobra.Command{
		Use:   "delete-key",
		Short: "Remove the enricher API key from the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.DeleteAPIKey()
		},
	}

	cmd.AddCommand(pathCmd, showCmd, initCmd, setKeyCmd, deleteKeyCmd)
	return cmd
}
