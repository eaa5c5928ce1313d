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

	"github.com/spf13/cobra"

	"scenarioconv/internal/tables"
)

func schemaCmd() *cobra.Command {
	var (
		formatFlag string
		prefixFlag string
		apiFlag    string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the table schema as JSON Schema, SQL DDL or an Unreal header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := renderSchema(formatFlag, prefixFlag, apiFlag)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&formatFlag, "format", "json", "output: json, sqlite, postgres, unreal")
	cmd.Flags().StringVar(&prefixFlag, "prefix", "", "table name prefix for SQL output")
	cmd.Flags().StringVar(&apiFlag, "api", "", "export macro for the Unreal header, e.g. MYGAME_API")
	return cmd
}

func renderSchema(format, prefix, apiMacro string) (string, error) {
	switch format {
	case "json":
		b, err := tables.JSONSchema()
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "sqlite":
		return tables.DDL(tables.SQLite, tables.DDLOptions{Prefix: prefix}), nil
	case "postgres":
		return tables.DDL(tables.Postgres, tables.DDLOptions{Prefix: prefix}), nil
	case "unreal":
		return tables.UnrealHeader(apiMacro), nil
	default:
		return "", fmt.Errorf("unknown schema format %q", format)
	}
}
