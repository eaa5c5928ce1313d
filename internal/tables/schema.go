/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tables

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Table names, also used as export file stems.
const (
	DialogueTable  = "DialogueTable"
	ChoiceTable    = "ChoiceTable"
	SceneTable     = "SceneTable"
	CharacterTable = "CharacterTable"
)

// FieldType is the language-neutral type of a column.
type FieldType string

const (
	String FieldType = "string"
	Bool   FieldType = "bool"
	Int    FieldType = "int"
)

type Field struct {
	Name string
	Type FieldType
}

// Column returns the snake_case SQL column name of the field.
func (f Field) Column() string { return snake(f.Name) }

// Table describes one row set. Field order is the export column order.
type Table struct {
	Name     string
	SQLName  string
	Category string
	Fields   []Field
}

var schema = []Table{
	{
		Name: DialogueTable, SQLName: "dialogues", Category: "Dialogue",
		Fields: []Field{
			{"ID", String}, {"SceneID", String}, {"SceneName", String}, {"CharacterName", String},
			{"DialogueText", String}, {"EmotionTag", String}, {"NextDialogueID", String},
			{"HasChoices", Bool}, {"ChoiceCount", Int},
		},
	},
	{
		Name: ChoiceTable, SQLName: "choices", Category: "Choice",
		Fields: []Field{
			{"ID", String}, {"DialogueID", String}, {"ChoiceText", String},
			{"TargetSceneID", String}, {"TargetSceneName", String}, {"ChoiceIndex", Int},
		},
	},
	{
		Name: SceneTable, SQLName: "scenes", Category: "Scene",
		Fields: []Field{
			{"ID", String}, {"SceneName", String}, {"Description", String}, {"FirstDialogueID", String},
			{"DialogueCount", Int}, {"HasChoices", Bool}, {"IsEndScene", Bool},
		},
	},
	{
		Name: CharacterTable, SQLName: "characters", Category: "Character",
		Fields: []Field{
			{"ID", String}, {"CharacterName", String}, {"Description", String}, {"DialogueCount", Int},
		},
	},
}

// Schema returns the table descriptors in export order.
func Schema() []Table {
	out := make([]Table, len(schema))
	for i, t := range schema {
		t.Fields = append([]Field(nil), t.Fields...)
		out[i] = t
	}
	return out
}

// Lookup returns the descriptor of the named table.
func Lookup(name string) (Table, bool) {
	for _, t := range schema {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Header returns the field names in column order.
func (t Table) Header() []string {
	h := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		h[i] = f.Name
	}
	return h
}

func (r DialogueRow) values() []any {
	return []any{r.ID, r.SceneID, r.SceneName, r.CharacterName, r.DialogueText, r.EmotionTag, r.NextDialogueID, r.HasChoices, r.ChoiceCount}
}

func (r ChoiceRow) values() []any {
	return []any{r.ID, r.DialogueID, r.ChoiceText, r.TargetSceneID, r.TargetSceneName, r.ChoiceIndex}
}

func (r SceneRow) values() []any {
	return []any{r.ID, r.SceneName, r.Description, r.FirstDialogueID, r.DialogueCount, r.HasChoices, r.IsEndScene}
}

func (r CharacterRow) values() []any {
	return []any{r.ID, r.CharacterName, r.Description, r.DialogueCount}
}

// Rows returns the typed values of every row in the named table, in field order.
// Unknown names yield nil.
func (s Set) Rows(table string) [][]any {
	var out [][]any
	switch table {
	case DialogueTable:
		for _, r := range s.Dialogue {
			out = append(out, r.values())
		}
	case ChoiceTable:
		for _, r := range s.Choice {
			out = append(out, r.values())
		}
	case SceneTable:
		for _, r := range s.Scene {
			out = append(out, r.values())
		}
	case CharacterTable:
		for _, r := range s.Character {
			out = append(out, r.values())
		}
	}
	return out
}

// Len returns the row count of the named table.
func (s Set) Len(table string) int {
	switch table {
	case DialogueTable:
		return len(s.Dialogue)
	case ChoiceTable:
		return len(s.Choice)
	case SceneTable:
		return len(s.Scene)
	case CharacterTable:
		return len(s.Character)
	}
	return 0
}

// Records renders the named table as text records, header first. Booleans use
// the True/False spelling expected by game-engine data table importers. A table
// without rows yields nil.
func (s Set) Records(table string) [][]string {
	t, ok := Lookup(table)
	rows := s.Rows(table)
	if !ok || len(rows) == 0 {
		return nil
	}
	out := make([][]string, 0, len(rows)+1)
	out = append(out, t.Header())
	for _, r := range rows {
		rec := make([]string, len(r))
		for i, v := range r {
			rec[i] = FormatValue(v)
		}
		out = append(out, rec)
	}
	return out
}

// FormatValue renders a row value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// Documents returns the set as JSON-friendly objects keyed by table name.
func (s Set) Documents() map[string][]map[string]any {
	out := make(map[string][]map[string]any, len(schema))
	for _, t := range schema {
		docs := []map[string]any{}
		for _, r := range s.Rows(t.Name) {
			m := make(map[string]any, len(r))
			for i, f := range t.Fields {
				m[f.Name] = r[i]
			}
			docs = append(docs, m)
		}
		out[t.Name] = docs
	}
	return out
}

// JSONSchema describes the four row sets as a JSON Schema (draft-07) document.
func JSONSchema() ([]byte, error) {
	props := map[string]any{}
	var required []string
	for _, t := range schema {
		fields := map[string]any{}
		names := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			fields[f.Name] = map[string]any{"type": jsonType(f.Type)}
			names = append(names, f.Name)
		}
		props[t.Name] = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"properties":           fields,
				"required":             names,
				"additionalProperties": false,
			},
		}
		required = append(required, t.Name)
	}
	doc := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"title":      "Scenario tables",
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func jsonType(t FieldType) string {
	switch t {
	case Bool:
		return "boolean"
	case Int:
		return "integer"
	default:
		return "string"
	}
}

// Dialect selects the SQL flavor rendered by DDL.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DDLOptions tweaks generated statements.
type DDLOptions struct {
	// RunColumn adds a run_id column that joins rows to a conversion run and
	// becomes part of the primary key.
	RunColumn bool
	// Prefix is prepended to every table name.
	Prefix string
}

// TableName returns the SQL table name for t under opts.
func (o DDLOptions) TableName(t Table) string { return o.Prefix + t.SQLName }

// DDL renders CREATE TABLE IF NOT EXISTS statements for all row sets.
func DDL(d Dialect, opts DDLOptions) string {
	return strings.Join(DDLStatements(d, opts), "\n")
}

// DDLStatements renders one CREATE TABLE IF NOT EXISTS statement per row set,
// for drivers that execute a single statement per call.
func DDLStatements(d Dialect, opts DDLOptions) []string {
	out := make([]string, 0, len(schema))
	for _, t := range schema {
		var b strings.Builder
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", opts.TableName(t))
		if opts.RunColumn {
			b.WriteString("    run_id TEXT NOT NULL,\n")
		}
		for _, f := range t.Fields {
			fmt.Fprintf(&b, "    %s %s NOT NULL,\n", f.Column(), sqlType(d, f.Type))
		}
		if opts.RunColumn {
			b.WriteString("    PRIMARY KEY (run_id, id)\n")
		} else {
			b.WriteString("    PRIMARY KEY (id)\n")
		}
		b.WriteString(");\n")
		out = append(out, b.String())
	}
	return out
}

func sqlType(d Dialect, t FieldType) string {
	switch t {
	case Bool:
		if d == Postgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	case Int:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// InsertSQL renders a parameterized INSERT for t. Postgres uses $n placeholders.
func InsertSQL(d Dialect, opts DDLOptions, t Table) string {
	cols := make([]string, 0, len(t.Fields)+1)
	if opts.RunColumn {
		cols = append(cols, "run_id")
	}
	for _, f := range t.Fields {
		cols = append(cols, f.Column())
	}
	ph := make([]string, len(cols))
	for i := range cols {
		if d == Postgres {
			ph[i] = "$" + strconv.Itoa(i+1)
		} else {
			ph[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", opts.TableName(t), strings.Join(cols, ", "), strings.Join(ph, ", "))
}

// UnrealHeader renders USTRUCT row definitions for Unreal Engine data tables.
// The ID column maps to the data table row name, so it has no struct member.
// apiMacro defaults to YOURGAME_API.
func UnrealHeader(apiMacro string) string {
	if apiMacro == "" {
		apiMacro = "YOURGAME_API"
	}
	var b strings.Builder
	b.WriteString("// Data table row structs for the scenario tables.\n")
	b.WriteString("// Import each CSV file into a data table asset using the matching struct.\n\n")
	b.WriteString("#pragma once\n\n")
	b.WriteString("#include \"CoreMinimal.h\"\n")
	b.WriteString("#include \"Engine/DataTable.h\"\n")
	b.WriteString("#include \"ScenarioDataStructs.generated.h\"\n")
	for _, t := range schema {
		fmt.Fprintf(&b, "\nUSTRUCT(BlueprintType)\nstruct %s F%sRow : public FTableRowBase\n{\n    GENERATED_BODY()\n\npublic:\n", apiMacro, t.Name)
		first := true
		for _, f := range t.Fields {
			if f.Name == "ID" {
				continue
			}
			if !first {
				b.WriteString("\n")
			}
			first = false
			fmt.Fprintf(&b, "    UPROPERTY(EditAnywhere, BlueprintReadWrite, Category = \"%s\")\n", t.Category)
			fmt.Fprintf(&b, "    %s %s;\n", unrealType(f.Type), f.Name)
		}
		b.WriteString("};\n")
	}
	return b.String()
}

func unrealType(t FieldType) string {
	switch t {
	case Bool:
		return "bool"
	case Int:
		return "int32"
	default:
		return "FString"
	}
}

func snake(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || (i+1 < len(rs) && unicode.IsLower(rs[i+1]) && unicode.IsUpper(rs[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
