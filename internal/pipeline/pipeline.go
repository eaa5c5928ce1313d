/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pipeline wires the converter stages together: metadata enrichment,
// parsing, and the table and diagram projections.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scenarioconv/internal/config"
	"scenarioconv/internal/diagram"
	"scenarioconv/internal/enrich"
	applog "scenarioconv/internal/log"
	"scenarioconv/internal/scenario"
	"scenarioconv/internal/tables"
	"scenarioconv/internal/telemetry"
)

// Result is the outcome of one conversion.
type Result struct {
	Graph    *scenario.Graph
	Tables   tables.Set
	Diagram  diagram.Document
	Enriched bool
	// Warnings lists non-fatal findings such as unresolved choice targets.
	Warnings []string
	Elapsed  time.Duration
}

// Stats summarizes the converted graph.
func (r *Result) Stats() scenario.Stats { return r.Graph.Stats() }

// Converter turns script text into a Result. The zero value converts without
// enrichment using the default diagram layout.
type Converter struct {
	Enricher enrich.Enricher
	// Timeout bounds the enrichment call; zero means no extra bound.
	Timeout time.Duration
	Parse   scenario.Options
	Diagram diagram.Options
}

// New builds a converter from application settings. Enrichment is enabled
// only when the config enables it and an API key is available.
func New(cfg config.AppConfig, apiKey string) *Converter {
	c := &Converter{
		Timeout: cfg.Enricher.Timeout(),
		Parse:   scenario.Options{SuccessorLines: cfg.Parser.SuccessorLines},
		Diagram: diagram.Options{SceneSourcedChoiceEdges: cfg.Export.SceneSourcedChoiceEdges},
	}
	if cfg.Enricher.Enabled && strings.TrimSpace(apiKey) != "" {
		cl := enrich.NewClient(cfg.Enricher.BaseURL, apiKey, cfg.Enricher.Model)
		cl.Temperature = cfg.Enricher.Temperature
		c.Enricher = cl
	} else if cfg.Enricher.Enabled {
		applog.WithComponent("pipeline").Info("no API key configured, metadata enrichment disabled")
	}
	return c
}

// Convert runs every stage on text. It fails only when ctx is already done;
// enrichment problems degrade to empty metadata.
func (c *Converter) Convert(ctx context.Context, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	l := applog.WithOperation(applog.WithComponent("pipeline"), "convert")
	start := time.Now()

	meta := enrich.Safe(ctx, c.Enricher, text, c.Timeout)
	g := scenario.ParseWith(text, meta, c.Parse)
	set := tables.Project(g)
	doc := diagram.Project(g, c.Diagram)

	res := &Result{
		Graph:    g,
		Tables:   set,
		Diagram:  doc,
		Enriched: !meta.IsEmpty(),
		Warnings: warnings(g, set),
		Elapsed:  time.Since(start),
	}
	for _, w := range res.Warnings {
		l.WarnContext(ctx, "conversion warning", slog.String("detail", w))
	}
	st := g.Stats()
	l.InfoContext(ctx, "conversion done",
		slog.String("title", g.Title),
		slog.Int("scenes", st.Scenes),
		slog.Int("dialogues", st.Dialogues),
		slog.Int("choices", st.Choices),
		slog.Int("characters", st.Characters),
		slog.Bool("enriched", res.Enriched),
		slog.Duration("elapsed", res.Elapsed))
	telemetry.Conversion(st, res.Enriched, res.Elapsed)
	return res, nil
}

func warnings(g *scenario.Graph, set tables.Set) []string {
	var out []string
	for _, t := range scenario.DuplicateTitles(g) {
		out = append(out, fmt.Sprintf("duplicate scene title %q: references resolve to the first scene", t))
	}
	for _, c := range set.Unresolved() {
		out = append(out, fmt.Sprintf("choice %s targets unknown scene %q", c.ID, c.TargetSceneName))
	}
	for _, s := range g.Scenes {
		if s.NextScene != "" && g.ResolveTitle(s.NextScene) == "" {
			out = append(out, fmt.Sprintf("scene %s continues to unknown scene %q", s.ID, s.NextScene))
		}
	}
	for _, sp := range tables.OrphanSpeakers(g) {
		out = append(out, fmt.Sprintf("speaker %q is missing from the character list", sp))
	}
	if err := tables.Validate(set); err != nil {
		out = append(out, err.Error())
	}
	return out
}
