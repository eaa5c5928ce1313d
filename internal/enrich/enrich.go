/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package enrich obtains supplementary scenario metadata (title, character
// descriptions) from an external language model. Enrichment is best effort:
// Safe turns every failure into empty metadata so parsing always proceeds.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scenarioconv/internal/log"
	"scenarioconv/internal/scenario"
)

// Enricher returns metadata hints for a script.
type Enricher interface {
	Enrich(ctx context.Context, text string) (scenario.Metadata, error)
}

// Func adapts a plain function to Enricher.
type Func func(ctx context.Context, text string) (scenario.Metadata, error)

func (f Func) Enrich(ctx context.Context, text string) (scenario.Metadata, error) {
	return f(ctx, text)
}

// None is an Enricher that always returns empty metadata.
var None Enricher = Func(func(context.Context, string) (scenario.Metadata, error) {
	return scenario.Metadata{}, nil
})

type result struct {
	meta scenario.Metadata
	err  error
}

// Safe runs e with an optional timeout and never fails: errors, panics and
// timeouts are logged and replaced by empty metadata. A nil e yields empty
// metadata.
func Safe(ctx context.Context, e Enricher, text string, timeout time.Duration) scenario.Metadata {
	if e == nil {
		return scenario.Metadata{}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	l := log.WithOperation(log.WithComponent("enrich"), "enrich")

	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("enricher panic: %v", r)}
			}
		}()
		m, err := e.Enrich(ctx, text)
		ch <- result{meta: m, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil {
		l.WarnContext(ctx, "metadata enrichment failed, continuing without metadata", slog.Any("err", res.err))
		return scenario.Metadata{}
	}
	l.DebugContext(ctx, "metadata enrichment done",
		slog.String("title", res.meta.Title),
		slog.Int("characters", len(res.meta.Characters)))
	return res.meta
}
