/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package web serves the browser front-end and the JSON API of the converter.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"scenarioconv/internal/export"
	applog "scenarioconv/internal/log"
	"scenarioconv/internal/pipeline"
	"scenarioconv/internal/storage"
	"scenarioconv/internal/tables"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Publisher copies a finished run to an external database.
type Publisher interface {
	Publish(ctx context.Context, run storage.Run, set tables.Set) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, run storage.Run, set tables.Set) error

func (f PublisherFunc) Publish(ctx context.Context, run storage.Run, set tables.Set) error {
	return f(ctx, run, set)
}

type Options struct {
	Converter *pipeline.Converter
	Store     *storage.Store
	// DataDir holds the exports/<run>.zip bundles.
	DataDir        string
	Formats        []export.Format
	MaxUploadBytes int64
	// KeepRuns prunes older runs after each conversion; non-positive keeps all.
	KeepRuns  int
	Publisher Publisher
	Debug     bool
}

// Server handles conversion requests.
type Server struct {
	opts Options
	log  *slog.Logger
}

// New returns a server with defaults applied to opts.
func New(opts Options) *Server {
	if opts.Converter == nil {
		opts.Converter = &pipeline.Converter{}
	}
	if len(opts.Formats) == 0 {
		opts.Formats, _ = export.PresetFormats(export.PresetData)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 2 << 20
	}
	return &Server{opts: opts, log: applog.WithComponent("web")}
}

// ExportsDir is where run bundles are kept.
func (s *Server) ExportsDir() string { return filepath.Join(s.opts.DataDir, "exports") }

func (s *Server) bundlePath(runID string) string {
	return filepath.Join(s.ExportsDir(), runID+".zip")
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	if !s.opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", s.indexPage)
	r.GET("/healthz", s.health)
	r.GET("/version", s.version)

	api := r.Group("/api")
	{
		api.GET("/sample", s.sample)
		api.POST("/convert", s.convert)
		api.GET("/search", s.search)

		runs := api.Group("/runs")
		{
			runs.GET("", s.listRuns)
			runs.GET("/:id", s.getRun)
			runs.DELETE("/:id", s.deleteRun)
			runs.GET("/:id/script", s.runScript)
			runs.GET("/:id/bundle.zip", s.bundle)
			runs.GET("/:id/files/:name", s.bundleFile)
		}
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := os.MkdirAll(s.ExportsDir(), 0o755); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
