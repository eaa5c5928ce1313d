/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package web

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scenarioconv/internal/export"
	applog "scenarioconv/internal/log"
	"scenarioconv/internal/scenario"
	"scenarioconv/internal/storage"
	"scenarioconv/internal/tables"
	"scenarioconv/internal/version"
)

var allowedExts = map[string]bool{".txt": true, ".md": true}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) indexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Version":   version.Version,
		"MaxUpload": s.opts.MaxUploadBytes,
		"Sample":    scenario.Sample,
	})
}

func (s *Server) health(c *gin.Context) {
	if s.opts.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, _, err := s.opts.Store.Stats(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "store not ready")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

func (s *Server) version(c *gin.Context) {
	c.String(http.StatusOK, version.String())
}

func (s *Server) sample(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(scenario.Sample))
}

// readScript returns the uploaded file or the text form field.
func (s *Server) readScript(c *gin.Context) (text, source string, err error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	fh, ferr := c.FormFile("file")
	switch {
	case ferr == nil && fh.Size > 0:
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !allowedExts[ext] {
			return "", "", fmt.Errorf("unsupported file type %q: use .txt or .md", ext)
		}
		f, err := fh.Open()
		if err != nil {
			return "", "", fmt.Errorf("open upload: %w", err)
		}
		defer func() { _ = f.Close() }()
		b, err := io.ReadAll(f)
		if err != nil {
			return "", "", fmt.Errorf("read upload: %w", err)
		}
		text, source = string(b), filepath.Base(fh.Filename)
	case ferr != nil && !errors.Is(ferr, http.ErrMissingFile):
		var mbe *http.MaxBytesError
		if errors.As(ferr, &mbe) {
			return "", "", ferr
		}
		// A plain urlencoded form has no files; fall back to the text field.
		text = c.PostForm("text")
	default:
		text = c.PostForm("text")
	}
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return "", "", errors.New("no script provided: send a file or a text field")
	}
	if !utf8.ValidString(text) {
		return "", "", errors.New("script is not valid UTF-8")
	}
	return text, source, nil
}

func (s *Server) convert(c *gin.Context) {
	text, source, err := s.readScript(c)
	if err != nil {
		status := http.StatusBadRequest
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			status = http.StatusRequestEntityTooLarge
		}
		fail(c, status, err)
		return
	}

	id := uuid.NewString()
	ctx := applog.ContextWithRun(c.Request.Context(), id)
	res, err := s.opts.Converter.Convert(ctx, text)
	if err != nil {
		fail(c, http.StatusServiceUnavailable, err)
		return
	}

	run := storage.Run{
		ID:        id,
		Title:     res.Graph.Title,
		Source:    source,
		CreatedAt: time.Now(),
		Stats:     res.Stats(),
		Enriched:  res.Enriched,
		Warnings:  res.Warnings,
	}
	rep, err := export.BundleFile(s.bundlePath(id), res, s.opts.Formats)
	if err != nil {
		s.log.ErrorContext(ctx, "bundle failed", slog.Any("err", err))
		fail(c, http.StatusInternalServerError, errors.New("could not write export bundle"))
		return
	}
	for _, f := range rep.Failed {
		run.Warnings = append(run.Warnings, "export "+f.Error())
	}
	published := false
	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.Publish(ctx, run, res.Tables); err != nil {
			s.log.WarnContext(ctx, "publish failed", slog.Any("err", err))
			run.Warnings = append(run.Warnings, "publish failed: "+err.Error())
		} else {
			published = true
		}
	}
	// Publish warnings belong to the stored run.
	if s.opts.Store != nil {
		if err := s.opts.Store.SaveRun(ctx, run, text, res.Tables); err != nil {
			s.log.ErrorContext(ctx, "save run failed", slog.Any("err", err))
			fail(c, http.StatusInternalServerError, errors.New("could not record run"))
			return
		}
		s.prune(ctx)
	}

	records := map[string][][]string{}
	for _, t := range tables.Schema() {
		records[t.Name] = res.Tables.Records(t.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"run":       run,
		"files":     rep.Files,
		"download":  "/api/runs/" + id + "/bundle.zip",
		"tables":    records,
		"published": published,
	})
}

func (s *Server) prune(ctx context.Context) {
	if s.opts.KeepRuns <= 0 {
		return
	}
	ids, err := s.opts.Store.PruneRuns(ctx, s.opts.KeepRuns)
	if err != nil {
		s.log.WarnContext(ctx, "prune runs failed", slog.Any("err", err))
		return
	}
	for _, id := range ids {
		_ = os.Remove(s.bundlePath(id))
	}
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.opts.Store == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("run history is not available"))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

func (s *Server) listRuns(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	runs, err := s.opts.Store.ListRuns(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	run, set, err := s.opts.Store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrRunNotFound) {
		fail(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "tables": set.Documents()})
}

func (s *Server) deleteRun(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	id := c.Param("id")
	err := s.opts.Store.DeleteRun(c.Request.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		fail(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	_ = os.Remove(s.bundlePath(id))
	c.Status(http.StatusNoContent)
}

func (s *Server) runScript(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	snap, err := s.opts.Store.Script(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrRunNotFound) {
		fail(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(snap.Text))
}

// validRunID rejects anything that is not a uuid so ids never form paths.
func validRunID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Server) bundle(c *gin.Context) {
	id := c.Param("id")
	if !validRunID(id) {
		fail(c, http.StatusNotFound, storage.ErrRunNotFound)
		return
	}
	path := s.bundlePath(id)
	if _, err := os.Stat(path); err != nil {
		fail(c, http.StatusNotFound, storage.ErrRunNotFound)
		return
	}
	c.FileAttachment(path, export.BundleFileName)
}

func (s *Server) bundleFile(c *gin.Context) {
	id, name := c.Param("id"), c.Param("name")
	if !validRunID(id) {
		fail(c, http.StatusNotFound, storage.ErrRunNotFound)
		return
	}
	zr, err := zip.OpenReader(s.bundlePath(id))
	if err != nil {
		fail(c, http.StatusNotFound, storage.ErrRunNotFound)
		return
	}
	defer func() { _ = zr.Close() }()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		defer func() { _ = rc.Close() }()
		ctype := mime.TypeByExtension(filepath.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		c.DataFromReader(http.StatusOK, int64(f.UncompressedSize64), ctype, rc, map[string]string{
			"Content-Disposition": fmt.Sprintf("inline; filename=%q", name),
		})
		return
	}
	fail(c, http.StatusNotFound, fmt.Errorf("file %q not in bundle", name))
}

func (s *Server) search(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	q := storage.SearchQuery{
		Text:      storage.Phrase(c.Query("q")),
		RunID:     c.Query("run"),
		Character: c.Query("character"),
		Limit:     queryInt(c, "limit", 100),
		Offset:    queryInt(c, "offset", 0),
	}
	if t := c.Query("type"); t != "" {
		q.Types = strings.Split(t, ",")
	}
	res, err := s.opts.Store.SearchDialogue(c.Request.Context(), q)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if res == nil {
		res = []storage.SearchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}
