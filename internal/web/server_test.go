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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"scenarioconv/internal/export"
	"scenarioconv/internal/scenario"
	"scenarioconv/internal/storage"
	"scenarioconv/internal/tables"
)

type convertResponse struct {
	Run       storage.Run           `json:"run"`
	Files     []string              `json:"files"`
	Download  string                `json:"download"`
	Tables    map[string][][]string `json:"tables"`
	Published bool                  `json:"published"`
	Error     string                `json:"error"`
}

func newTestServer(t *testing.T, mutate func(*Options)) (*Server, *gin.Engine) {
	t.Helper()
	dir := t.TempDir()
	st, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	opts := Options{Store: st, DataDir: dir, MaxUploadBytes: 64 << 10}
	if mutate != nil {
		mutate(&opts)
	}
	s := New(opts)
	return s, s.Router()
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func doConvert(t *testing.T, r http.Handler, body *bytes.Buffer, ctype string) (*httptest.ResponseRecorder, convertResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out convertResponse
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthVersionAndIndex(t *testing.T) {
	_, r := newTestServer(t, nil)
	if w := get(r, "/healthz"); w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", w.Code, w.Body.String())
	}
	if w := get(r, "/version"); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("version = %d %q", w.Code, w.Body.String())
	}
	w := get(r, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<h1>Scenario Converter</h1>") {
		t.Fatalf("index page = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "【Prologue】") {
		t.Fatalf("index page should prefill the sample")
	}
	if w := get(r, "/api/sample"); w.Body.String() != scenario.Sample {
		t.Fatalf("sample endpoint returned unexpected body")
	}
}

func TestConvertUploadFlow(t *testing.T) {
	_, r := newTestServer(t, nil)
	body, ctype := multipartBody(t, "story.txt", scenario.Sample)
	w, out := doConvert(t, r, body, ctype)
	if w.Code != http.StatusOK {
		t.Fatalf("convert = %d: %s", w.Code, w.Body.String())
	}
	if out.Run.ID == "" || out.Run.Source != "story.txt" || out.Run.Stats.Dialogues != 7 {
		t.Fatalf("unexpected run: %+v", out.Run)
	}
	if len(out.Run.Warnings) != 1 {
		t.Fatalf("expected the unresolved target warning, got %v", out.Run.Warnings)
	}
	if got := out.Tables[tables.DialogueTable]; len(got) != 8 || got[0][0] != "ID" {
		t.Fatalf("unexpected dialogue records: %v", got)
	}

	// run is listed and retrievable
	w = get(r, "/api/runs")
	var list struct {
		Runs []storage.Run `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Runs) != 1 || list.Runs[0].ID != out.Run.ID {
		t.Fatalf("unexpected run list: %s", w.Body.String())
	}
	if w := get(r, "/api/runs/"+out.Run.ID); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "DLG_0007") {
		t.Fatalf("get run = %d %s", w.Code, w.Body.String())
	}
	if w := get(r, "/api/runs/"+out.Run.ID+"/script"); w.Body.String() != scenario.Sample {
		t.Fatalf("script endpoint returned unexpected body")
	}

	// bundle download
	w = get(r, out.Download)
	if w.Code != http.StatusOK {
		t.Fatalf("bundle = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), export.BundleFileName) {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	if len(zr.File) != len(out.Files) {
		t.Fatalf("bundle has %d entries, response lists %d", len(zr.File), len(out.Files))
	}

	// single file from the bundle
	w = get(r, "/api/runs/"+out.Run.ID+"/files/ChoiceTable.csv")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Turn back,,Village,2") {
		t.Fatalf("bundle file = %d %s", w.Code, w.Body.String())
	}
	if w := get(r, "/api/runs/"+out.Run.ID+"/files/nope.csv"); w.Code != http.StatusNotFound {
		t.Fatalf("missing bundle file = %d", w.Code)
	}

	// search
	w = get(r, "/api/search?q="+url.QueryEscape("old castle"))
	var found struct {
		Results []storage.SearchResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &found); err != nil || len(found.Results) != 1 || found.Results[0].Ref != "DLG_0002" {
		t.Fatalf("unexpected search result: %s", w.Body.String())
	}

	// delete
	req := httptest.NewRequest(http.MethodDelete, "/api/runs/"+out.Run.ID, nil)
	dw := httptest.NewRecorder()
	r.ServeHTTP(dw, req)
	if dw.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", dw.Code)
	}
	if w := get(r, out.Download); w.Code != http.StatusNotFound {
		t.Fatalf("bundle of deleted run = %d", w.Code)
	}
	if w := get(r, "/api/runs/"+out.Run.ID); w.Code != http.StatusNotFound {
		t.Fatalf("deleted run = %d", w.Code)
	}
}

func TestConvertTextField(t *testing.T) {
	_, r := newTestServer(t, nil)
	form := url.Values{"text": {"【Only】\nA：hello"}}
	w, out := doConvert(t, r, bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded")
	if w.Code != http.StatusOK {
		t.Fatalf("convert = %d: %s", w.Code, w.Body.String())
	}
	if out.Run.Stats.Scenes != 1 || out.Run.Source != "" {
		t.Fatalf("unexpected run: %+v", out.Run)
	}
}

func TestConvertRejectsBadInput(t *testing.T) {
	_, r := newTestServer(t, nil)

	body, ctype := multipartBody(t, "story.docx", "x")
	if w, out := doConvert(t, r, body, ctype); w.Code != http.StatusBadRequest || !strings.Contains(out.Error, ".docx") {
		t.Fatalf("wrong extension = %d %q", w.Code, out.Error)
	}

	body, ctype = multipartBody(t, "story.txt", "\xff\xfe\x00bad")
	if w, _ := doConvert(t, r, body, ctype); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid utf-8 = %d", w.Code)
	}

	form := url.Values{"text": {"   "}}
	if w, _ := doConvert(t, r, bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded"); w.Code != http.StatusBadRequest {
		t.Fatalf("empty text = %d", w.Code)
	}

	body, ctype = multipartBody(t, "big.txt", strings.Repeat("A：line\n", 20000))
	if w, _ := doConvert(t, r, body, ctype); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized upload = %d", w.Code)
	}
}

func TestConvertPublishes(t *testing.T) {
	var got storage.Run
	_, r := newTestServer(t, func(o *Options) {
		o.Publisher = PublisherFunc(func(_ context.Context, run storage.Run, set tables.Set) error {
			got = run
			if len(set.Dialogue) == 0 {
				return errors.New("no rows")
			}
			return nil
		})
	})
	body, ctype := multipartBody(t, "story.md", scenario.Sample)
	w, out := doConvert(t, r, body, ctype)
	if w.Code != http.StatusOK || !out.Published || got.ID != out.Run.ID {
		t.Fatalf("publish not called: %d %+v", w.Code, out)
	}
}

func TestConvertPublishFailureIsAWarning(t *testing.T) {
	_, r := newTestServer(t, func(o *Options) {
		o.Publisher = PublisherFunc(func(context.Context, storage.Run, tables.Set) error {
			return errors.New("db down")
		})
	})
	body, ctype := multipartBody(t, "story.txt", scenario.Sample)
	w, out := doConvert(t, r, body, ctype)
	if w.Code != http.StatusOK || out.Published {
		t.Fatalf("unexpected response: %d %+v", w.Code, out)
	}
	last := out.Run.Warnings[len(out.Run.Warnings)-1]
	if !strings.Contains(last, "db down") {
		t.Fatalf("missing publish warning: %v", out.Run.Warnings)
	}
	w = get(r, "/api/runs/"+out.Run.ID)
	var stored struct {
		Run storage.Run `json:"run"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if n := len(stored.Run.Warnings); n == 0 || !strings.Contains(stored.Run.Warnings[n-1], "db down") {
		t.Fatalf("stored run lacks publish warning: %v", stored.Run.Warnings)
	}
}

func TestKeepRunsPrunesHistory(t *testing.T) {
	_, r := newTestServer(t, func(o *Options) { o.KeepRuns = 2 })
	var last convertResponse
	var first string
	for i := 0; i < 3; i++ {
		body, ctype := multipartBody(t, "s.txt", scenario.Sample)
		w, out := doConvert(t, r, body, ctype)
		if w.Code != http.StatusOK {
			t.Fatalf("convert %d = %d", i, w.Code)
		}
		if i == 0 {
			first = out.Run.ID
		}
		last = out
	}
	if w := get(r, "/api/runs/"+first); w.Code != http.StatusNotFound {
		t.Fatalf("oldest run should be pruned, got %d", w.Code)
	}
	if w := get(r, "/api/runs/"+first+"/bundle.zip"); w.Code != http.StatusNotFound {
		t.Fatalf("oldest bundle should be removed, got %d", w.Code)
	}
	if w := get(r, "/api/runs/"+last.Run.ID); w.Code != http.StatusOK {
		t.Fatalf("newest run missing: %d", w.Code)
	}
}

func TestBundleRejectsNonUUID(t *testing.T) {
	_, r := newTestServer(t, nil)
	if w := get(r, "/api/runs/..%2F..%2Fetc/bundle.zip"); w.Code != http.StatusNotFound {
		t.Fatalf("got %d", w.Code)
	}
	if w := get(r, "/api/runs/not-a-uuid/files/schema.json"); w.Code != http.StatusNotFound {
		t.Fatalf("got %d", w.Code)
	}
}

func TestRoutesWithoutStore(t *testing.T) {
	s := New(Options{DataDir: t.TempDir()})
	r := s.Router()
	if w := get(r, "/api/runs"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("runs without store = %d", w.Code)
	}
	body, ctype := multipartBody(t, "s.txt", scenario.Sample)
	if w, _ := doConvert(t, r, body, ctype); w.Code != http.StatusOK {
		t.Fatalf("convert without store = %d", w.Code)
	}
}
