/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// isolate points the config path at a temp dir and installs the in-memory keyring.
func isolate(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, p)
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	return p
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	isolate(t)
	cfg, key, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty api key, got %q", key)
	}
	if cfg.Enricher.Model != "gpt-4.1-mini" || cfg.Enricher.Temperature != 0.1 {
		t.Fatalf("unexpected enricher defaults: %#v", cfg.Enricher)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestEnvOverridesAddr(t *testing.T) {
	isolate(t)
	t.Setenv(EnvAddr, "127.0.0.1:9999")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Server.Addr, "127.0.0.1:9999"; got != want {
		t.Fatalf("Server.Addr = %q, want %q", got, want)
	}
	if name, ok := EnvOverrideFor("server.addr"); !ok || name != EnvAddr {
		t.Fatalf("EnvOverrideFor(server.addr) = %q, %v", name, ok)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestEnvOverridesInvalidValue(t *testing.T) {
	isolate(t)
	t.Setenv(EnvEnricherTimeoutMs, "soon")
	if _, _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestEnvOverridesExportFormats(t *testing.T) {
	isolate(t)
	t.Setenv(EnvExportFormats, " CSV, drawio ,,pdf")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if strings.Join(cfg.Export.Formats, "|") != "csv|drawio|pdf" {
		t.Fatalf("formats = %v", cfg.Export.Formats)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/scv.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/scv.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeParserAndExportSwitches(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	if err := yaml.Unmarshal([]byte("parser:\n  successor_lines: true\nexport:\n  scene_sourced_choice_edges: true\n"), &src); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	mergeInto(&dst, &src)
	if !dst.Parser.SuccessorLines || !dst.Export.SceneSourcedChoiceEdges {
		t.Fatalf("switches not merged: %#v %#v", dst.Parser, dst.Export)
	}
	if Defaults().Parser.SuccessorLines {
		t.Fatalf("successor lines must be off by default")
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/scv.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/scv.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveAndLoadRoundTripWithKeyring(t *testing.T) {
	p := isolate(t)
	cfg := Defaults()
	cfg.Enricher.Enabled = false
	cfg.Enricher.Model = "local-model"
	cfg.Storage.DataDir = "/srv/scv"
	if err := Save(cfg, "sk-test"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	got, key, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if key != "sk-test" {
		t.Fatalf("api key from keyring = %q", key)
	}
	if got.Enricher.Enabled || got.Enricher.Model != "local-model" || got.Storage.DataDir != "/srv/scv" {
		t.Fatalf("file values not loaded: %#v", got)
	}
	if err := DeleteAPIKey(); err != nil {
		t.Fatalf("DeleteAPIKey() error: %v", err)
	}
	if err := DeleteAPIKey(); err != nil {
		t.Fatalf("second DeleteAPIKey() should be a no-op: %v", err)
	}
}

func TestEnvAPIKeyWinsOverKeyring(t *testing.T) {
	isolate(t)
	if err := Save(Defaults(), "from-keyring"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv(EnvOpenAIAPIKey, "from-env")
	_, key, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if key != "from-env" {
		t.Fatalf("api key = %q, want from-env", key)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}

func TestEnricherTimeoutFallback(t *testing.T) {
	if got := (EnricherConfig{}).Timeout(); got != 30*time.Second {
		t.Fatalf("Timeout() = %v", got)
	}
	if got := (EnricherConfig{TimeoutMs: 1500}).Timeout(); got != 1500*time.Millisecond {
		t.Fatalf("Timeout() = %v", got)
	}
}
