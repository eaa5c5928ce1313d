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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type EnricherConfig struct {
	Enabled     bool    `yaml:"enabled"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMs   int     `yaml:"timeout_ms"`
	// The API key is not stored on disk; it lives in the OS keychain or the environment.
}

type ExportConfig struct {
	Formats []string `yaml:"formats"`
	// SceneSourcedChoiceEdges draws resolved choice edges from the scene node
	// instead of the choice node.
	SceneSourcedChoiceEdges bool `yaml:"scene_sourced_choice_edges"`
}

type ParserConfig struct {
	// SuccessorLines reads a line holding only "→ Title" as the scene's successor.
	SuccessorLines bool `yaml:"successor_lines"`
}

type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// KeepRuns bounds the run history kept by the web server; a negative value keeps everything.
	KeepRuns int `yaml:"keep_runs"`
}

type GeneralConfig struct {
	TelemetryOptIn    bool   `yaml:"telemetry_opt_in"`
	TelemetryEndpoint string `yaml:"telemetry_endpoint"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	General       GeneralConfig  `yaml:"general"`
	Server        ServerConfig   `yaml:"server"`
	Enricher      EnricherConfig `yaml:"enricher"`
	Parser        ParserConfig   `yaml:"parser"`
	Export        ExportConfig   `yaml:"export"`
	Storage       StorageConfig  `yaml:"storage"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Server:        ServerConfig{Addr: ":8080", MaxUploadBytes: 2 << 20},
		Enricher: EnricherConfig{
			Enabled:     true,
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4.1-mini",
			Temperature: 0.1,
			TimeoutMs:   30000,
		},
		Export:  ExportConfig{Formats: []string{"csv", "drawio", "schema"}},
		Storage: StorageConfig{DataDir: "data", KeepRuns: 200},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath        = "SCV_CONFIG"
	EnvAddr              = "SCV_ADDR"
	EnvMaxUploadBytes    = "SCV_MAX_UPLOAD_BYTES"
	EnvEnricherEnabled   = "SCV_LLM_ENABLED"
	EnvEnricherURL       = "SCV_LLM_BASE_URL"
	EnvEnricherModel     = "SCV_LLM_MODEL"
	EnvEnricherTimeoutMs = "SCV_LLM_TIMEOUT_MS"
	EnvAPIKey            = "SCV_LLM_API_KEY"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvExportFormats     = "SCV_EXPORT_FORMATS"
	EnvDataDir           = "SCV_DATA_DIR"
	EnvPostgresDSN       = "SCV_PG_DSN"
	EnvTelemetryOptIn    = "SCV_TELEMETRY_OPT_IN"
	EnvTelemetryEndpoint = "SCV_TELEMETRY_ENDPOINT"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SCV_LOG_LEVEL"
	EnvLogFormat = "SCV_LOG_FORMAT"
	EnvLogSource = "SCV_LOG_SOURCE"
	EnvLogFile   = "SCV_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "ScenarioConv"
	keyringAPIKey  = "llm_api_key"
)

// envOverrides mirrors the overridable fields. Nil pointers mean "not set".
type envOverrides struct {
	Addr              *string  `env:"SCV_ADDR"`
	MaxUploadBytes    *int64   `env:"SCV_MAX_UPLOAD_BYTES"`
	EnricherEnabled   *bool    `env:"SCV_LLM_ENABLED"`
	EnricherURL       *string  `env:"SCV_LLM_BASE_URL"`
	EnricherModel     *string  `env:"SCV_LLM_MODEL"`
	EnricherTimeoutMs *int     `env:"SCV_LLM_TIMEOUT_MS"`
	ExportFormats     []string `env:"SCV_EXPORT_FORMATS" envSeparator:","`
	DataDir           *string  `env:"SCV_DATA_DIR"`
	PostgresDSN       *string  `env:"SCV_PG_DSN"`
	TelemetryOptIn    *bool    `env:"SCV_TELEMETRY_OPT_IN"`
	TelemetryEndpoint *string  `env:"SCV_TELEMETRY_ENDPOINT"`
	LogLevel          *string  `env:"SCV_LOG_LEVEL"`
	LogFormat         *string  `env:"SCV_LOG_FORMAT"`
	LogSource         *bool    `env:"SCV_LOG_SOURCE"`
	LogFile           *string  `env:"SCV_LOG_FILE"`
}

// ConfigPath returns the per-user config file path. SCV_CONFIG takes precedence.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ScenarioConv")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ScenarioConv")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "scenarioconv")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads a .env file from the working directory (if present), the user config file
// (if present), applies defaults and merges environment overrides. The enricher API key is
// returned separately: environment first, then the OS keyring.
func Load() (AppConfig, string, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, "", err
	}
	return cfg, apiKey(), nil
}

func apiKey() string {
	for _, k := range []string{EnvAPIKey, EnvOpenAIAPIKey} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	key, _ := tokenStore.Get(keyringService, keyringAPIKey)
	return key
}

// Save writes the user config YAML and persists the API key into the OS keyring (if non-empty).
func Save(cfg AppConfig, key string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if key != "" {
		if err := tokenStore.Set(keyringService, keyringAPIKey, key); err != nil {
			return fmt.Errorf("store api key: %w", err)
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.General.TelemetryEndpoint) != "" {
		dst.General.TelemetryEndpoint = strings.TrimSpace(src.General.TelemetryEndpoint)
	}
	if strings.TrimSpace(src.Server.Addr) != "" {
		dst.Server.Addr = strings.TrimSpace(src.Server.Addr)
	}
	if src.Server.MaxUploadBytes > 0 {
		dst.Server.MaxUploadBytes = src.Server.MaxUploadBytes
	}
	dst.Enricher.Enabled = src.Enricher.Enabled
	if src.Enricher.BaseURL != "" {
		dst.Enricher.BaseURL = src.Enricher.BaseURL
	}
	if src.Enricher.Model != "" {
		dst.Enricher.Model = src.Enricher.Model
	}
	if src.Enricher.Temperature != 0 {
		dst.Enricher.Temperature = src.Enricher.Temperature
	}
	if src.Enricher.TimeoutMs != 0 {
		dst.Enricher.TimeoutMs = src.Enricher.TimeoutMs
	}
	if len(src.Export.Formats) > 0 {
		dst.Export.Formats = normalizeList(src.Export.Formats)
	}
	dst.Export.SceneSourcedChoiceEdges = src.Export.SceneSourcedChoiceEdges
	dst.Parser.SuccessorLines = src.Parser.SuccessorLines
	if strings.TrimSpace(src.Storage.DataDir) != "" {
		dst.Storage.DataDir = strings.TrimSpace(src.Storage.DataDir)
	}
	if strings.TrimSpace(src.Storage.PostgresDSN) != "" {
		dst.Storage.PostgresDSN = strings.TrimSpace(src.Storage.PostgresDSN)
	}
	if src.Storage.KeepRuns != 0 {
		dst.Storage.KeepRuns = src.Storage.KeepRuns
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.Addr != nil && strings.TrimSpace(*o.Addr) != "" {
		cfg.Server.Addr = strings.TrimSpace(*o.Addr)
	}
	if o.MaxUploadBytes != nil && *o.MaxUploadBytes > 0 {
		cfg.Server.MaxUploadBytes = *o.MaxUploadBytes
	}
	if o.EnricherEnabled != nil {
		cfg.Enricher.Enabled = *o.EnricherEnabled
	}
	if o.EnricherURL != nil && *o.EnricherURL != "" {
		cfg.Enricher.BaseURL = *o.EnricherURL
	}
	if o.EnricherModel != nil && *o.EnricherModel != "" {
		cfg.Enricher.Model = *o.EnricherModel
	}
	if o.EnricherTimeoutMs != nil {
		cfg.Enricher.TimeoutMs = *o.EnricherTimeoutMs
	}
	if len(o.ExportFormats) > 0 {
		cfg.Export.Formats = normalizeList(o.ExportFormats)
	}
	if o.DataDir != nil && *o.DataDir != "" {
		cfg.Storage.DataDir = *o.DataDir
	}
	if o.PostgresDSN != nil {
		cfg.Storage.PostgresDSN = *o.PostgresDSN
	}
	if o.TelemetryOptIn != nil {
		cfg.General.TelemetryOptIn = *o.TelemetryOptIn
	}
	if o.TelemetryEndpoint != nil {
		cfg.General.TelemetryEndpoint = *o.TelemetryEndpoint
	}
	// logging overrides
	if o.LogLevel != nil && *o.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(*o.LogLevel)
	}
	if o.LogFormat != nil && *o.LogFormat != "" {
		cfg.Logging.Format = strings.ToLower(*o.LogFormat)
	}
	if o.LogSource != nil {
		cfg.Logging.Source = *o.LogSource
	}
	if o.LogFile != nil && *o.LogFile != "" {
		cfg.Logging.File = *o.LogFile
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"server.addr":                EnvAddr,
		"server.max_upload_bytes":    EnvMaxUploadBytes,
		"enricher.enabled":           EnvEnricherEnabled,
		"enricher.base_url":          EnvEnricherURL,
		"enricher.model":             EnvEnricherModel,
		"enricher.timeout_ms":        EnvEnricherTimeoutMs,
		"export.formats":             EnvExportFormats,
		"storage.data_dir":           EnvDataDir,
		"storage.postgres_dsn":       EnvPostgresDSN,
		"general.telemetry_opt_in":   EnvTelemetryOptIn,
		"general.telemetry_endpoint": EnvTelemetryEndpoint,
		"logging.level":              EnvLogLevel,
		"logging.format":             EnvLogFormat,
		"logging.source":             EnvLogSource,
		"logging.file":               EnvLogFile,
	}
	name, ok := names[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the enricher timeout, falling back to the default when unset.
func (e EnricherConfig) Timeout() time.Duration {
	if e.TimeoutMs <= 0 {
		return time.Duration(Defaults().Enricher.TimeoutMs) * time.Millisecond
	}
	return time.Duration(e.TimeoutMs) * time.Millisecond
}
