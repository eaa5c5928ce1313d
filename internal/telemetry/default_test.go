/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scenarioconv/internal/config"
	"scenarioconv/internal/scenario"
)

// resetDefault clears the package default client for the duration of a test.
func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = nil
	defaultMu.Unlock()
	t.Cleanup(func() {
		defaultMu.Lock()
		cur := defaultClient
		defaultClient = prev
		defaultMu.Unlock()
		if cur != nil && cur != prev {
			cur.Close()
		}
	})
}

func TestDefaultClientCreatedLazily(t *testing.T) {
	resetDefault(t)
	t.Setenv("SCV_TELEMETRY_OPT_IN", "")
	t.Setenv("SCV_TELEMETRY_ENDPOINT", "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		Conversion(scenario.Stats{Scenes: 1}, false, time.Millisecond)
		UploadCrash([]byte("ignored"))
		Flush(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("default client initialization blocked")
	}
	if Enabled() {
		t.Fatalf("default client from empty env must be disabled")
	}
}

func TestNewDefaultReplacesLazyClient(t *testing.T) {
	resetDefault(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	InitDefault()
	if Enabled() {
		t.Fatalf("lazy client should be disabled without env")
	}
	NewDefault(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	if !Enabled() {
		t.Fatalf("installed client should be enabled")
	}
	Conversion(scenario.Stats{Scenes: 2, Dialogues: 5}, true, 3*time.Millisecond)
	Flush(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&hits) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&hits) == 0 {
		t.Fatalf("expected the conversion event to reach the installed client")
	}
}

func TestDefaultClientConcurrentAccess(t *testing.T) {
	resetDefault(t)
	cfg := Config{Timeout: 50 * time.Millisecond}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); NewDefault(cfg) }()
		go func() {
			defer wg.Done()
			Event("noop", nil)
			Flush(context.Background())
		}()
	}
	wg.Wait()
}

func TestFlushWithoutDefaultClient(t *testing.T) {
	resetDefault(t)
	Flush(context.Background())
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient != nil {
		t.Fatalf("Flush must not create a client")
	}
}

func TestClientDisabledOrUnnamedSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	off := New(FromConfig(config.GeneralConfig{TelemetryEndpoint: srv.URL}))
	defer off.Close()
	off.Event("conversion", ConversionProps(scenario.Stats{}, false, 0))
	off.UploadCrash([]byte("ignored"))

	on := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer on.Close()
	on.Event("", nil)
	on.Flush(context.Background())
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestConversionPropsCarryCountsOnly(t *testing.T) {
	props := ConversionProps(scenario.Stats{Scenes: 4, Dialogues: 9, Choices: 2, Characters: 3}, true, 1500*time.Microsecond)
	b, err := json.Marshal(props)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	want := map[string]any{"scenes": 4.0, "dialogues": 9.0, "choices": 2.0, "characters": 3.0, "enriched": true, "ms": 1.0}
	if len(m) != len(want) {
		t.Fatalf("unexpected keys: %v", m)
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s = %v, want %v", k, m[k], v)
		}
	}
}

func TestSendFailuresAreSwallowed(t *testing.T) {
	var crashes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		atomic.AddInt32(&crashes, 1)
	}))
	defer srv.Close()
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     srv.URL,
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.Event("conversion", map[string]any{"scenes": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("report"))
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&crashes) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&crashes) == 0 {
		t.Fatalf("crash upload should proceed after an event send failure")
	}
}
