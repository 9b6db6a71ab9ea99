// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvLogJSON, "")

	var buf bytes.Buffer
	logger := New(Options{Level: "debug", JSON: true, Out: &buf})
	logger.Debug().Str("state", "OBJECT_A").Msg("transition")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["state"] != "OBJECT_A" || entry["message"] != "transition" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogJSON, "true")

	var buf bytes.Buffer
	logger := New(Options{Level: "debug", Out: &buf})
	logger.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at error level: %q", buf.String())
	}
	logger.Error().Msg("shown")
	if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("env JSON override ignored: %q", buf.String())
	}
}

func TestNew_SkipEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")

	var buf bytes.Buffer
	logger := New(Options{Level: "info", Out: &buf, SkipEnv: true})
	logger.Info().Msg("shown")
	if !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Errorf("SkipEnv did not keep the given level: %q", buf.String())
	}
}
