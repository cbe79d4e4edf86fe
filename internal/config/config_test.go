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
	"testing"
)

func TestEnvOverridesMirrorURL(t *testing.T) {
	t.Setenv(EnvMirrorURL, "https://example.test:8443")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Mirror.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Mirror.BaseURL = %q, want %q", got, want)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestEnvOverridesMirrorToken(t *testing.T) {
	t.Setenv(EnvMirrorToken, "tok-from-env")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Mirror.Token, "tok-from-env"; got != want {
		t.Fatalf("Mirror.Token = %q, want %q", got, want)
	}
}

func TestMergeIncludesMirrorEnabled(t *testing.T) {
	// Given a file config that enables the mirror, mergeInto should carry it through
	dst := Defaults()
	src := Defaults()
	src.Mirror.Enabled = true
	mergeInto(&dst, &src)
	if !dst.Mirror.Enabled {
		t.Fatalf("Mirror.Enabled was not merged from file config")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.File = "C:/tmp/vv.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || dst.Logging.File != "C:/tmp/vv.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogFile, "X:/vv.log")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || cfg.Logging.File != "X:/vv.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestEnvOverrideFor(t *testing.T) {
	t.Setenv(EnvMirrorTimeoutMs, "2500")
	name, ok := EnvOverrideFor("mirror.timeout_ms")
	if !ok || name != EnvMirrorTimeoutMs {
		t.Fatalf("EnvOverrideFor mismatch: %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("no.such.key"); ok {
		t.Fatalf("unexpected override for unknown key")
	}
}
