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
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the developer-facing application configuration persisted to a
// YAML file in the user scope. It covers ambient concerns (logging, optional
// catalog mirror, telemetry). User photo-library settings live in the
// settings package, not here. Environment variables are treated as read-only
// overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type MirrorConfig struct {
	BaseURL     string `yaml:"base_url"`
	Token       string `yaml:"token"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	Enabled     bool   `yaml:"enabled"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Mirror        MirrorConfig  `yaml:"mirror"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Mirror:        MirrorConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, TLSInsecure: false, Enabled: false},
		Logging:       LoggingConfig{Level: "info", Format: "console", File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvMirrorURL       = "VV_MIRROR_URL"
	EnvMirrorToken     = "VV_MIRROR_TOKEN"
	EnvMirrorTimeoutMs = "VV_MIRROR_TIMEOUT_MS"
	EnvMirrorTLSInsec  = "VV_TLS_INSECURE"
	EnvMirrorEnabled   = "VV_MIRROR_ENABLED"
	EnvTelemetryOptIn  = "VV_TELEMETRY_OPT_IN"
	EnvLogLevel        = "VV_LOG_LEVEL"
	EnvLogFormat       = "VV_LOG_FORMAT"
	EnvLogFile         = "VV_LOG_FILE"
)

// Path returns the per-user config file path.
func Path() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "VisageVault")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "VisageVault")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "visagevault")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := Path()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := Path()
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
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Mirror.BaseURL != "" {
		dst.Mirror.BaseURL = src.Mirror.BaseURL
	}
	if src.Mirror.Token != "" {
		dst.Mirror.Token = src.Mirror.Token
	}
	if src.Mirror.TimeoutMs != 0 {
		dst.Mirror.TimeoutMs = src.Mirror.TimeoutMs
	}
	dst.Mirror.TLSInsecure = src.Mirror.TLSInsecure
	dst.Mirror.Enabled = src.Mirror.Enabled
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvMirrorURL)); v != "" {
		cfg.Mirror.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMirrorToken)); v != "" {
		cfg.Mirror.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMirrorTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Mirror.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvMirrorTLSInsec)); v != "" {
		cfg.Mirror.TLSInsecure = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMirrorEnabled)); v != "" {
		cfg.Mirror.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	switch key {
	case "mirror.base_url":
		if os.Getenv(EnvMirrorURL) != "" {
			return EnvMirrorURL, true
		}
	case "mirror.token":
		if os.Getenv(EnvMirrorToken) != "" {
			return EnvMirrorToken, true
		}
	case "mirror.timeout_ms":
		if os.Getenv(EnvMirrorTimeoutMs) != "" {
			return EnvMirrorTimeoutMs, true
		}
	case "mirror.tls_insecure":
		if os.Getenv(EnvMirrorTLSInsec) != "" {
			return EnvMirrorTLSInsec, true
		}
	case "mirror.enabled":
		if os.Getenv(EnvMirrorEnabled) != "" {
			return EnvMirrorEnabled, true
		}
	case "general.telemetry_opt_in":
		if os.Getenv(EnvTelemetryOptIn) != "" {
			return EnvTelemetryOptIn, true
		}
	case "logging.level":
		if os.Getenv(EnvLogLevel) != "" {
			return EnvLogLevel, true
		}
	case "logging.format":
		if os.Getenv(EnvLogFormat) != "" {
			return EnvLogFormat, true
		}
	case "logging.file":
		if os.Getenv(EnvLogFile) != "" {
			return EnvLogFile, true
		}
	}
	return "", false
}
