/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package settings persists the user-facing library settings as a single JSON
// document (settings.json) under an explicitly provided root directory.
// Every typed accessor is a whole-document read-modify-write: concurrent
// setters race and the last save wins. That is an accepted limitation for a
// single-user desktop tool, not a bug.
package settings

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	applog "visagevault/internal/log"
)

const FileName = "settings.json"

// Document keys. The on-disk shape is a flat JSON object with these keys;
// unknown keys are preserved across read-modify-write cycles.
const (
	KeyPhotoDirectory   = "photo_directory"
	KeyThumbnailSize    = "thumbnail_size"
	KeyDriveFolderID    = "drive_folder_id"
	KeySafePasswordHash = "safe_password_hash"
)

// DefaultThumbnailSize is returned by ThumbnailSize when the key is unset.
const DefaultThumbnailSize = 128

// Store owns the settings document under Root. The zero value is not usable;
// construct with New.
type Store struct {
	root string
	log  *slog.Logger

	// failClosed switches the error policy from log-and-degrade to
	// returning errors from every accessor.
	failClosed bool
}

// Option configures a Store.
type Option func(*Store)

// FailClosed makes load/save failures surface as errors instead of being
// logged and absorbed.
func FailClosed() Option { return func(s *Store) { s.failClosed = true } }

// New creates a Store rooted at dir. The directory is created on first save.
func New(dir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("settings root is required")
	}
	s := &Store{root: dir, log: applog.WithComponent("settings")}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Path returns the full path of the settings document.
func (s *Store) Path() string { return filepath.Join(s.root, FileName) }

// Load reads the whole document. A missing, unreadable, or corrupt file yields
// an empty document; the condition is logged but never fatal to the caller.
func (s *Store) Load() map[string]any {
	doc, err := s.LoadStrict()
	if err != nil {
		applog.WithOperation(s.log, "load").Warn("settings unreadable, using empty document",
			slog.String("path", s.Path()), slog.Any("err", err))
		return map[string]any{}
	}
	return doc
}

// LoadStrict is Load with the error surfaced. A file that does not exist yet
// is not an error; it yields an empty document.
func (s *Store) LoadStrict() (map[string]any, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Save persists the whole document, replacing the file atomically
// (temp file in the same directory, then rename). Under the default fail-open
// policy a write failure is logged and nil is returned; with FailClosed the
// error is returned.
func (s *Store) Save(doc map[string]any) error {
	err := s.save(doc)
	if err == nil {
		return nil
	}
	if s.failClosed {
		return err
	}
	applog.WithOperation(s.log, "save").Error("settings save failed",
		slog.String("path", s.Path()), slog.Any("err", err))
	return nil
}

func (s *Store) save(doc map[string]any) error {
	if doc == nil {
		doc = map[string]any{}
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')

	// Transactional write: to temp file in same directory, then rename over target
	temp := filepath.Join(s.root, fmt.Sprintf(".%s.tmp-%d-%d", FileName, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp settings: %w", err)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(s.Path()); err == nil {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(temp, s.Path()); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// MigrateLegacy moves a settings document from a legacy location into the
// store root, once. It is a no-op when the store already has a document or the
// legacy file does not exist. Intended to be called explicitly at startup by
// the composition root.
func (s *Store) MigrateLegacy(legacyPath string) error {
	if strings.TrimSpace(legacyPath) == "" {
		return nil
	}
	if _, err := os.Stat(s.Path()); err == nil {
		return nil // current document wins
	}
	b, err := os.ReadFile(legacyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read legacy settings: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		// Corrupt legacy file: leave it alone, start fresh.
		applog.WithOperation(s.log, "migrate_legacy").Warn("legacy settings corrupt, ignoring",
			slog.String("path", legacyPath), slog.Any("err", err))
		return nil
	}
	if err := s.save(doc); err != nil {
		return err
	}
	applog.WithOperation(s.log, "migrate_legacy").Info("migrated legacy settings",
		slog.String("from", legacyPath), slog.String("to", s.Path()))
	return nil
}

// --- Typed accessors ---

// PhotoDirectory returns the configured photo library root, or "" when unset.
func (s *Store) PhotoDirectory() (string, error) {
	doc, err := s.loadForGet()
	if err != nil {
		return "", err
	}
	v, _ := doc[KeyPhotoDirectory].(string)
	return v, nil
}

// SetPhotoDirectory stores the library root verbatim.
func (s *Store) SetPhotoDirectory(dir string) error {
	return s.setKey(KeyPhotoDirectory, dir)
}

// ThumbnailSize returns the preferred thumbnail edge length in pixels,
// defaulting to DefaultThumbnailSize.
func (s *Store) ThumbnailSize() (int, error) {
	doc, err := s.loadForGet()
	if err != nil {
		return DefaultThumbnailSize, err
	}
	switch v := doc[KeyThumbnailSize].(type) {
	case float64: // JSON numbers decode as float64
		return int(v), nil
	case int:
		return v, nil
	default:
		return DefaultThumbnailSize, nil
	}
}

// SetThumbnailSize stores the preferred thumbnail size.
func (s *Store) SetThumbnailSize(size int) error {
	return s.setKey(KeyThumbnailSize, size)
}

// DriveFolderID returns the opaque remote-folder identifier, or "" when unset.
// This layer never interprets the value.
func (s *Store) DriveFolderID() (string, error) {
	doc, err := s.loadForGet()
	if err != nil {
		return "", err
	}
	v, _ := doc[KeyDriveFolderID].(string)
	return v, nil
}

// SetDriveFolderID stores the opaque remote-folder identifier.
func (s *Store) SetDriveFolderID(id string) error {
	return s.setKey(KeyDriveFolderID, id)
}

// SetSafePassword stores the SHA-256 digest of the plaintext, hex encoded.
// The plaintext itself never reaches durable storage.
func (s *Store) SetSafePassword(plaintext string) error {
	sum := sha256.Sum256([]byte(plaintext))
	return s.setKey(KeySafePasswordHash, hex.EncodeToString(sum[:]))
}

// SafePasswordHash returns the stored digest, or "" when no password was set.
func (s *Store) SafePasswordHash() (string, error) {
	doc, err := s.loadForGet()
	if err != nil {
		return "", err
	}
	v, _ := doc[KeySafePasswordHash].(string)
	return v, nil
}

// VerifySafePassword reports whether plaintext matches the stored digest.
// It is false when no password was ever set. Only digests are compared, in
// constant time.
func (s *Store) VerifySafePassword(plaintext string) (bool, error) {
	stored, err := s.SafePasswordHash()
	if err != nil {
		return false, err
	}
	if stored == "" {
		return false, nil
	}
	sum := sha256.Sum256([]byte(plaintext))
	candidate := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1, nil
}

// loadForGet applies the error policy for getters: fail-open getters never
// see an error and read from an empty document instead.
func (s *Store) loadForGet() (map[string]any, error) {
	if s.failClosed {
		return s.LoadStrict()
	}
	return s.Load(), nil
}

func (s *Store) setKey(key string, value any) error {
	doc, err := s.loadForGet()
	if err != nil {
		return err
	}
	doc[key] = value
	return s.Save(doc)
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
