/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "visagevault/internal/log"
	"visagevault/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	DBFileName = "visagevault.db"

	// schemaVersion tracks the vault schema. Bump when adding a migration
	// step in runMigrations.
	schemaVersion = 2
)

// Vault is a handle to the photo database. It holds only the file path and
// policy; connections are per-operation.
type Vault struct {
	path string
	log  *slog.Logger

	// failClosed makes Open return schema/migration errors instead of
	// logging them and handing back a best-effort handle.
	failClosed bool
}

// Option configures a Vault.
type Option func(*Vault)

// FailClosed aborts Open on schema or migration errors. The default is
// fail-open: errors are logged and the caller proceeds against whatever
// schema state exists, surfacing problems only through later queries.
func FailClosed() Option { return func(v *Vault) { v.failClosed = true } }

// DBPath returns the vault database path for a library root directory.
func DBPath(root string) string { return filepath.Join(root, DBFileName) }

// Open ensures the vault database exists at path, creates any missing tables,
// and applies pending migrations. The file and its parent directory are
// created on demand.
func Open(path string, opts ...Option) (*Vault, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("vault path is required")
	}
	v := &Vault{path: path, log: applog.WithComponent("vault")}
	for _, o := range opts {
		o(v)
	}
	l := applog.WithOperation(v.log, "open").With(slog.String("path", path))
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			l.Error("create vault dir failed", slog.Any("err", err))
			return nil, fmt.Errorf("create vault dir: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := v.ensureReady(ctx); err != nil {
		l.Error("vault schema not ready", slog.Any("err", err))
		if v.failClosed {
			return nil, err
		}
		// Fail-open: the handle is still returned; queries against the
		// partial schema will report their own errors.
		return v, nil
	}
	l.Info("vault ready")
	return v, nil
}

// Path returns the database file path.
func (v *Vault) Path() string { return v.path }

// open acquires a fresh connection for one operation. Callers must Close it
// on every exit path.
func (v *Vault) open() (*sql.DB, error) {
	// URI with busy timeout; forward slashes for the SQLite URI on Windows.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(v.path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// ensureReady creates tables, seeds the version row, and runs migrations.
// Every step is idempotent; running it on each startup is safe.
func (v *Vault) ensureReady(ctx context.Context) error {
	db, err := v.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		v.log.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureSchema(ctx, db); err != nil {
		return err
	}
	if err := ensureVersionRow(ctx, db); err != nil {
		return err
	}
	return runMigrations(ctx, db)
}

// ensureSchema creates the four vault tables if they do not exist. The photos
// definition already includes the month column; runMigrations covers
// databases created before it existed.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS photos (
			id        INTEGER PRIMARY KEY,
			filepath  TEXT    NOT NULL UNIQUE,
			file_hash TEXT    UNIQUE,
			year      TEXT,
			month     TEXT
		);`,

		`CREATE TABLE IF NOT EXISTS faces (
			id       INTEGER PRIMARY KEY,
			photo_id INTEGER NOT NULL,
			encoding BLOB    NOT NULL,
			location TEXT,
			FOREIGN KEY (photo_id) REFERENCES photos (id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_faces_photo ON faces(photo_id);`,

		`CREATE TABLE IF NOT EXISTS people (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);`,

		`CREATE TABLE IF NOT EXISTS face_labels (
			face_id   INTEGER NOT NULL,
			person_id INTEGER NOT NULL,
			PRIMARY KEY (face_id, person_id),
			FOREIGN KEY (face_id)   REFERENCES faces (id),
			FOREIGN KEY (person_id) REFERENCES people (id)
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure vault schema: %w", err)
		}
	}
	return nil
}

// ensureVersionRow creates the version bookkeeping table and seeds the
// single row. New rows start at 1 rather than schemaVersion: migration steps
// re-detect structure before altering, so replaying them against a fresh
// database is a no-op, while a pre-versioning database (no version table)
// gets every step it is missing.
func ensureVersionRow(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS version (
		id          INTEGER PRIMARY KEY CHECK(id=1),
		schema      INTEGER NOT NULL,
		app         TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("create version table: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
// Each step inspects the actual structure and applies only what is missing,
// so a second run produces an identical schema. Steps never drop columns or
// tables and never rewrite data.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// photos.month did not exist in the first release.
			if err := ensureColumn(ctx, db, "photos", "month", "ALTER TABLE photos ADD COLUMN month TEXT"); err != nil {
				return fmt.Errorf("migration %d: %w", next, err)
			}
		}
		if _, err := db.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		cur = next
	}
	return nil
}

// ensureColumn adds a column via alterStmt only when table_info shows it is
// absent.
func ensureColumn(ctx context.Context, db *sql.DB, table, column, alterStmt string) error {
	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return err
	}
	if cols[column] {
		return nil
	}
	applog.WithComponent("vault").Info("adding column",
		slog.String("table", table), slog.String("column", column))
	if _, err := db.ExecContext(ctx, alterStmt); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// tableColumns returns the current column set of a table via PRAGMA table_info.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Check verifies database integrity: PRAGMA quick_check plus a probe of the
// photos table. It returns nil when the vault looks healthy.
func (v *Vault) Check(ctx context.Context) error {
	db, err := v.open()
	if err != nil {
		return err
	}
	defer db.Close()
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.Contains(strings.ToLower(chk), "ok") {
		return fmt.Errorf("quick_check reported: %s", chk)
	}
	if _, err := db.ExecContext(ctx, `SELECT 1 FROM photos LIMIT 1;`); err != nil {
		return fmt.Errorf("probe photos: %w", err)
	}
	return nil
}
