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
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func openVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(DBPath(t.TempDir()), FailClosed())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return v
}

// rawOpen connects to the database file directly so tests can inspect or
// seed state outside the Vault API.
func rawOpen(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path)))
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCreatesFileAndVersion(t *testing.T) {
	path := DBPath(filepath.Join(t.TempDir(), "library"))
	v, err := Open(path, FailClosed())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	db := rawOpen(t, v.Path())
	var got int
	if err := db.QueryRow(`SELECT schema FROM version WHERE id = 1`).Scan(&got); err != nil {
		t.Fatalf("read version row: %v", err)
	}
	if got != schemaVersion {
		t.Fatalf("schema version = %d, want %d", got, schemaVersion)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := DBPath(t.TempDir())
	for i := 0; i < 3; i++ {
		if _, err := Open(path, FailClosed()); err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
	}
	db := rawOpen(t, path)
	cols := columnNames(t, db, "photos")
	if countOf(cols, "month") != 1 {
		t.Fatalf("photos has %d month columns, want 1: %v", countOf(cols, "month"), cols)
	}
}

func TestCheckHealthyVault(t *testing.T) {
	v := openVault(t)
	if err := v.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestOpenFailOpenOnCorruptDatabase(t *testing.T) {
	path := DBPath(t.TempDir())
	if err := os.WriteFile(path, []byte("this is not a sqlite database"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	// Default policy: schema failures are logged, the handle still comes back.
	v, err := Open(path)
	if err != nil {
		t.Fatalf("fail-open Open returned error: %v", err)
	}
	if v == nil {
		t.Fatal("fail-open Open returned nil vault")
	}

	ctx := context.Background()
	if all := v.LoadAllPhotoDates(ctx); len(all) != 0 {
		t.Fatalf("dates from corrupt vault = %v, want empty map", all)
	}
	if _, _, err := v.GetPhotoDate(ctx, "/a/1.jpg"); err == nil {
		t.Fatal("GetPhotoDate on corrupt vault returned nil error")
	}

	// With FailClosed the same file aborts Open.
	if _, err := Open(path, FailClosed()); err == nil {
		t.Fatal("FailClosed Open on corrupt file returned nil error")
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func columnNames(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		t.Fatalf("table_info(%s): %v", table, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scan table_info: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func countOf(names []string, want string) int {
	n := 0
	for _, s := range names {
		if s == want {
			n++
		}
	}
	return n
}
