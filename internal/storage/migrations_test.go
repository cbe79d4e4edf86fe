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
	"testing"
)

// seedLegacyVault writes a pre-versioning database: photos without the month
// column and no version table, the shape early releases left behind.
func seedLegacyVault(t *testing.T, path string) {
	t.Helper()
	db := rawOpen(t, path)
	stmts := []string{
		`CREATE TABLE photos (
			id        INTEGER PRIMARY KEY,
			filepath  TEXT NOT NULL UNIQUE,
			file_hash TEXT UNIQUE,
			year      TEXT
		)`,
		`CREATE TABLE faces (
			id       INTEGER PRIMARY KEY,
			photo_id INTEGER NOT NULL,
			encoding BLOB NOT NULL,
			location TEXT,
			FOREIGN KEY (photo_id) REFERENCES photos(id)
		)`,
		`CREATE TABLE people (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`INSERT INTO photos (filepath, year) VALUES ('/pics/beach.jpg', '2021')`,
		`INSERT INTO photos (filepath, year) VALUES ('/pics/hike.jpg', '2022')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed legacy vault: %v", err)
		}
	}
}

func TestMigrateLegacyAddsMonthColumn(t *testing.T) {
	path := DBPath(t.TempDir())
	seedLegacyVault(t, path)

	v, err := Open(path, FailClosed())
	if err != nil {
		t.Fatalf("Open legacy vault: %v", err)
	}

	db := rawOpen(t, path)
	cols := columnNames(t, db, "photos")
	if countOf(cols, "month") != 1 {
		t.Fatalf("photos has %d month columns after migration, want 1: %v", countOf(cols, "month"), cols)
	}
	var got int
	if err := db.QueryRow(`SELECT schema FROM version WHERE id = 1`).Scan(&got); err != nil {
		t.Fatalf("read version row: %v", err)
	}
	if got != schemaVersion {
		t.Fatalf("schema version = %d, want %d", got, schemaVersion)
	}

	// Existing rows survive with a NULL month reported as empty.
	date, ok, err := v.GetPhotoDate(context.Background(), "/pics/beach.jpg")
	if err != nil || !ok {
		t.Fatalf("GetPhotoDate after migration: ok=%v err=%v", ok, err)
	}
	if date.Year != "2021" || date.Month != "" {
		t.Fatalf("migrated row = %+v, want year 2021 and empty month", date)
	}
}

func TestMigrateLegacyTwiceIsHarmless(t *testing.T) {
	path := DBPath(t.TempDir())
	seedLegacyVault(t, path)

	for i := 0; i < 2; i++ {
		if _, err := Open(path, FailClosed()); err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
	}
	db := rawOpen(t, path)
	cols := columnNames(t, db, "photos")
	if countOf(cols, "month") != 1 {
		t.Fatalf("photos has %d month columns, want 1: %v", countOf(cols, "month"), cols)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM photos`).Scan(&n); err != nil {
		t.Fatalf("count photos: %v", err)
	}
	if n != 2 {
		t.Fatalf("photo count after repeated opens = %d, want 2", n)
	}
}

func TestMigrationCreatesMissingLabelTable(t *testing.T) {
	path := DBPath(t.TempDir())
	seedLegacyVault(t, path)

	if _, err := Open(path, FailClosed()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	db := rawOpen(t, path)
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM face_labels`).Scan(&n); err != nil {
		t.Fatalf("face_labels missing after open: %v", err)
	}
	if n != 0 {
		t.Fatalf("face_labels row count = %d, want 0", n)
	}
}
