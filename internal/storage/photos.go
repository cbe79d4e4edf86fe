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

	"visagevault/internal/domain"
	applog "visagevault/internal/log"
)

// LoadAllPhotoDates returns the capture-date bucket of every known photo,
// keyed by filepath. The discovery pipeline uses this to skip files it has
// already classified. On a storage error the map is empty and the error is
// logged; callers must treat an empty map as possibly meaning a broken vault,
// not just an empty one.
func (v *Vault) LoadAllPhotoDates(ctx context.Context) map[string]domain.PhotoDate {
	l := applog.WithOperation(v.log, "load_all_photo_dates")
	out := map[string]domain.PhotoDate{}
	db, err := v.open()
	if err != nil {
		l.Error("open failed", slog.Any("err", err))
		return out
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT filepath, year, month FROM photos`)
	if err != nil {
		l.Error("query failed", slog.Any("err", err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var fp string
		var year, month sql.NullString
		if err := rows.Scan(&fp, &year, &month); err != nil {
			l.Error("scan failed", slog.Any("err", err))
			return map[string]domain.PhotoDate{}
		}
		out[fp] = domain.PhotoDate{Year: year.String, Month: month.String}
	}
	if err := rows.Err(); err != nil {
		l.Error("iterate failed", slog.Any("err", err))
		return map[string]domain.PhotoDate{}
	}
	return out
}

// GetPhotoDate returns the stored date bucket for one filepath. The bool
// distinguishes a missing row from a found row with an unclassified date;
// a non-nil error means the vault could not be read and the other results
// are meaningless.
func (v *Vault) GetPhotoDate(ctx context.Context, filepath string) (domain.PhotoDate, bool, error) {
	db, err := v.open()
	if err != nil {
		return domain.PhotoDate{}, false, err
	}
	defer db.Close()
	var year, month sql.NullString
	err = db.QueryRowContext(ctx, `SELECT year, month FROM photos WHERE filepath = ?`, filepath).
		Scan(&year, &month)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PhotoDate{}, false, nil
	}
	if err != nil {
		return domain.PhotoDate{}, false, fmt.Errorf("query photo date: %w", err)
	}
	return domain.PhotoDate{Year: year.String, Month: month.String}, true, nil
}

// BulkUpsertPhotos writes a batch of discovered photos in one transaction.
// Rows are keyed by the unique filepath: an existing row is fully replaced,
// which also clears any previously stored file_hash for that filepath. Either
// the whole batch commits or none of it does.
func (v *Vault) BulkUpsertPhotos(ctx context.Context, entries []domain.PhotoDateEntry) error {
	if len(entries) == 0 {
		return nil
	}
	l := applog.WithOperation(v.log, "bulk_upsert_photos").With(slog.Int("entries", len(entries)))
	db, err := v.open()
	if err != nil {
		l.Error("open failed", slog.Any("err", err))
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		l.Error("begin failed", slog.Any("err", err))
		return fmt.Errorf("begin tx: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO photos (filepath, year, month) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		l.Error("prepare failed", slog.Any("err", err))
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer ins.Close()
	for _, e := range entries {
		if _, err := ins.ExecContext(ctx, e.Filepath, nullable(e.Date.Year), nullable(e.Date.Month)); err != nil {
			_ = tx.Rollback()
			l.Error("upsert failed", slog.String("filepath", e.Filepath), slog.Any("err", err))
			return fmt.Errorf("upsert %s: %w", e.Filepath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		l.Error("commit failed", slog.Any("err", err))
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdatePhotoDate corrects the date bucket of a single photo, matched by
// filepath. An unknown filepath affects zero rows and is not an error.
func (v *Vault) UpdatePhotoDate(ctx context.Context, filepath, year, month string) error {
	db, err := v.open()
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `UPDATE photos SET year = ?, month = ? WHERE filepath = ?`,
		nullable(year), nullable(month), filepath); err != nil {
		applog.WithOperation(v.log, "update_photo_date").Error("update failed",
			slog.String("filepath", filepath), slog.Any("err", err))
		return fmt.Errorf("update photo date: %w", err)
	}
	return nil
}

// SetPhotoHash records the content fingerprint of a photo, matched by
// filepath. The vault enforces hash uniqueness across all photos.
func (v *Vault) SetPhotoHash(ctx context.Context, filepath, hash string) error {
	db, err := v.open()
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `UPDATE photos SET file_hash = ? WHERE filepath = ?`,
		nullable(hash), filepath); err != nil {
		return fmt.Errorf("set photo hash: %w", err)
	}
	return nil
}

// PhotoByFilepath returns the full photo row for a filepath.
func (v *Vault) PhotoByFilepath(ctx context.Context, filepath string) (domain.Photo, bool, error) {
	db, err := v.open()
	if err != nil {
		return domain.Photo{}, false, err
	}
	defer db.Close()
	var p domain.Photo
	var hash, year, month sql.NullString
	err = db.QueryRowContext(ctx, `SELECT id, filepath, file_hash, year, month FROM photos WHERE filepath = ?`, filepath).
		Scan(&p.ID, &p.Filepath, &hash, &year, &month)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Photo{}, false, nil
	}
	if err != nil {
		return domain.Photo{}, false, fmt.Errorf("query photo: %w", err)
	}
	p.FileHash, p.Year, p.Month = hash.String, year.String, month.String
	return p, true, nil
}

// Photos returns every catalog row ordered by filepath. The mirror push
// uses this to build its batch; unlike LoadAllPhotoDates it carries the
// file hash and surfaces errors.
func (v *Vault) Photos(ctx context.Context) ([]domain.Photo, error) {
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT id, filepath, file_hash, year, month FROM photos ORDER BY filepath`)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()
	var out []domain.Photo
	for rows.Next() {
		var p domain.Photo
		var hash, year, month sql.NullString
		if err := rows.Scan(&p.ID, &p.Filepath, &hash, &year, &month); err != nil {
			return nil, err
		}
		p.FileHash, p.Year, p.Month = hash.String, year.String, month.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// nullable maps "" to NULL so unclassified dates and absent hashes stay NULL
// in the database rather than becoming empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
