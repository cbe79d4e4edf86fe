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

	"visagevault/internal/domain"
)

// AddFace records a detected face for a photo and returns its id. The
// encoding blob is opaque to the vault; it comes from the recognition
// pipeline as-is.
func (v *Vault) AddFace(ctx context.Context, photoID int64, encoding []byte, location string) (int64, error) {
	if len(encoding) == 0 {
		return 0, errors.New("face encoding is required")
	}
	db, err := v.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()
	res, err := db.ExecContext(ctx, `INSERT INTO faces (photo_id, encoding, location) VALUES (?, ?, ?)`,
		photoID, encoding, nullable(location))
	if err != nil {
		return 0, fmt.Errorf("insert face: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("face id: %w", err)
	}
	return id, nil
}

// FacesForPhoto returns every face detected in a photo.
func (v *Vault) FacesForPhoto(ctx context.Context, photoID int64) ([]domain.Face, error) {
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT id, photo_id, encoding, location FROM faces WHERE photo_id = ? ORDER BY id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()
	var out []domain.Face
	for rows.Next() {
		var f domain.Face
		var loc sql.NullString
		if err := rows.Scan(&f.ID, &f.PhotoID, &f.Encoding, &loc); err != nil {
			return nil, err
		}
		f.Location = loc.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// EnsurePerson returns the id of the person with the given name, inserting a
// new row when the name is unknown. Names are unique.
func (v *Vault) EnsurePerson(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, errors.New("person name is required")
	}
	db, err := v.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO people (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("insert person: %w", err)
	}
	var id int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM people WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("query person: %w", err)
	}
	return id, nil
}

// People returns all known people ordered by name.
func (v *Vault) People(ctx context.Context) ([]domain.Person, error) {
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM people ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()
	var out []domain.Person
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LabelFace assigns a person to a face. The schema permits many labels per
// face but the application expects at most one active assignment, so any
// previous label for the face is replaced in the same transaction.
func (v *Vault) LabelFace(ctx context.Context, faceID, personID int64) error {
	db, err := v.open()
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM face_labels WHERE face_id = ?`, faceID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear face label: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO face_labels (face_id, person_id) VALUES (?, ?)`, faceID, personID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert face label: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UnlabelFace removes the association between a face and a person. Faces and
// people themselves are never deleted by this layer.
func (v *Vault) UnlabelFace(ctx context.Context, faceID, personID int64) error {
	db, err := v.open()
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `DELETE FROM face_labels WHERE face_id = ? AND person_id = ?`, faceID, personID); err != nil {
		return fmt.Errorf("delete face label: %w", err)
	}
	return nil
}

// PersonForFace returns the person assigned to a face, if any.
func (v *Vault) PersonForFace(ctx context.Context, faceID int64) (domain.Person, bool, error) {
	db, err := v.open()
	if err != nil {
		return domain.Person{}, false, err
	}
	defer db.Close()
	var p domain.Person
	err = db.QueryRowContext(ctx, `SELECT p.id, p.name FROM people p
		JOIN face_labels fl ON fl.person_id = p.id
		WHERE fl.face_id = ?`, faceID).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Person{}, false, nil
	}
	if err != nil {
		return domain.Person{}, false, fmt.Errorf("query face label: %w", err)
	}
	return p, true, nil
}

// PhotosForPerson returns the distinct filepaths containing a labeled face of
// the given person, ordered by filepath.
func (v *Vault) PhotosForPerson(ctx context.Context, personID int64) ([]string, error) {
	db, err := v.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT ph.filepath FROM photos ph
		JOIN faces f ON f.photo_id = ph.id
		JOIN face_labels fl ON fl.face_id = f.id
		WHERE fl.person_id = ?
		ORDER BY ph.filepath`, personID)
	if err != nil {
		return nil, fmt.Errorf("query photos for person: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
