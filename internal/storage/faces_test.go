/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"testing"

	"visagevault/internal/domain"
)

func addPhoto(t *testing.T, v *Vault, fp string) int64 {
	t.Helper()
	ctx := context.Background()
	err := v.BulkUpsertPhotos(ctx, []domain.PhotoDateEntry{
		{Filepath: fp, Date: domain.PhotoDate{Year: "2024", Month: "06"}},
	})
	if err != nil {
		t.Fatalf("upsert photo: %v", err)
	}
	p, ok, err := v.PhotoByFilepath(ctx, fp)
	if err != nil || !ok {
		t.Fatalf("photo lookup: ok=%v err=%v", ok, err)
	}
	return p.ID
}

func TestAddFaceAndList(t *testing.T) {
	v := openVault(t)
	ctx := context.Background()
	photoID := addPhoto(t, v, "/a/group.jpg")

	enc := []byte{0x01, 0x02, 0x03}
	id, err := v.AddFace(ctx, photoID, enc, "10,20,40,40")
	if err != nil {
		t.Fatalf("AddFace: %v", err)
	}
	if id == 0 {
		t.Fatal("AddFace returned zero id")
	}
	if _, err := v.AddFace(ctx, photoID, nil, ""); err == nil {
		t.Fatal("AddFace accepted empty encoding")
	}

	faces, err := v.FacesForPhoto(ctx, photoID)
	if err != nil {
		t.Fatalf("FacesForPhoto: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("face count = %d, want 1", len(faces))
	}
	if faces[0].PhotoID != photoID || !bytes.Equal(faces[0].Encoding, enc) || faces[0].Location != "10,20,40,40" {
		t.Fatalf("stored face = %+v", faces[0])
	}
}

func TestEnsurePersonIsIdempotent(t *testing.T) {
	v := openVault(t)
	ctx := context.Background()

	a, err := v.EnsurePerson(ctx, "Ada")
	if err != nil {
		t.Fatalf("EnsurePerson: %v", err)
	}
	b, err := v.EnsurePerson(ctx, "Ada")
	if err != nil {
		t.Fatalf("EnsurePerson again: %v", err)
	}
	if a != b {
		t.Fatalf("ids differ for same name: %d vs %d", a, b)
	}
	if _, err := v.EnsurePerson(ctx, ""); err == nil {
		t.Fatal("EnsurePerson accepted empty name")
	}

	if _, err := v.EnsurePerson(ctx, "Barbara"); err != nil {
		t.Fatalf("EnsurePerson: %v", err)
	}
	people, err := v.People(ctx)
	if err != nil {
		t.Fatalf("People: %v", err)
	}
	if len(people) != 2 || people[0].Name != "Ada" || people[1].Name != "Barbara" {
		t.Fatalf("people = %+v, want Ada then Barbara", people)
	}
}

func TestLabelFaceReplacesExisting(t *testing.T) {
	v := openVault(t)
	ctx := context.Background()
	photoID := addPhoto(t, v, "/a/one.jpg")
	faceID, err := v.AddFace(ctx, photoID, []byte{0xff}, "")
	if err != nil {
		t.Fatalf("AddFace: %v", err)
	}
	ada, _ := v.EnsurePerson(ctx, "Ada")
	bob, _ := v.EnsurePerson(ctx, "Bob")

	if err := v.LabelFace(ctx, faceID, ada); err != nil {
		t.Fatalf("LabelFace: %v", err)
	}
	if err := v.LabelFace(ctx, faceID, bob); err != nil {
		t.Fatalf("relabel: %v", err)
	}

	p, ok, err := v.PersonForFace(ctx, faceID)
	if err != nil || !ok {
		t.Fatalf("PersonForFace: ok=%v err=%v", ok, err)
	}
	if p.ID != bob {
		t.Fatalf("face labeled as %q, want Bob", p.Name)
	}
}

func TestUnlabelFace(t *testing.T) {
	v := openVault(t)
	ctx := context.Background()
	photoID := addPhoto(t, v, "/a/one.jpg")
	faceID, err := v.AddFace(ctx, photoID, []byte{0xaa}, "")
	if err != nil {
		t.Fatalf("AddFace: %v", err)
	}
	ada, _ := v.EnsurePerson(ctx, "Ada")

	if err := v.LabelFace(ctx, faceID, ada); err != nil {
		t.Fatalf("LabelFace: %v", err)
	}
	if err := v.UnlabelFace(ctx, faceID, ada); err != nil {
		t.Fatalf("UnlabelFace: %v", err)
	}
	if _, ok, err := v.PersonForFace(ctx, faceID); err != nil || ok {
		t.Fatalf("after unlabel: ok=%v err=%v, want no label", ok, err)
	}
	// People survive unlabeling.
	people, err := v.People(ctx)
	if err != nil || len(people) != 1 {
		t.Fatalf("people after unlabel = %v (err %v), want Ada kept", people, err)
	}
}

func TestPhotosForPerson(t *testing.T) {
	v := openVault(t)
	ctx := context.Background()

	p1 := addPhoto(t, v, "/a/1.jpg")
	p2 := addPhoto(t, v, "/a/2.jpg")
	ada, _ := v.EnsurePerson(ctx, "Ada")

	f1, _ := v.AddFace(ctx, p1, []byte{1}, "")
	f2, _ := v.AddFace(ctx, p1, []byte{2}, "")
	f3, _ := v.AddFace(ctx, p2, []byte{3}, "")
	for _, f := range []int64{f1, f2, f3} {
		if err := v.LabelFace(ctx, f, ada); err != nil {
			t.Fatalf("LabelFace: %v", err)
		}
	}

	paths, err := v.PhotosForPerson(ctx, ada)
	if err != nil {
		t.Fatalf("PhotosForPerson: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/a/1.jpg" || paths[1] != "/a/2.jpg" {
		t.Fatalf("paths = %v, want both photos once each", paths)
	}
}
