/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model structures for VisageVault.
// The vault database is the source of truth; these types mirror its rows
// and the projections used by the indexing pipeline and the UI.

// Photo represents one file on disk known to the library. The filepath is the
// natural identity; FileHash, when set, is a content fingerprint used to
// recognize moved or renamed files.
type Photo struct {
	ID       int64  `json:"id"`
	Filepath string `json:"filepath"`
	FileHash string `json:"fileHash,omitempty"`
	Year     string `json:"year,omitempty"`
	Month    string `json:"month,omitempty"`
}

// PhotoDate is the capture-date bucket of a photo. Year and Month are
// independent nullable strings; empty means not classified yet. No calendar
// validation happens at this layer.
type PhotoDate struct {
	Year  string `json:"year"`
	Month string `json:"month"`
}

// Zero reports whether neither component has been classified.
func (d PhotoDate) Zero() bool { return d.Year == "" && d.Month == "" }

// PhotoDateEntry is one element of a bulk discovery write.
type PhotoDateEntry struct {
	Filepath string
	Date     PhotoDate
}

// Face is a detected face region inside a photo. The encoding is an opaque
// feature vector produced by the recognition pipeline; Location is a
// serialized bounding-box descriptor in whatever convention the pipeline uses.
type Face struct {
	ID       int64  `json:"id"`
	PhotoID  int64  `json:"photoId"`
	Encoding []byte `json:"-"`
	Location string `json:"location,omitempty"`
}

// Person is a human-assigned identity label. Names are unique.
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FaceLabel associates a face with a person. The schema allows many-to-many;
// the application keeps at most one active assignment per face.
type FaceLabel struct {
	FaceID   int64 `json:"faceId"`
	PersonID int64 `json:"personId"`
}
