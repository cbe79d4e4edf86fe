/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignAndVerifyToken(t *testing.T) {
	tok, err := signToken("s3cret", "laptop", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	sub, err := verifyToken("s3cret", tok)
	if err != nil {
		t.Fatalf("verifyToken: %v", err)
	}
	if sub != "laptop" {
		t.Fatalf("subject = %q, want laptop", sub)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	tok, err := signToken("s3cret", "laptop", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := verifyToken("other", tok); err == nil {
		t.Fatal("token verified with wrong secret")
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	tok, err := signToken("s3cret", "laptop", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := verifyToken("s3cret", tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "justone", "a.b.c", "!!!.###"} {
		if _, err := verifyToken("s3cret", tok); err == nil {
			t.Fatalf("garbage token %q accepted", tok)
		}
	}
}

func TestWithAuth(t *testing.T) {
	const secret = "s3cret"
	var gotSub string
	h := withAuth(secret, func(w http.ResponseWriter, r *http.Request, subject string) {
		gotSub = subject
		w.WriteHeader(http.StatusOK)
	})

	// No header.
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/photos", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status %d, want 401", rec.Code)
	}

	// Bad token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/catalog/photos", nil)
	req.Header.Set("Authorization", "Bearer nope")
	h(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d, want 401", rec.Code)
	}

	// Valid token.
	tok, err := signToken(secret, "desk", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/catalog/photos", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d, want 200", rec.Code)
	}
	if gotSub != "desk" {
		t.Fatalf("subject = %q, want desk", gotSub)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("0001_init.sql")
	if err != nil {
		t.Fatalf("parseVersion: %v", err)
	}
	if v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatal("expected error for unversioned name")
	}
}
