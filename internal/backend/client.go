/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP client for the catalog mirror API. The desktop app uses
// it behind the mirror.enabled config flag.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new mirror client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// ListPhotos returns the mirrored catalog, newest first.
func (c *Client) ListPhotos(ctx context.Context) ([]PhotoRecord, error) {
	var list []PhotoRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/catalog/photos", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListPeople returns the mirrored people list.
func (c *Client) ListPeople(ctx context.Context) ([]PersonRecord, error) {
	var list []PersonRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/catalog/people", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PushPhotos upserts a batch of catalog entries on the mirror.
func (c *Client) PushPhotos(ctx context.Context, batch []PhotoRecord) error {
	return c.doJSON(ctx, http.MethodPost, "/api/catalog/photos", batch, nil)
}
