/***************************************************************
 *
 * Copyright (C) 2025, StudyShelf Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

// Package storage implements the client for the managed object store that
// holds intake material files before they are published.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/studyshelf/studyshelf/config"
	"github.com/studyshelf/studyshelf/param"
)

type Client struct {
	BaseUrl    string
	ServiceKey string
	Bucket     string
	httpClient *http.Client
}

// NewClient builds an object-store client from the Storage.* parameters.
func NewClient() *Client {
	return &Client{
		BaseUrl:    strings.TrimSuffix(param.Storage_Url.GetString(), "/"),
		ServiceKey: param.Storage_ServiceKey.GetString(),
		Bucket:     param.Storage_Bucket.GetString(),
		httpClient: &http.Client{Transport: config.GetTransport()},
	}
}

func (c *Client) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Transport: config.GetTransport()}
}

func (c *Client) objectUrl(path string) string {
	return c.BaseUrl + "/object/" + c.Bucket + "/" + strings.TrimPrefix(path, "/")
}

// Download fetches the bytes of the object at the given path inside the
// configured bucket.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectUrl(path), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build download request for %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+c.ServiceKey)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "download of %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("download of %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read body of %s", path)
	}
	return body, nil
}

// Remove deletes the given objects from the configured bucket.
func (c *Client) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return errors.Wrap(err, "failed to encode remove request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseUrl+"/object/"+c.Bucket,
		bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build remove request")
	}
	req.Header.Set("Authorization", "Bearer "+c.ServiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return errors.Wrapf(err, "removal of %v failed", paths)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("removal of %v returned %d: %s", paths, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
