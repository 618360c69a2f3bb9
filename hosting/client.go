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

// Package hosting implements the client for the external file-hosting
// provider: content uploads, shared-link management and the OAuth token
// endpoint. The provider speaks a Dropbox-shaped API; base URLs are
// parameters so tests can point the client at local listeners.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/studyshelf/studyshelf/config"
	"github.com/studyshelf/studyshelf/param"
)

// ErrUnauthorized indicates the provider rejected the presented access
// token. Callers use it to distinguish an expired credential from transport
// or provider failures.
var ErrUnauthorized = errors.New("hosting provider rejected the access token")

type (
	Client struct {
		ApiUrl     string
		ContentUrl string
		httpClient *http.Client
	}

	// AccountInfo is the subset of the provider's current-account response
	// we care about; fetching it doubles as a token liveness probe.
	AccountInfo struct {
		AccountID string `json:"account_id"`
		Email     string `json:"email"`
	}

	sharedLinkResp struct {
		Url string `json:"url"`
	}

	listSharedLinksResp struct {
		Links []sharedLinkResp `json:"links"`
	}

	apiErrorResp struct {
		ErrorSummary string `json:"error_summary"`
	}
)

// NewClient builds a provider client from the Hosting.* parameters, using
// the shared transport.
func NewClient() *Client {
	return &Client{
		ApiUrl:     strings.TrimSuffix(param.Hosting_ApiUrl.GetString(), "/"),
		ContentUrl: strings.TrimSuffix(param.Hosting_ContentUrl.GetString(), "/"),
		httpClient: &http.Client{Transport: config.GetTransport()},
	}
}

func (c *Client) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Transport: config.GetTransport()}
}

// rpc issues an authenticated JSON RPC-style POST against the API host and
// decodes the response into out (which may be nil).
func (c *Client) rpc(ctx context.Context, token, endpoint string, args, out interface{}) error {
	var body io.Reader
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return errors.Wrap(err, "failed to encode API arguments")
		}
		body = bytes.NewReader(encoded)
	} else {
		// The provider requires an explicit null body for no-arg endpoints
		body = strings.NewReader("null")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ApiUrl+endpoint, body)
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %s", endpoint)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", endpoint)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, endpoint); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "failed to decode response from %s", endpoint)
		}
	}
	return nil
}

func checkStatus(resp *http.Response, endpoint string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusUnauthorized {
		return errors.Wrapf(ErrUnauthorized, "%s returned 401: %s", endpoint, strings.TrimSpace(string(raw)))
	}
	summary := apiErrorResp{}
	if err := json.Unmarshal(raw, &summary); err == nil && summary.ErrorSummary != "" {
		return errors.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, summary.ErrorSummary)
	}
	return errors.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(raw)))
}

// GetCurrentAccount performs a minimal authenticated call against the
// provider; it is the cheapest way to learn whether an access token is still
// live.
func (c *Client) GetCurrentAccount(ctx context.Context, token string) (*AccountInfo, error) {
	info := AccountInfo{}
	if err := c.rpc(ctx, token, "/2/users/get_current_account", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Upload stores body at remotePath on the provider, overwriting any existing
// file there, and returns the path the provider confirmed.
func (c *Client) Upload(ctx context.Context, token, remotePath string, body []byte) (string, error) {
	apiArg, err := json.Marshal(map[string]interface{}{
		"path":       remotePath,
		"mode":       "overwrite",
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode upload arguments")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ContentUrl+"/2/files/upload", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build upload request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", string(apiArg))

	resp, err := c.client().Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "upload of %s failed", remotePath)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "/2/files/upload"); err != nil {
		return "", err
	}

	uploaded := struct {
		PathDisplay string `json:"path_display"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", errors.Wrap(err, "failed to decode upload response")
	}
	if uploaded.PathDisplay == "" {
		uploaded.PathDisplay = remotePath
	}
	return uploaded.PathDisplay, nil
}

// CreateSharedLink returns a public sharing URL for the uploaded path. When
// the provider reports the link already exists (the common conflict case) we
// fall back to listing the existing links and take the first.
func (c *Client) CreateSharedLink(ctx context.Context, token, remotePath string) (string, error) {
	link := sharedLinkResp{}
	err := c.rpc(ctx, token, "/2/sharing/create_shared_link_with_settings",
		map[string]interface{}{"path": remotePath}, &link)
	if err == nil {
		return link.Url, nil
	}
	if !strings.Contains(err.Error(), "shared_link_already_exists") {
		return "", err
	}

	log.Debugln("Shared link already exists for", remotePath, "- listing existing links")
	links, listErr := c.ListSharedLinks(ctx, token, remotePath)
	if listErr != nil {
		return "", listErr
	}
	if len(links) == 0 {
		return "", errors.Errorf("provider reported an existing shared link for %s but listed none", remotePath)
	}
	return links[0], nil
}

// ListSharedLinks returns the public sharing URLs already registered for the
// given path.
func (c *Client) ListSharedLinks(ctx context.Context, token, remotePath string) ([]string, error) {
	listed := listSharedLinksResp{}
	err := c.rpc(ctx, token, "/2/sharing/list_shared_links",
		map[string]interface{}{"path": remotePath, "direct_only": true}, &listed)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(listed.Links))
	for _, l := range listed.Links {
		urls = append(urls, l.Url)
	}
	return urls, nil
}

// NormalizeDirectDownload rewrites a provider sharing URL so it serves the
// file bytes directly instead of an HTML preview page: the web host is
// swapped for the user-content host and any dl=0 query parameter is forced
// to dl=1. Unparseable input is returned unchanged.
func NormalizeDirectDownload(sharedUrl string) string {
	parsed, err := url.Parse(sharedUrl)
	if err != nil {
		return sharedUrl
	}

	if parsed.Host == "www.dropbox.com" || parsed.Host == "dropbox.com" {
		parsed.Host = "dl.dropboxusercontent.com"
	}

	query := parsed.Query()
	query.Set("dl", "1")
	parsed.RawQuery = query.Encode()

	return parsed.String()
}
