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

package hosting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type tokenResp struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeRefreshToken performs a refresh_token grant against the provider's
// OAuth token endpoint and returns the freshly minted access token. The
// exchange is attempted exactly once; callers decide whether a rejection is
// retried.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken, appKey, appSecret string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ApiUrl+"/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "failed to build token exchange request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(appKey, appSecret)

	resp, err := c.client().Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token exchange request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", errors.Wrap(err, "failed to read token exchange response")
	}

	token := tokenResp{}
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", errors.Wrapf(err, "failed to decode token exchange response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || token.AccessToken == "" {
		if token.ErrorDescription != "" {
			return "", errors.Errorf("token exchange rejected (%s): %s", token.Error, token.ErrorDescription)
		}
		return "", errors.Errorf("token exchange returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	log.Debugln("Token exchange succeeded; access token expires in", token.ExpiresIn, "seconds")
	return token.AccessToken, nil
}
