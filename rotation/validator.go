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

// Package rotation implements the multi-account token lifecycle: selecting
// the least-recently-used hosting account, validating and refreshing its
// access token, and best-effort usage accounting.
//
// Accounts are shared mutable rows without locking; two concurrent requests
// may select the same account and both run a validate/refresh cycle against
// it. The store's last-write-wins semantics apply to last_used and
// access_token.
package rotation

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/studyshelf/studyshelf/hosting"
)

// Provider is the subset of the hosting client the token lifecycle needs.
type Provider interface {
	GetCurrentAccount(ctx context.Context, token string) (*hosting.AccountInfo, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken, appKey, appSecret string) (string, error)
}

type TokenValidity int

const (
	TokenValid TokenValidity = iota + 1
	TokenInvalid
	TokenCheckFailed
)

// CheckToken probes the provider with a minimal authenticated call and
// reports whether the token is live. It never returns an error: a rejected
// token is TokenInvalid, and any other failure (network, provider outage,
// malformed credential) degrades to TokenCheckFailed, which callers must
// treat the same as invalid. The two are logged distinctly so a flapping
// provider is visible in the logs.
func CheckToken(ctx context.Context, p Provider, token string) TokenValidity {
	if token == "" {
		return TokenInvalid
	}

	_, err := p.GetCurrentAccount(ctx, token)
	if err == nil {
		return TokenValid
	}
	if errors.Is(err, hosting.ErrUnauthorized) {
		log.Debugln("Access token rejected by provider; refresh required")
		return TokenInvalid
	}

	log.Warnln("Token liveness check failed; assuming the token is invalid:", err)
	return TokenCheckFailed
}
