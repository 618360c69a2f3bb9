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

package rotation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/studyshelf/studyshelf/database"
	"github.com/studyshelf/studyshelf/param"
	"github.com/studyshelf/studyshelf/server_structs"
)

var (
	// ErrMissingRefreshCapability indicates the account has no refresh token
	// or no resolvable app credentials, so an expired access token cannot be
	// recovered.
	ErrMissingRefreshCapability = errors.New("account cannot refresh its access token")

	// ErrPersistFailed indicates a freshly refreshed token could not be
	// written back to the store. The token itself is still usable; callers
	// should treat this as a warning, not discard the token.
	ErrPersistFailed = errors.New("failed to persist refreshed access token")
)

// SelectAccount picks the least-recently-used eligible hosting account,
// honoring the configured quota ceiling (0 disables the ceiling).
func SelectAccount() (*server_structs.HostingAccount, error) {
	return database.SelectLeastUsedAccount(param.Hosting_QuotaCeilingBytes.GetInt64())
}

// ResolveAppCredentials resolves the OAuth app key/secret for the account:
// account-level values take precedence over the process-wide Hosting.AppKey
// and Hosting.AppSecret defaults. Both must resolve to something non-empty.
func ResolveAppCredentials(acct *server_structs.HostingAccount) (appKey string, appSecret string, err error) {
	appKey = acct.AppKey
	if appKey == "" {
		appKey = param.Hosting_AppKey.GetString()
	}
	appSecret = acct.AppSecret
	if appSecret == "" {
		appSecret = param.Hosting_AppSecret.GetString()
	}
	if appKey == "" || appSecret == "" {
		return "", "", errors.Wrapf(ErrMissingRefreshCapability,
			"no app credentials resolved for account %s", acct.ID)
	}
	return appKey, appSecret, nil
}

// EnsureValidToken guarantees the account carries a usable access token,
// refreshing and persisting one when needed. The returned account reflects
// any mutation.
//
// The fast path — a live access token — performs zero refresh calls: the
// token is used as-is with no expiry introspection (reactive-only policy).
// Otherwise a single refresh exchange is attempted; its failure is returned
// to the caller unretried. When persistence of the new token fails, the
// error wraps ErrPersistFailed but the fresh token is still returned.
func EnsureValidToken(ctx context.Context, p Provider, acct *server_structs.HostingAccount) (*server_structs.HostingAccount, string, error) {
	now := time.Now()

	if acct.AccessToken != "" && CheckToken(ctx, p, acct.AccessToken) == TokenValid {
		if err := database.TouchAccountLastUsed(acct.ID, now); err != nil {
			// The token is fine; a failed touch only skews rotation fairness
			log.Warnln("Failed to update last_used for account", acct.ID, ":", err)
		}
		acct.LastUsed = now
		return acct, acct.AccessToken, nil
	}

	if acct.RefreshToken == "" {
		return nil, "", errors.Wrapf(ErrMissingRefreshCapability,
			"account %s has no refresh token", acct.ID)
	}
	appKey, appSecret, err := ResolveAppCredentials(acct)
	if err != nil {
		return nil, "", err
	}

	log.Infoln("Refreshing access token for hosting account", acct.ID)
	newToken, err := p.ExchangeRefreshToken(ctx, acct.RefreshToken, appKey, appSecret)
	if err != nil {
		return nil, "", errors.Wrapf(err, "token refresh failed for account %s", acct.ID)
	}

	acct.AccessToken = newToken
	acct.LastUsed = now
	if err := database.SaveAccountToken(acct.ID, newToken, now); err != nil {
		log.Errorln("Refreshed token for account", acct.ID, "could not be persisted:", err)
		return acct, newToken, errors.Wrapf(ErrPersistFailed, "account %s: %v", acct.ID, err)
	}

	return acct, newToken, nil
}
