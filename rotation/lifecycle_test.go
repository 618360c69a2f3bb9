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
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyshelf/studyshelf/database"
	"github.com/studyshelf/studyshelf/hosting"
	"github.com/studyshelf/studyshelf/server_structs"
)

// fakeProvider counts calls so tests can assert the exact number of probe
// and refresh round-trips.
type fakeProvider struct {
	liveTokens    map[string]bool
	probeErr      error
	mintedToken   string
	exchangeErr   error
	probeCount    int
	exchangeCount int
	lastRefresh   string
	lastAppKey    string
	lastAppSecret string
}

func (f *fakeProvider) GetCurrentAccount(ctx context.Context, token string) (*hosting.AccountInfo, error) {
	f.probeCount++
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.liveTokens[token] {
		return &hosting.AccountInfo{AccountID: "dbid:fake"}, nil
	}
	return nil, errors.Wrap(hosting.ErrUnauthorized, "probe returned 401")
}

func (f *fakeProvider) ExchangeRefreshToken(ctx context.Context, refreshToken, appKey, appSecret string) (string, error) {
	f.exchangeCount++
	f.lastRefresh = refreshToken
	f.lastAppKey = appKey
	f.lastAppSecret = appSecret
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return f.mintedToken, nil
}

func setupTestDB(t *testing.T) {
	t.Helper()
	viper.Set("Server.DbLocation", filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, database.InitServerDatabase())
	t.Cleanup(func() {
		require.NoError(t, database.ShutdownDB())
		database.ServerDatabase = nil
		viper.Reset()
	})
}

func insertAccount(t *testing.T, acct server_structs.HostingAccount) {
	t.Helper()
	require.NoError(t, database.ServerDatabase.Create(&acct).Error)
}

func TestCheckToken(t *testing.T) {
	t.Run("EmptyTokenIsInvalidWithoutProbe", func(t *testing.T) {
		p := &fakeProvider{}
		assert.Equal(t, TokenInvalid, CheckToken(context.Background(), p, ""))
		assert.Zero(t, p.probeCount)
	})

	t.Run("LiveToken", func(t *testing.T) {
		p := &fakeProvider{liveTokens: map[string]bool{"tok": true}}
		assert.Equal(t, TokenValid, CheckToken(context.Background(), p, "tok"))
	})

	t.Run("RejectedToken", func(t *testing.T) {
		p := &fakeProvider{}
		assert.Equal(t, TokenInvalid, CheckToken(context.Background(), p, "stale"))
	})

	t.Run("ProbeFailureDegradesToCheckFailed", func(t *testing.T) {
		p := &fakeProvider{probeErr: errors.New("connection reset")}
		assert.Equal(t, TokenCheckFailed, CheckToken(context.Background(), p, "tok"))
	})
}

func TestEnsureValidTokenFastPath(t *testing.T) {
	setupTestDB(t)

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	insertAccount(t, server_structs.HostingAccount{
		ID: "acct", AccessToken: "live-token", RefreshToken: "r", LastUsed: old,
	})
	acct, err := database.GetAccountByID("acct")
	require.NoError(t, err)

	p := &fakeProvider{liveTokens: map[string]bool{"live-token": true}}
	updated, token, err := EnsureValidToken(context.Background(), p, acct)
	require.NoError(t, err)

	assert.Equal(t, "live-token", token, "a live token must be returned unchanged")
	assert.Zero(t, p.exchangeCount, "a live token must trigger zero refresh calls")

	stored, err := database.GetAccountByID("acct")
	require.NoError(t, err)
	assert.True(t, stored.LastUsed.After(old), "last_used should rotate the account to the back")
	assert.Equal(t, updated.AccessToken, stored.AccessToken)
}

func TestEnsureValidTokenRefreshPath(t *testing.T) {
	setupTestDB(t)
	viper.Set("Hosting.AppKey", "global-key")
	viper.Set("Hosting.AppSecret", "global-secret")

	insertAccount(t, server_structs.HostingAccount{
		ID: "acct", AccessToken: "stale", RefreshToken: "my-refresh",
	})
	acct, err := database.GetAccountByID("acct")
	require.NoError(t, err)

	p := &fakeProvider{mintedToken: "minted"}
	updated, token, err := EnsureValidToken(context.Background(), p, acct)
	require.NoError(t, err)

	assert.Equal(t, "minted", token)
	assert.Equal(t, 1, p.exchangeCount, "exactly one refresh call expected")
	assert.Equal(t, "my-refresh", p.lastRefresh)
	assert.Equal(t, "global-key", p.lastAppKey)
	assert.Equal(t, "global-secret", p.lastAppSecret)
	assert.Equal(t, "minted", updated.AccessToken)

	stored, err := database.GetAccountByID("acct")
	require.NoError(t, err)
	assert.Equal(t, "minted", stored.AccessToken, "the refreshed token must be persisted")
}

func TestEnsureValidTokenMissingRefreshCapability(t *testing.T) {
	setupTestDB(t)

	t.Run("NoRefreshToken", func(t *testing.T) {
		insertAccount(t, server_structs.HostingAccount{ID: "no-refresh", AccessToken: "stale"})
		acct, err := database.GetAccountByID("no-refresh")
		require.NoError(t, err)

		_, _, err = EnsureValidToken(context.Background(), &fakeProvider{}, acct)
		require.ErrorIs(t, err, ErrMissingRefreshCapability)
	})

	t.Run("NoAppCredentials", func(t *testing.T) {
		insertAccount(t, server_structs.HostingAccount{ID: "no-creds", RefreshToken: "r"})
		acct, err := database.GetAccountByID("no-creds")
		require.NoError(t, err)

		p := &fakeProvider{mintedToken: "minted"}
		_, _, err = EnsureValidToken(context.Background(), p, acct)
		require.ErrorIs(t, err, ErrMissingRefreshCapability)
		assert.Zero(t, p.exchangeCount)
	})
}

func TestEnsureValidTokenRefreshRejected(t *testing.T) {
	setupTestDB(t)
	viper.Set("Hosting.AppKey", "k")
	viper.Set("Hosting.AppSecret", "s")

	insertAccount(t, server_structs.HostingAccount{ID: "acct", RefreshToken: "revoked"})
	acct, err := database.GetAccountByID("acct")
	require.NoError(t, err)

	p := &fakeProvider{exchangeErr: errors.New("token exchange rejected (invalid_grant): refresh token is revoked")}
	_, _, err = EnsureValidToken(context.Background(), p, acct)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh token is revoked")
	assert.Equal(t, 1, p.exchangeCount, "a rejected refresh is not retried internally")
}

func TestEnsureValidTokenPersistFailure(t *testing.T) {
	setupTestDB(t)
	viper.Set("Hosting.AppKey", "k")
	viper.Set("Hosting.AppSecret", "s")

	// The account row is absent from the store, so persisting the minted
	// token fails; the token itself must still come back to the caller.
	acct := &server_structs.HostingAccount{ID: "ghost", RefreshToken: "r"}
	p := &fakeProvider{mintedToken: "minted"}

	updated, token, err := EnsureValidToken(context.Background(), p, acct)
	require.ErrorIs(t, err, ErrPersistFailed)
	assert.Equal(t, "minted", token)
	assert.Equal(t, "minted", updated.AccessToken)
}

func TestResolveAppCredentials(t *testing.T) {
	viper.Set("Hosting.AppKey", "global-key")
	viper.Set("Hosting.AppSecret", "global-secret")
	t.Cleanup(viper.Reset)

	t.Run("AccountValuesTakePrecedence", func(t *testing.T) {
		key, secret, err := ResolveAppCredentials(&server_structs.HostingAccount{
			ID: "a", AppKey: "acct-key", AppSecret: "acct-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "acct-key", key)
		assert.Equal(t, "acct-secret", secret)
	})

	t.Run("PartialOverrideFallsBack", func(t *testing.T) {
		key, secret, err := ResolveAppCredentials(&server_structs.HostingAccount{
			ID: "a", AppKey: "acct-key",
		})
		require.NoError(t, err)
		assert.Equal(t, "acct-key", key)
		assert.Equal(t, "global-secret", secret)
	})
}

func TestSelectAccountUsesQuotaCeiling(t *testing.T) {
	setupTestDB(t)
	viper.Set("Hosting.QuotaCeilingBytes", int64(1000))

	insertAccount(t, server_structs.HostingAccount{
		ID: "full", AccessToken: "t", CumulativeUsage: 2000,
		LastUsed: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	insertAccount(t, server_structs.HostingAccount{
		ID: "room", AccessToken: "t", CumulativeUsage: 10,
		LastUsed: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	acct, err := SelectAccount()
	require.NoError(t, err)
	assert.Equal(t, "room", acct.ID)
}

func TestRecordUsageNeverRaises(t *testing.T) {
	setupTestDB(t)

	insertAccount(t, server_structs.HostingAccount{ID: "acct", AccessToken: "t"})
	RecordUsage("acct", 512)

	stored, err := database.GetAccountByID("acct")
	require.NoError(t, err)
	assert.Equal(t, int64(512), stored.CumulativeUsage)

	// Unknown account: logged, swallowed
	RecordUsage("ghost", 512)
}
