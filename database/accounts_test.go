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

package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyshelf/studyshelf/server_structs"
)

func insertAccount(t *testing.T, acct server_structs.HostingAccount) {
	t.Helper()
	require.NoError(t, ServerDatabase.Create(&acct).Error)
}

func TestSelectLeastUsedAccount(t *testing.T) {
	setupTestDB(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	insertAccount(t, server_structs.HostingAccount{
		ID: "acct-new", AccessToken: "tok-new", LastUsed: base.Add(2 * time.Hour),
	})
	insertAccount(t, server_structs.HostingAccount{
		ID: "acct-old", AccessToken: "tok-old", LastUsed: base,
	})
	insertAccount(t, server_structs.HostingAccount{
		ID: "acct-mid", AccessToken: "tok-mid", LastUsed: base.Add(time.Hour),
	})

	t.Run("OldestUsedFirst", func(t *testing.T) {
		acct, err := SelectLeastUsedAccount(0)
		require.NoError(t, err)
		assert.Equal(t, "acct-old", acct.ID)
	})

	t.Run("UnusableAccountsExcluded", func(t *testing.T) {
		// No access token and no refresh token: never selectable, even
		// though its last_used is the oldest
		insertAccount(t, server_structs.HostingAccount{
			ID: "acct-dead", LastUsed: base.Add(-24 * time.Hour),
		})
		acct, err := SelectLeastUsedAccount(0)
		require.NoError(t, err)
		assert.Equal(t, "acct-old", acct.ID)
	})

	t.Run("RefreshOnlyAccountIsEligible", func(t *testing.T) {
		insertAccount(t, server_structs.HostingAccount{
			ID: "acct-refresh", RefreshToken: "r", LastUsed: base.Add(-time.Hour),
		})
		acct, err := SelectLeastUsedAccount(0)
		require.NoError(t, err)
		assert.Equal(t, "acct-refresh", acct.ID)
	})
}

func TestSelectLeastUsedAccountQuotaCeiling(t *testing.T) {
	setupTestDB(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	insertAccount(t, server_structs.HostingAccount{
		ID: "acct-full", AccessToken: "a", CumulativeUsage: 5000, LastUsed: base,
	})
	insertAccount(t, server_structs.HostingAccount{
		ID: "acct-room", AccessToken: "b", CumulativeUsage: 100, LastUsed: base.Add(time.Hour),
	})

	t.Run("CeilingExcludesFullAccounts", func(t *testing.T) {
		acct, err := SelectLeastUsedAccount(1000)
		require.NoError(t, err)
		assert.Equal(t, "acct-room", acct.ID)
	})

	t.Run("UsageAtCeilingIsExcluded", func(t *testing.T) {
		// acct-room sits exactly at this ceiling; the filter is strict
		_, err := SelectLeastUsedAccount(100)
		require.ErrorIs(t, err, ErrNoAccountAvailable)
	})

	t.Run("ZeroCeilingDisablesFilter", func(t *testing.T) {
		acct, err := SelectLeastUsedAccount(0)
		require.NoError(t, err)
		assert.Equal(t, "acct-full", acct.ID)
	})

}

func TestSelectLeastUsedAccountTieBreak(t *testing.T) {
	setupTestDB(t)

	same := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	insertAccount(t, server_structs.HostingAccount{ID: "b-acct", AccessToken: "t", LastUsed: same})
	insertAccount(t, server_structs.HostingAccount{ID: "a-acct", AccessToken: "t", LastUsed: same})

	acct, err := SelectLeastUsedAccount(0)
	require.NoError(t, err)
	assert.Equal(t, "a-acct", acct.ID)
}

func TestSaveAccountToken(t *testing.T) {
	setupTestDB(t)

	insertAccount(t, server_structs.HostingAccount{ID: "acct", RefreshToken: "r"})
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, SaveAccountToken("acct", "fresh-token", now))

	acct, err := GetAccountByID("acct")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", acct.AccessToken)
	assert.WithinDuration(t, now, acct.LastUsed, time.Second)

	t.Run("UnknownAccount", func(t *testing.T) {
		err := SaveAccountToken("nope", "tok", now)
		require.Error(t, err)
	})
}

func TestAddAccountUsage(t *testing.T) {
	setupTestDB(t)

	insertAccount(t, server_structs.HostingAccount{ID: "acct", AccessToken: "t", CumulativeUsage: 10})

	require.NoError(t, AddAccountUsage("acct", 90))
	require.NoError(t, AddAccountUsage("acct", 900))

	acct, err := GetAccountByID("acct")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), acct.CumulativeUsage)

	t.Run("UnknownAccount", func(t *testing.T) {
		err := AddAccountUsage("nope", 1)
		require.Error(t, err)
	})
}
