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
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/studyshelf/studyshelf/server_structs"
)

// ErrNoAccountAvailable is returned when no hosting account is eligible for
// selection (none provisioned, none usable, or all at the quota ceiling).
var ErrNoAccountAvailable = errors.New("no eligible hosting account available")

// SelectLeastUsedAccount returns the eligible account whose last_used
// timestamp is oldest, implementing round-robin-by-recency rotation. An
// account is eligible when it carries at least one of access_token or
// refresh_token and, when quotaCeiling > 0, its cumulative usage is below the
// ceiling. Ties on last_used break by id so selection is deterministic.
//
// Read-only: claiming the account (the last_used touch) happens when the
// token lifecycle runs, not here.
func SelectLeastUsedAccount(quotaCeiling int64) (*server_structs.HostingAccount, error) {
	var account server_structs.HostingAccount

	query := ServerDatabase.
		Where("access_token <> '' OR refresh_token <> ''")
	if quotaCeiling > 0 {
		query = query.Where("cumulative_usage < ?", quotaCeiling)
	}

	err := query.
		Order("last_used ASC").
		Order("id ASC").
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoAccountAvailable
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query hosting accounts")
	}
	return &account, nil
}

func GetAccountByID(id string) (*server_structs.HostingAccount, error) {
	var account server_structs.HostingAccount
	if err := ServerDatabase.First(&account, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch hosting account %s", id)
	}
	return &account, nil
}

// SaveAccountToken persists a freshly refreshed access token together with
// the last_used timestamp in a single UPDATE.
func SaveAccountToken(id string, accessToken string, lastUsed time.Time) error {
	result := ServerDatabase.Model(&server_structs.HostingAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"last_used":    lastUsed,
		})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to persist access token for account %s", id)
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("hosting account %s not found when persisting access token", id)
	}
	return nil
}

// TouchAccountLastUsed marks the account as most recently used so the
// selector rotates away from it.
func TouchAccountLastUsed(id string, lastUsed time.Time) error {
	err := ServerDatabase.Model(&server_structs.HostingAccount{}).
		Where("id = ?", id).
		Update("last_used", lastUsed).Error
	if err != nil {
		return errors.Wrapf(err, "failed to update last_used for account %s", id)
	}
	return nil
}

// AddAccountUsage increments the account's cumulative usage by the given
// byte count. The primary path is a single UPDATE with an arithmetic
// expression, which the store serializes; if that fails we fall back to a
// read-modify-write, which is race-prone under concurrency and explicitly
// best-effort.
func AddAccountUsage(id string, bytes int64) error {
	result := ServerDatabase.Model(&server_structs.HostingAccount{}).
		Where("id = ?", id).
		UpdateColumn("cumulative_usage", gorm.Expr("cumulative_usage + ?", bytes))
	if result.Error == nil && result.RowsAffected > 0 {
		return nil
	}
	if result.Error != nil {
		log.Warnln("Atomic usage increment failed, falling back to read-modify-write:", result.Error)
	} else {
		return errors.Errorf("hosting account %s not found when recording usage", id)
	}

	account, err := GetAccountByID(id)
	if err != nil {
		return err
	}
	account.CumulativeUsage += bytes
	if err := ServerDatabase.Model(&server_structs.HostingAccount{}).
		Where("id = ?", id).
		Update("cumulative_usage", account.CumulativeUsage).Error; err != nil {
		return errors.Wrapf(err, "failed to write back usage for account %s", id)
	}
	return nil
}
