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
	log "github.com/sirupsen/logrus"

	"github.com/studyshelf/studyshelf/database"
	"github.com/studyshelf/studyshelf/metrics"
)

// usageBytes converts an upload size into the account's usage unit. The
// provider accounts for quota in bytes, so this is currently the identity;
// it stays a function so a provider with a different unit can be swapped in.
func usageBytes(bytes int64) int64 {
	return bytes
}

// RecordUsage adds an upload's size to the account's cumulative usage.
// Best-effort: accounting failures are logged and suppressed so they never
// fail a job that already uploaded successfully.
func RecordUsage(accountID string, bytes int64) {
	if err := database.AddAccountUsage(accountID, usageBytes(bytes)); err != nil {
		log.Errorln("Failed to record usage for account", accountID, ":", err)
		return
	}
	metrics.UploadedBytes.Add(float64(bytes))
}
