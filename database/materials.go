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
	"gorm.io/gorm"

	"github.com/studyshelf/studyshelf/server_structs"
)

func GetMaterial(id string) (*server_structs.Material, error) {
	var material server_structs.Material
	if err := ServerDatabase.First(&material, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to fetch material %s", id)
	}
	return &material, nil
}

// BeginMaterialProcessing records the start of a processing attempt: one
// UPDATE incrementing attempts, setting status to processing and clearing any
// previous error. Callers must issue this write before any I/O so a crash
// mid-upload leaves the row retryable instead of silently stuck.
func BeginMaterialProcessing(id string) error {
	result := ServerDatabase.Model(&server_structs.Material{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":          gorm.Expr("attempts + 1"),
			"processing_status": server_structs.StatusProcessing,
			"processing_error":  "",
		})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to mark material %s as processing", id)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CompleteMaterial transitions the material to its terminal done state with
// the public download URL; approval is auto-granted on success.
func CompleteMaterial(id string, processedUrl string) error {
	err := ServerDatabase.Model(&server_structs.Material{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": server_structs.StatusDone,
			"processed_url":     processedUrl,
			"processing_error":  "",
			"approved":          true,
		}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to mark material %s as done", id)
	}
	return nil
}

func FailMaterial(id string, reason string) error {
	err := ServerDatabase.Model(&server_structs.Material{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": server_structs.StatusFailed,
			"processing_error":  reason,
		}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to mark material %s as failed", id)
	}
	return nil
}

func DeleteMaterial(id string) error {
	result := ServerDatabase.Delete(&server_structs.Material{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to delete material %s", id)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func CreateUploadRecord(record *server_structs.UploadRecord) error {
	if record.UploadedAt.IsZero() {
		record.UploadedAt = time.Now()
	}
	if err := ServerDatabase.Create(record).Error; err != nil {
		return errors.Wrap(err, "failed to create upload record")
	}
	return nil
}

func CreateRejectionLog(entry *server_structs.RejectionLog) error {
	if err := ServerDatabase.Create(entry).Error; err != nil {
		return errors.Wrap(err, "failed to create rejection log entry")
	}
	return nil
}

// CountUploadRecords returns the number of upload records referencing the
// given material.
func CountUploadRecords(materialID string) (int64, error) {
	var count int64
	err := ServerDatabase.Model(&server_structs.UploadRecord{}).
		Where("material_id = ?", materialID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count upload records for material %s", materialID)
	}
	return count, nil
}
