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

// Package materials drives the per-material processing state machine:
// pending -> processing -> done|failed. A material moves through download
// from intake storage, upload to a rotated hosting account, public link
// creation and source cleanup. There is no background retry; failed jobs
// wait for an external re-invocation, bounded by the attempt counter.
package materials

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/studyshelf/studyshelf/database"
	"github.com/studyshelf/studyshelf/hosting"
	"github.com/studyshelf/studyshelf/metrics"
	"github.com/studyshelf/studyshelf/param"
	"github.com/studyshelf/studyshelf/rotation"
	"github.com/studyshelf/studyshelf/server_structs"
)

const maxAttempts = 3

// ErrMaxRetriesExceeded is returned when a material has exhausted its
// processing attempts. The message is part of the API contract.
var ErrMaxRetriesExceeded = errors.New("Max retries reached")

type (
	// Store is the intake object store collaborator.
	Store interface {
		Download(ctx context.Context, path string) ([]byte, error)
		Remove(ctx context.Context, paths []string) error
	}

	// Provider is the full hosting-provider surface the processor needs:
	// the token lifecycle operations plus content upload and link creation.
	Provider interface {
		rotation.Provider
		Upload(ctx context.Context, token, remotePath string, body []byte) (string, error)
		CreateSharedLink(ctx context.Context, token, remotePath string) (string, error)
	}

	Processor struct {
		Store    Store
		Provider Provider
	}
)

func NewProcessor(store Store, provider Provider) *Processor {
	return &Processor{Store: store, Provider: provider}
}

// ProcessMaterial runs one processing attempt for the material and returns
// the public direct-download URL on success.
//
// The attempt is recorded (attempts+1, status=processing) before any I/O so
// a crash mid-upload leaves the row retryable. Any failure after that write
// transitions the material to failed with the error message persisted for
// later inspection.
func (pr *Processor) ProcessMaterial(ctx context.Context, id string) (string, error) {
	material, err := database.GetMaterial(id)
	if err != nil {
		return "", err
	}

	if material.Attempts >= maxAttempts {
		if err := database.FailMaterial(id, ErrMaxRetriesExceeded.Error()); err != nil {
			log.Errorln("Failed to record max-retries state for material", id, ":", err)
		}
		metrics.MaterialsProcessed.WithLabelValues("rejected").Inc()
		return "", ErrMaxRetriesExceeded
	}

	if err := database.BeginMaterialProcessing(id); err != nil {
		return "", err
	}

	publicUrl, err := pr.runAttempt(ctx, material)
	if err != nil {
		log.Errorln("Processing of material", id, "failed:", err)
		if failErr := database.FailMaterial(id, err.Error()); failErr != nil {
			log.Errorln("Additionally failed to persist the failure for material", id, ":", failErr)
		}
		metrics.MaterialsProcessed.WithLabelValues("failed").Inc()
		return "", err
	}

	metrics.MaterialsProcessed.WithLabelValues("done").Inc()
	return publicUrl, nil
}

func (pr *Processor) runAttempt(ctx context.Context, material *server_structs.Material) (string, error) {
	contents, err := pr.Store.Download(ctx, material.StoragePath)
	if err != nil {
		metrics.SetComponentHealthStatus(metrics.Server_Storage, metrics.StatusWarning, err.Error())
		return "", errors.Wrapf(err, "failed to download source for material %s", material.ID)
	}
	metrics.SetComponentHealthStatus(metrics.Server_Storage, metrics.StatusOK, "")
	contents = transformForHosting(contents)

	acct, err := rotation.SelectAccount()
	if err != nil {
		return "", err
	}
	acct, token, err := rotation.EnsureValidToken(ctx, pr.Provider, acct)
	if err != nil && !errors.Is(err, rotation.ErrPersistFailed) {
		return "", err
	}
	if errors.Is(err, rotation.ErrPersistFailed) {
		// The fresh token is usable even though the store write failed
		log.Warnln("Continuing with unpersisted token for account", acct.ID)
	}

	remotePath := remoteUploadPath(param.Hosting_FolderPrefix.GetString(), material.FileName, time.Now())

	uploadedPath, err := pr.Provider.Upload(ctx, token, remotePath, contents)
	if err != nil {
		log.Warnln("Upload failed for material", material.ID, "- refreshing token and retrying once:", err)
		uploadedPath, token, acct, err = pr.retryUpload(ctx, acct.ID, remotePath, contents)
		if err != nil {
			return "", err
		}
	}

	metrics.SetComponentHealthStatus(metrics.Server_Hosting, metrics.StatusOK, "")

	sharedUrl, err := pr.Provider.CreateSharedLink(ctx, token, uploadedPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create shared link for %s", uploadedPath)
	}
	publicUrl := hosting.NormalizeDirectDownload(sharedUrl)

	size := int64(len(contents))
	record := &server_structs.UploadRecord{
		ID:         uuid.NewString(),
		MaterialID: material.ID,
		AccountID:  acct.ID,
		RemotePath: uploadedPath,
		PublicUrl:  publicUrl,
		SizeBytes:  size,
		UploadedAt: time.Now(),
	}
	if err := database.CreateUploadRecord(record); err != nil {
		return "", err
	}

	rotation.RecordUsage(acct.ID, size)

	if err := database.CompleteMaterial(material.ID, publicUrl); err != nil {
		return "", err
	}

	// Source cleanup is best-effort; the material is already published
	if err := pr.Store.Remove(ctx, []string{material.StoragePath}); err != nil {
		log.Warnln("Failed to remove source blob", material.StoragePath, ":", err)
	}

	return publicUrl, nil
}

// retryUpload re-fetches the account row, forces a token refresh and retries
// the upload exactly once. A second failure propagates to the caller.
func (pr *Processor) retryUpload(ctx context.Context, accountID, remotePath string, contents []byte) (string, string, *server_structs.HostingAccount, error) {
	acct, err := database.GetAccountByID(accountID)
	if err != nil {
		return "", "", nil, err
	}
	acct.AccessToken = "" // force the refresh path
	acct, token, err := rotation.EnsureValidToken(ctx, pr.Provider, acct)
	if err != nil && !errors.Is(err, rotation.ErrPersistFailed) {
		return "", "", nil, err
	}

	uploadedPath, err := pr.Provider.Upload(ctx, token, remotePath, contents)
	if err != nil {
		return "", "", nil, errors.Wrapf(err, "upload retry failed for %s", remotePath)
	}
	return uploadedPath, token, acct, nil
}

// RejectMaterial removes a material from intake: its source blob is deleted,
// the row removed, and the rejection recorded with the admin's identity.
func (pr *Processor) RejectMaterial(ctx context.Context, id, reason, rejectedBy string) error {
	material, err := database.GetMaterial(id)
	if err != nil {
		return err
	}

	if material.StoragePath != "" {
		if err := pr.Store.Remove(ctx, []string{material.StoragePath}); err != nil {
			return errors.Wrapf(err, "failed to remove source blob for material %s", id)
		}
	}

	if err := database.DeleteMaterial(id); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	entry := &server_structs.RejectionLog{
		ID:         uuid.NewString(),
		MaterialID: id,
		Reason:     reason,
		RejectedBy: rejectedBy,
		CreatedAt:  time.Now(),
	}
	return database.CreateRejectionLog(entry)
}
