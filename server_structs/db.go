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

// Package server_structs shares structs and their methods used across the
// service packages (database/rotation/materials/web_api).
//
// It should only import lower level packages (config/param); it should never
// import any of the service packages.
package server_structs

import (
	"time"
)

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusDone       ProcessingStatus = "done"
	StatusFailed     ProcessingStatus = "failed"
)

// HostingAccount is one tenant on the external file-hosting provider, with
// its own quota. Rows are provisioned administratively; this service mutates
// only access_token, last_used and cumulative_usage.
//
// Accounts are shared mutable state across concurrent requests. There is no
// row-level locking here; last-write-wins applies to access_token and
// last_used.
type HostingAccount struct {
	ID           string `gorm:"primaryKey" json:"id"`
	AccessToken  string `gorm:"column:access_token" json:"-"`
	RefreshToken string `gorm:"column:refresh_token" json:"-"`
	// Per-account OAuth app credentials; empty values fall back to the
	// process-wide Hosting.AppKey/Hosting.AppSecret defaults.
	AppKey          string    `json:"-"`
	AppSecret       string    `json:"-"`
	CumulativeUsage int64     `gorm:"not null;default:0" json:"cumulative_usage"`
	LastUsed        time.Time `json:"last_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Usable reports whether the account can possibly produce a valid access
// token. An account with neither an access token nor a refresh token is
// excluded from selection.
func (a *HostingAccount) Usable() bool {
	return a.AccessToken != "" || a.RefreshToken != ""
}

// Material is a study-material record awaiting publication: one unit of work
// moving a single file from intake storage to the hosting provider.
type Material struct {
	ID               string           `gorm:"primaryKey" json:"id"`
	Title            string           `json:"title"`
	FileName         string           `json:"file_name"`
	StoragePath      string           `json:"storage_path"`
	SizeBytes        int64            `json:"size_bytes"`
	Attempts         int              `gorm:"not null;default:0" json:"attempts"`
	ProcessingStatus ProcessingStatus `gorm:"not null;default:pending" json:"processing_status"`
	ProcessingError  string           `json:"processing_error,omitempty"`
	ProcessedUrl     string           `json:"processed_url,omitempty"`
	Approved         bool             `gorm:"not null;default:false" json:"approved"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// UploadRecord is an append-only audit row created once per successful
// upload; it references the material but does not own it.
type UploadRecord struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	MaterialID string    `gorm:"index" json:"material_id"`
	AccountID  string    `json:"account_id"`
	RemotePath string    `json:"remote_path"`
	PublicUrl  string    `json:"public_url"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RejectionLog records an admin's rejection of a material, including the
// caller's identity from the verified token.
type RejectionLog struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	MaterialID string    `gorm:"index" json:"material_id"`
	Reason     string    `json:"reason"`
	RejectedBy string    `json:"rejected_by"`
	CreatedAt  time.Time `json:"created_at"`
}
