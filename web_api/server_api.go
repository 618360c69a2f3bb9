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

package web_api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/studyshelf/studyshelf/database"
	"github.com/studyshelf/studyshelf/hosting"
	"github.com/studyshelf/studyshelf/materials"
	"github.com/studyshelf/studyshelf/param"
	"github.com/studyshelf/studyshelf/rotation"
	"github.com/studyshelf/studyshelf/server_structs"
)

type rejectReq struct {
	Reason string `json:"reason" binding:"required"`
}

// RegisterRoutes attaches the service's REST routes to the engine.
// Processing and rejection are admin-only; the test-upload path exercises
// the account rotation and link creation without touching material rows.
func RegisterRoutes(engine *gin.Engine, processor *materials.Processor) {
	group := engine.Group("/api/v1.0")

	admin := group.Group("/materials", AdminAuthHandler)
	admin.POST("/:id/process", func(ctx *gin.Context) {
		handleProcessMaterial(ctx, processor)
	})
	admin.POST("/:id/reject", func(ctx *gin.Context) {
		handleRejectMaterial(ctx, processor)
	})

	group.POST("/test-upload", func(ctx *gin.Context) {
		handleTestUpload(ctx, processor)
	})
}

func handleProcessMaterial(ctx *gin.Context, processor *materials.Processor) {
	id := ctx.Param("id")

	publicUrl, err := processor.ProcessMaterial(ctx.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, materials.ErrMaxRetriesExceeded):
			ctx.JSON(http.StatusBadRequest, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
		case errors.Is(err, gorm.ErrRecordNotFound):
			ctx.JSON(http.StatusNotFound, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Material not found"})
		default:
			ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "success", "url": publicUrl})
}

func handleRejectMaterial(ctx *gin.Context, processor *materials.Processor) {
	id := ctx.Param("id")

	req := rejectReq{}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "A rejection reason is required"})
		return
	}

	rejectedBy := ctx.GetString("User")
	if err := processor.RejectMaterial(ctx.Request.Context(), id, req.Reason, rejectedBy); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Material not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, server_structs.SimpleApiResp{Status: server_structs.RespOK})
}

// handleTestUpload is a lighter upload path for verifying the hosting
// pipeline: the posted file goes through account selection, token lifecycle,
// upload and standalone public-link creation, but no material row is
// involved.
func handleTestUpload(ctx *gin.Context, processor *materials.Processor) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "A multipart 'file' field is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to open the uploaded file"})
		return
	}
	defer file.Close()
	contents, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: "Failed to read the uploaded file"})
		return
	}

	reqCtx := ctx.Request.Context()
	acct, err := rotation.SelectAccount()
	if err != nil {
		if errors.Is(err, database.ErrNoAccountAvailable) {
			ctx.JSON(http.StatusServiceUnavailable, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
			return
		}
		ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
		return
	}
	acct, token, err := rotation.EnsureValidToken(reqCtx, processor.Provider, acct)
	if err != nil && !errors.Is(err, rotation.ErrPersistFailed) {
		ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
		return
	}

	remotePath := fmt.Sprintf("%s/test/%d_%s",
		param.Hosting_FolderPrefix.GetString(), time.Now().Unix(), fileHeader.Filename)
	uploadedPath, err := processor.Provider.Upload(reqCtx, token, remotePath, contents)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
		return
	}

	sharedUrl, err := processor.Provider.CreateSharedLink(reqCtx, token, uploadedPath)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, server_structs.SimpleApiResp{Status: server_structs.RespFailed, Msg: err.Error()})
		return
	}

	log.Infoln("Test upload to account", acct.ID, "succeeded at", uploadedPath)
	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"url":    hosting.NormalizeDirectDownload(sharedUrl),
	})
}
