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

package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/studyshelf/studyshelf/database"
	"github.com/studyshelf/studyshelf/hosting"
	"github.com/studyshelf/studyshelf/materials"
	"github.com/studyshelf/studyshelf/metrics"
	"github.com/studyshelf/studyshelf/param"
	"github.com/studyshelf/studyshelf/storage"
	"github.com/studyshelf/studyshelf/web_api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the studyshelf web service",
	RunE:  serveMain,
}

func serveMain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	egrp, ok := ctx.Value(egrpKey{}).(*errgroup.Group)
	if !ok {
		return errors.New("errgroup missing from the command context")
	}

	if param.Server_JwtSecret.GetString() == "" {
		return errors.New("Server.JwtSecret must be configured for admin authentication")
	}

	if err := database.InitServerDatabase(); err != nil {
		metrics.SetComponentHealthStatus(metrics.Server_Database, metrics.StatusCritical, err.Error())
		return err
	}
	metrics.SetComponentHealthStatus(metrics.Server_Database, metrics.StatusOK, "")
	egrp.Go(func() error {
		<-ctx.Done()
		return database.ShutdownDB()
	})

	store := storage.NewClient()
	provider := hosting.NewClient()
	metrics.SetComponentHealthStatus(metrics.Server_Hosting, metrics.StatusUnknown, "no upload attempted yet")
	metrics.SetComponentHealthStatus(metrics.Server_Storage, metrics.StatusUnknown, "no download attempted yet")

	processor := materials.NewProcessor(store, provider)

	engine := web_api.GetEngine()
	web_api.RegisterRoutes(engine, processor)

	log.Infoln("Starting studyshelf on port", param.Server_WebPort.GetInt())
	egrp.Go(func() error {
		return web_api.RunEngine(ctx, engine)
	})

	return nil
}
