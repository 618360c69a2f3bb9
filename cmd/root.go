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
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/studyshelf/studyshelf/config"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "studyshelf",
		Short: "Publish study materials as public download links",
		Long: `The studyshelf service moves study-material files from intake
storage to a file-hosting provider, rotating across hosting accounts
and exposing the results as public direct-download links.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitConfig(cfgFile); err != nil {
				return err
			}
			return config.SetLogging()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.studyshelf/config.yaml)")
	rootCmd.AddCommand(serveCmd)
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	egrp, egrpCtx := errgroup.WithContext(ctx)
	exeErr := rootCmd.ExecuteContext(context.WithValue(egrpCtx, egrpKey{}, egrp))
	if exeErr != nil {
		log.Errorln("Fatal error occurred at the start of the program. Cleanup started:", exeErr)
	}

	// Wait until all goroutines in the errgroup finish their cleanup
	if egrpErr := egrp.Wait(); egrpErr != nil && egrpErr != context.Canceled {
		log.Errorln("Fatal error occurred that led to the shutdown of the process:", egrpErr)
		return egrpErr
	}
	return exeErr
}

type egrpKey struct{}
