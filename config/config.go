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

// Package config initializes process-wide configuration: viper defaults and
// environment bindings, logrus setup, and the shared HTTP transport.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/studyshelf/studyshelf/param"
)

const envPrefix = "STUDYSHELF"

// Set viper defaults for every known parameter. Defaults here must stay in
// sync with the accessors defined in the param package.
func setDefaults() {
	viper.SetDefault("Logging.Level", "info")

	viper.SetDefault("Server.Address", "0.0.0.0")
	viper.SetDefault("Server.WebPort", 8085)
	viper.SetDefault("Server.DbLocation", "/var/studyshelf/studyshelf.sqlite")

	viper.SetDefault("Hosting.ApiUrl", "https://api.dropboxapi.com")
	viper.SetDefault("Hosting.ContentUrl", "https://content.dropboxapi.com")
	viper.SetDefault("Hosting.QuotaCeilingBytes", 0)
	viper.SetDefault("Hosting.FolderPrefix", "/studyshelf")

	viper.SetDefault("Storage.Bucket", "materials")

	viper.SetDefault("Transport.MaxIdleConns", 30)
	viper.SetDefault("Transport.IdleConnTimeout", "90s")
	viper.SetDefault("Transport.TLSHandshakeTimeout", "15s")
	viper.SetDefault("Transport.ExpectContinueTimeout", "1s")
	viper.SetDefault("Transport.ResponseHeaderTimeout", "10s")
	viper.SetDefault("Transport.DialerTimeout", "10s")
	viper.SetDefault("Transport.DialerKeepAlive", "30s")
}

// InitConfig sets up viper: defaults, environment variable bindings
// (STUDYSHELF_SECTION_KEY), and an optional YAML configuration file. An empty
// cfgFile falls back to $HOME/.studyshelf/config.yaml when present.
func InitConfig(cfgFile string) error {
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", cfgFile)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.studyshelf")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Do not fail if the config file is missing
	}
	return nil
}

// SetLogging configures the global logrus logger from the Logging.Level
// parameter.
func SetLogging() error {
	log.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	log.SetOutput(os.Stderr)

	levelStr := param.Logging_Level.GetString()
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		return errors.Wrapf(err, "unknown log level %q", levelStr)
	}
	log.SetLevel(level)
	return nil
}
