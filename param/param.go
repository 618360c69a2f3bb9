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

// Package param provides typed accessors for the service's viper-backed
// configuration. All configuration reads outside this package and config
// should go through these getters so the set of known parameters stays
// discoverable in one place.
package param

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	StringParam struct {
		name string
	}

	BoolParam struct {
		name string
	}

	IntParam struct {
		name string
	}

	Int64Param struct {
		name string
	}

	DurationParam struct {
		name string
	}
)

// paramNameToEnvVar converts a parameter name (e.g., "Server.WebPort") to its
// corresponding environment variable name (e.g., "STUDYSHELF_SERVER_WEBPORT").
func paramNameToEnvVar(paramName string) string {
	envVar := strings.ReplaceAll(paramName, ".", "_")
	return "STUDYSHELF_" + strings.ToUpper(envVar)
}

func (sP StringParam) GetString() string {
	return viper.GetString(sP.name)
}

func (sP StringParam) GetName() string {
	return sP.name
}

func (sP StringParam) IsSet() bool {
	return viper.IsSet(sP.name)
}

func (sP StringParam) GetEnvVarName() string {
	return paramNameToEnvVar(sP.name)
}

func (bP BoolParam) GetBool() bool {
	return viper.GetBool(bP.name)
}

func (bP BoolParam) GetName() string {
	return bP.name
}

func (bP BoolParam) IsSet() bool {
	return viper.IsSet(bP.name)
}

func (iP IntParam) GetInt() int {
	return viper.GetInt(iP.name)
}

func (iP IntParam) GetName() string {
	return iP.name
}

func (iP IntParam) IsSet() bool {
	return viper.IsSet(iP.name)
}

func (iP Int64Param) GetInt64() int64 {
	return viper.GetInt64(iP.name)
}

func (iP Int64Param) GetName() string {
	return iP.name
}

func (iP Int64Param) IsSet() bool {
	return viper.IsSet(iP.name)
}

func (dP DurationParam) GetDuration() time.Duration {
	return viper.GetDuration(dP.name)
}

func (dP DurationParam) GetName() string {
	return dP.name
}

func (dP DurationParam) IsSet() bool {
	return viper.IsSet(dP.name)
}
