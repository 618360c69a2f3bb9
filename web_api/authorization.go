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
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/studyshelf/studyshelf/param"
	"github.com/studyshelf/studyshelf/server_structs"
)

// verifyAdminToken parses and validates the signed token against the shared
// secret and requires the admin claim. Returns the token subject (the
// caller's identity) on success.
func verifyAdminToken(strToken string) (string, error) {
	secret := param.Server_JwtSecret.GetString()
	if secret == "" {
		return "", errors.New("Server.JwtSecret is not configured")
	}

	parsed, err := jwt.Parse([]byte(strToken),
		jwt.WithKey(jwa.HS256, []byte(secret)),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to verify the bearer token")
	}

	adminClaim, ok := parsed.Get("admin")
	if !ok {
		return "", errors.New("token carries no admin claim")
	}
	if isAdmin, ok := adminClaim.(bool); !ok || !isAdmin {
		return "", errors.New("token is not an admin token")
	}

	return parsed.Subject(), nil
}

// AdminAuthHandler guards privileged endpoints: the caller must present a
// Bearer token signed with the shared secret and carrying admin=true. The
// verified subject is stored on the context as "User" for downstream
// handlers. Auth failures short-circuit before any job mutation.
func AdminAuthHandler(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, server_structs.SimpleApiResp{
			Status: server_structs.RespFailed,
			Msg:    "Authentication required to perform this operation",
		})
		return
	}

	strToken := strings.TrimPrefix(authHeader, "Bearer ")
	user, err := verifyAdminToken(strToken)
	if err != nil {
		if strings.Contains(err.Error(), "admin") {
			log.Debugln("Non-admin token presented to a privileged endpoint:", err)
			ctx.AbortWithStatusJSON(http.StatusForbidden, server_structs.SimpleApiResp{
				Status: server_structs.RespFailed,
				Msg:    "You don't have permission to perform this action",
			})
			return
		}
		log.Debugln("Invalid token presented to a privileged endpoint:", err)
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, server_structs.SimpleApiResp{
			Status: server_structs.RespFailed,
			Msg:    "Invalid or expired token",
		})
		return
	}

	ctx.Set("User", user)
	ctx.Next()
}
