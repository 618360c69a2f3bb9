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

package materials

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// transformForHosting is the compression/transform step applied to material
// bytes before upload. Currently an identity passthrough.
func transformForHosting(contents []byte) []byte {
	return contents
}

// remoteUploadPath derives the deterministic provider path for an upload:
// the configured folder prefix, a timestamp, and the sanitized source
// filename.
func remoteUploadPath(folderPrefix, fileName string, now time.Time) string {
	prefix := "/" + strings.Trim(folderPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return fmt.Sprintf("%s/%d_%s", prefix, now.Unix(), sanitizeFileName(fileName))
}

// sanitizeFileName strips any path components and replaces characters the
// provider rejects in file names.
func sanitizeFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	replacer := strings.NewReplacer(" ", "_", "#", "_", "?", "_", "%", "_")
	return replacer.Replace(base)
}
