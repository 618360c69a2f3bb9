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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MaterialsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyshelf_materials_processed_total",
		Help: "Processed materials by outcome",
	}, []string{"outcome"})

	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studyshelf_uploaded_bytes_total",
		Help: "Total bytes uploaded to the hosting provider",
	})
)
