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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	// This is for API response so we want to display string representation of status
	ComponentStatus struct {
		Status     string `json:"status"`
		Message    string `json:"message,omitempty"`
		LastUpdate int64  `json:"last_update"`
	}

	componentStatusInternal struct {
		Status     HealthStatusEnum
		Message    string
		LastUpdate time.Time
	}

	HealthStatus struct {
		OverallStatus   string                     `json:"status"`
		ComponentStatus map[string]ComponentStatus `json:"components"`
	}

	HealthStatusEnum int

	HealthStatusComponent string
)

const (
	StatusCritical HealthStatusEnum = iota + 1
	StatusWarning
	StatusOK
	StatusUnknown
)

const statusIndexErrorMessage = "Error: status string index out of range"

const (
	Server_Web      HealthStatusComponent = "web"
	Server_Database HealthStatusComponent = "database"
	Server_Hosting  HealthStatusComponent = "hosting"
	Server_Storage  HealthStatusComponent = "storage"
)

var (
	healthStatus = sync.Map{}

	ComponentHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "studyshelf_component_health_status",
		Help: "The health status of various components",
	}, []string{"component"})

	ComponentHealthLastUpdate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "studyshelf_component_health_status_last_update",
		Help: "Last update timestamp of components health status",
	}, []string{"component"})
)

// Unfortunately we don't have a better way to ensure the enum constants always
// have a matched string representation, so we return an indicator string for
// out-of-range values.
func (status HealthStatusEnum) String() string {
	strings := [...]string{"critical", "warning", "ok", "unknown"}

	if int(status) < 1 || int(status) > len(strings) {
		return statusIndexErrorMessage
	}
	return strings[status-1]
}

func (component HealthStatusComponent) String() string {
	return string(component)
}

// Add/update the component health status. New components should be registered
// as a HealthStatusComponent constant above.
func SetComponentHealthStatus(name HealthStatusComponent, state HealthStatusEnum, msg string) {
	now := time.Now()
	healthStatus.Store(name.String(), componentStatusInternal{state, msg, now})

	ComponentHealthStatus.With(
		prometheus.Labels{"component": name.String()}).
		Set(float64(state))

	ComponentHealthLastUpdate.With(
		prometheus.Labels{"component": name.String()}).
		Set(float64(now.Unix()))
}

func DeleteComponentHealthStatus(name HealthStatusComponent) {
	healthStatus.Delete(name.String())
}

// GetHealthStatus returns the overall status plus the per-component map. The
// overall status is the worst component status.
func GetHealthStatus() HealthStatus {
	status := HealthStatus{}
	status.OverallStatus = StatusUnknown.String()
	overallStatus := StatusUnknown
	status.ComponentStatus = make(map[string]ComponentStatus)
	healthStatus.Range(func(component, compstat any) bool {
		componentStatus, ok := compstat.(componentStatusInternal)
		if !ok {
			return true
		}
		componentString, ok := component.(string)
		if !ok {
			return true
		}
		status.ComponentStatus[componentString] = ComponentStatus{
			componentStatus.Status.String(),
			componentStatus.Message,
			componentStatus.LastUpdate.Unix(),
		}
		if componentStatus.Status < overallStatus {
			overallStatus = componentStatus.Status
		}
		return true
	})
	status.OverallStatus = overallStatus.String()
	return status
}
