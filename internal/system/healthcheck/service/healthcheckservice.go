/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package service provides health check-related business logic and operations.
package service

import (
	"context"
	"sort"
	"time"

	"github.com/asgardeo/orkestra/internal/system/healthcheck/model"
	"github.com/asgardeo/orkestra/internal/system/log"
)

const readinessTimeout = 5 * time.Second

// HealthChecker reports the health of a set of backends keyed by name. A nil error means
// the backend is up.
type HealthChecker interface {
	CheckHealth(ctx context.Context) map[string]error
}

// HealthCheckServiceInterface defines the interface for the health check service.
type HealthCheckServiceInterface interface {
	CheckReadiness(ctx context.Context) model.ServerStatus
}

// HealthCheckService is the default implementation of the HealthCheckServiceInterface.
type HealthCheckService struct {
	checkers []HealthChecker
}

// NewHealthCheckService creates a health check service over the given checkers.
func NewHealthCheckService(checkers ...HealthChecker) *HealthCheckService {
	return &HealthCheckService{checkers: checkers}
}

// CheckReadiness checks the readiness of the server and its dependencies. The server is
// down when any backend is down.
func (hcs *HealthCheckService) CheckReadiness(ctx context.Context) model.ServerStatus {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "HealthCheckService"))
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	results := make(map[string]error)
	for _, checker := range hcs.checkers {
		for name, err := range checker.CheckHealth(ctx) {
			results[name] = err
		}
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	status := model.StatusUp
	services := make([]model.ServiceStatus, 0, len(names))
	for _, name := range names {
		serviceStatus := model.ServiceStatus{ServiceName: name, Status: model.StatusUp}
		if err := results[name]; err != nil {
			logger.Error("Backend is not ready", log.String("service", name), log.Error(err))
			serviceStatus.Status = model.StatusDown
			status = model.StatusDown
		}
		services = append(services, serviceStatus)
	}
	return model.ServerStatus{Status: status, ServiceStatus: services}
}
