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

// Package handler provides HTTP handlers for managing health check related API requests.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asgardeo/orkestra/internal/system/constants"
	"github.com/asgardeo/orkestra/internal/system/healthcheck/model"
	"github.com/asgardeo/orkestra/internal/system/healthcheck/service"
	"github.com/asgardeo/orkestra/internal/system/log"
)

// HealthCheckHandler defines the handler for managing health check API requests.
type HealthCheckHandler struct {
	Service service.HealthCheckServiceInterface
}

// NewHealthCheckHandler creates a new instance of HealthCheckHandler.
func NewHealthCheckHandler(healthCheckService service.HealthCheckServiceInterface) *HealthCheckHandler {
	return &HealthCheckHandler{
		Service: healthCheckService,
	}
}

// RegisterRoutes registers the liveness and readiness routes.
func (hch *HealthCheckHandler) RegisterRoutes(router chi.Router) {
	router.Get("/health/liveness", hch.HandleLivenessRequest)
	router.Get("/health/readiness", hch.HandleReadinessRequest)
}

// HandleLivenessRequest handles the health check liveness request.
func (hch *HealthCheckHandler) HandleLivenessRequest(w http.ResponseWriter, r *http.Request) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "HealthCheckHandler"))
	w.WriteHeader(http.StatusOK)
	logger.Debug("Health Check Liveness response sent")
}

// HandleReadinessRequest handles the health check readiness request.
func (hch *HealthCheckHandler) HandleReadinessRequest(w http.ResponseWriter, r *http.Request) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "HealthCheckHandler"))

	serverStatus := hch.Service.CheckReadiness(r.Context())

	w.Header().Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	if serverStatus.Status != model.StatusUp {
		logger.Error("Readiness check failed", log.String("serverStatus", string(serverStatus.Status)))
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		logger.Debug("Readiness check passed", log.String("serverStatus", string(serverStatus.Status)))
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(serverStatus); err != nil {
		logger.Error("Error while writing the readiness response", log.Error(err))
		return
	}

	logger.Debug("Health Check Readiness response sent")
}
