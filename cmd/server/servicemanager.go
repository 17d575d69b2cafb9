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

package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asgardeo/orkestra/internal/orchestrator"
	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/healthcheck/handler"
	"github.com/asgardeo/orkestra/internal/system/healthcheck/service"
	"github.com/asgardeo/orkestra/internal/system/log"
	"github.com/asgardeo/orkestra/internal/system/metrics"
)

const metricsNamespace = "orkestra"

// registerServices builds the router with all the services and returns it together with a
// function that releases the resources held by them.
func registerServices(logger *log.Logger) (http.Handler, func(ctx context.Context) error) {
	router := chi.NewRouter()

	collector := metrics.NewCollector(metricsNamespace)
	router.Handle("/metrics", collector.Handler())

	orchestratorService, registry, err := orchestrator.Initialize(router, config.GetOrkestraRuntime(), collector)
	if err != nil {
		logger.Fatal("Failed to initialize the orchestrator service", log.Error(err))
	}

	healthCheckService := service.NewHealthCheckService(registry)
	handler.NewHealthCheckHandler(healthCheckService).RegisterRoutes(router)

	return router, orchestratorService.Shutdown
}
