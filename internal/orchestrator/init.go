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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/adapter/featurestore"
	"github.com/asgardeo/orkestra/internal/adapter/httpapi"
	"github.com/asgardeo/orkestra/internal/adapter/literal"
	"github.com/asgardeo/orkestra/internal/adapter/modelscoring"
	"github.com/asgardeo/orkestra/internal/adapter/relational"
	"github.com/asgardeo/orkestra/internal/modelserving"
	"github.com/asgardeo/orkestra/internal/orchestrator/fallback"
	"github.com/asgardeo/orkestra/internal/orchestrator/planner"
	"github.com/asgardeo/orkestra/internal/orchestrator/tracker"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/cache"
	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/database/provider"
	"github.com/asgardeo/orkestra/internal/system/log"
	"github.com/asgardeo/orkestra/internal/system/metrics"
)

// Initialize creates the adapters, the model manager and the planner, loads and validates the
// endpoint definitions and registers the orchestrator routes. The returned registry reports
// the health of the configured backends.
func Initialize(router chi.Router, runtime *config.OrkestraRuntime, collector *metrics.Collector) (
	OrchestratorServiceInterface, *adapter.Registry, error) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "OrchestratorInit"))
	cfg := runtime.Config

	registry := adapter.NewRegistry()
	relationalAdapter := relational.New(provider.NewDBProvider(runtime.OrkestraHome, cfg.DataSources.Relational))
	registry.Register(adapter.SourceTypeRelational, relationalAdapter)
	registry.Register(adapter.SourceTypeHTTPAPI, httpapi.New(cfg.DataSources.HTTPAPI))
	registry.Register(adapter.SourceTypeLiteral, literal.New())

	featureStore, err := featurestore.New(cfg.DataSources.FeatureStore, relationalAdapter,
		fallbackObserver(collector, adapter.SourceTypeFeatureStore))
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to initialize the feature store adapter: %w", err),
			registry.Close())
	}
	registry.Register(adapter.SourceTypeFeatureStore, featureStore)

	manager := modelserving.NewManager(cfg.ModelServing, collector,
		modelLaunchers(cfg.ModelServing, runtime.OrkestraHome, logger)...)
	registry.Register(adapter.SourceTypeModel, modelscoring.New(cfg.DataSources.Model, manager,
		fallbackObserver(collector, adapter.SourceTypeModel)))

	release := func(ctx context.Context) error {
		return errors.Join(manager.Shutdown(ctx), registry.Close())
	}

	stepCache := cache.NewCache[value.Value]("steps", cfg.Cache)
	executionPlanner := planner.NewPlanner(registry, stepCache, collector, cfg.Orchestrator.DefaultStepTimeout)

	catalog, err := LoadCatalog(resolvePath(runtime.OrkestraHome, cfg.Orchestrator.EndpointsDirectory))
	if err == nil {
		for _, endpoint := range catalog.Endpoints() {
			if err = executionPlanner.Validate(endpoint); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, nil, errors.Join(err, release(context.Background()))
	}

	executionTracker := tracker.NewTracker(cfg.Orchestrator)
	cleanup, err := cache.NewCleanupScheduler(cfg.Cache.CleanupSchedule, stepCache, executionTracker.Cache())
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("invalid cache cleanup schedule: %w", err),
			release(context.Background()))
	}
	monitor := modelserving.NewHealthMonitor(manager, cfg.ModelServing.HealthSchedule, nil, collector)
	if err := monitor.Start(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("invalid model health schedule: %w", err),
			release(context.Background()))
	}
	cleanup.Start()

	svc := newOrchestratorService(catalog, executionPlanner, executionTracker, collector,
		func(context.Context) error {
			monitor.Stop()
			cleanup.Stop()
			return nil
		},
		release,
	)
	registerRoutes(router, newOrchestratorHandler(svc))
	logger.Info("Orchestrator initialized", log.Int("domainCount", len(catalog.DomainNames())),
		log.Int("endpointCount", len(catalog.Endpoints())))
	return svc, registry, nil
}

// modelLaunchers returns the launchers of the load strategies available on this host. The
// container based strategies are skipped when no container engine can be reached.
func modelLaunchers(cfg config.ModelServingConfig, home string, logger *log.Logger) []modelserving.Launcher {
	launchers := []modelserving.Launcher{
		modelserving.NewProcessLauncher(resolvePath(home, cfg.LogDirectory)),
	}
	containers, err := modelserving.NewContainerLauncher(cfg.DockerHost)
	if err != nil {
		logger.Warn("Container engine is unavailable, container and registry model strategies are disabled",
			log.Error(err))
		return launchers
	}
	return append(launchers, containers, modelserving.NewRegistryLauncher(containers))
}

func fallbackObserver(collector *metrics.Collector, sourceType adapter.SourceType) fallback.Observer {
	return func(strategy string, _ error) {
		collector.RecordFallbackAdvance(string(sourceType), strategy)
	}
}

func resolvePath(home, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(home, path)
}

func registerRoutes(router chi.Router, handler *orchestratorHandler) {
	router.Route("/orchestrator", func(r chi.Router) {
		r.Get("/domains", handler.HandleListDomainsRequest)
		r.Get("/executions/{"+pathParamExecutionID+"}", handler.HandleGetExecutionRequest)

		r.Get("/model_scoring", handler.HandleListModelsRequest)
		r.Get("/model_scoring/{"+pathParamModelName+"}", handler.HandleModelScoringRequest)
		r.Post("/model_scoring/{"+pathParamModelName+"}", handler.HandleModelScoringRequest)
		r.Get("/model_scoring/{"+pathParamModelName+"}/{"+pathParamEntityID+"}", handler.HandleModelScoringRequest)
		r.Post("/model_scoring/{"+pathParamModelName+"}/{"+pathParamEntityID+"}", handler.HandleModelScoringRequest)

		r.Get("/{"+pathParamDomain+"}/{"+pathParamOperation+"}", handler.HandleEndpointRequest)
		r.Post("/{"+pathParamDomain+"}/{"+pathParamOperation+"}", handler.HandleEndpointRequest)
		r.Get("/{"+pathParamDomain+"}/{"+pathParamOperation+"}/{"+pathParamEntityID+"}",
			handler.HandleEndpointRequest)
		r.Post("/{"+pathParamDomain+"}/{"+pathParamOperation+"}/{"+pathParamEntityID+"}",
			handler.HandleEndpointRequest)
	})
}
