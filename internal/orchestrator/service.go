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

// Package orchestrator loads endpoint definitions and serves them over HTTP by running
// their steps and assembling the response document.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/asgardeo/orkestra/internal/orchestrator/assembler"
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/orchestrator/planner"
	"github.com/asgardeo/orkestra/internal/orchestrator/tracker"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/error/serviceerror"
	"github.com/asgardeo/orkestra/internal/system/log"
	"github.com/asgardeo/orkestra/internal/system/metrics"
)

// Endpoint execution statuses reported to the metrics collector.
const (
	endpointStatusSuccess  = "success"
	endpointStatusPartial  = "partial"
	endpointStatusNotFound = "not_found"
	endpointStatusFailed   = "failed"
)

// ModelInfo describes a model scoring endpoint.
type ModelInfo struct {
	ModelName    string      `json:"model_name"`
	Description  string      `json:"description"`
	InputSchema  value.Value `json:"input_schema"`
	OutputSchema value.Value `json:"output_schema"`
	Endpoint     string      `json:"endpoint"`
}

// ShutdownFunc releases a resource owned by the service.
type ShutdownFunc func(ctx context.Context) error

// OrchestratorServiceInterface defines the operations of the orchestration service.
type OrchestratorServiceInterface interface {
	GetEndpoint(domain, operation string) (*model.EndpointSpec, *serviceerror.ServiceError)
	NewRequest(endpoint *model.EndpointSpec, pathParams map[string]string, queryParams map[string][]string,
		body value.Value) *model.RequestContext
	RunEndpoint(ctx context.Context, endpoint *model.EndpointSpec, request *model.RequestContext) (
		value.Value, *serviceerror.ServiceError)
	ListDomains() []string
	ListModels() []ModelInfo
	GetExecution(executionID string) (tracker.Record, *serviceerror.ServiceError)
	Shutdown(ctx context.Context) error
}

// OrchestratorService is the default implementation of OrchestratorServiceInterface.
type OrchestratorService struct {
	catalog   *Catalog
	planner   planner.PlannerInterface
	tracker   tracker.TrackerInterface
	collector *metrics.Collector
	hooks     []ShutdownFunc
}

func newOrchestratorService(catalog *Catalog, executionPlanner planner.PlannerInterface,
	executionTracker tracker.TrackerInterface, collector *metrics.Collector,
	hooks ...ShutdownFunc) *OrchestratorService {
	return &OrchestratorService{
		catalog:   catalog,
		planner:   executionPlanner,
		tracker:   executionTracker,
		collector: collector,
		hooks:     hooks,
	}
}

// GetEndpoint returns the endpoint configured for a domain and operation.
func (s *OrchestratorService) GetEndpoint(domain, operation string) (*model.EndpointSpec,
	*serviceerror.ServiceError) {
	endpoint, ok := s.catalog.Endpoint(domain, operation)
	if !ok {
		return nil, &ErrorEndpointNotFound
	}
	return endpoint, nil
}

// NewRequest starts tracking a new execution of endpoint and returns its request context.
func (s *OrchestratorService) NewRequest(endpoint *model.EndpointSpec, pathParams map[string]string,
	queryParams map[string][]string, body value.Value) *model.RequestContext {
	record := s.tracker.Start(endpoint.Domain, endpoint.Operation)
	return model.NewRequestContext(pathParams, queryParams, body, model.SystemValues{
		ExecutionID: record.ExecutionID,
		Domain:      endpoint.Domain,
		Operation:   endpoint.Operation,
		Timestamp:   record.StartTime,
	})
}

// RunEndpoint executes the steps of endpoint and assembles the response document.
func (s *OrchestratorService) RunEndpoint(ctx context.Context, endpoint *model.EndpointSpec,
	request *model.RequestContext) (value.Value, *serviceerror.ServiceError) {
	executionID := request.System().ExecutionID
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "OrchestratorService"),
		log.String(log.LoggerKeyEndpoint, endpoint.Key()), log.String(log.LoggerKeyExecutionID, executionID))
	start := time.Now()

	execCtx, err := s.planner.Execute(ctx, endpoint, request)
	if err != nil {
		var dsErr *model.DataSourceError
		if errors.As(err, &dsErr) {
			s.finish(endpoint, executionID, endpointStatusFailed, ErrorDataSourceFailure.Code, nil, start)
			return value.Null, serviceerror.WithDetails(ErrorDataSourceFailure, map[string]string{
				"step":        dsErr.Step,
				"error_class": string(dsErr.Class),
			})
		}
		logger.Error("Endpoint execution failed", log.Error(err))
		s.finish(endpoint, executionID, endpointStatusFailed, ErrorInternalServerError.Code, nil, start)
		return value.Null, &ErrorInternalServerError
	}

	document, found := assembler.Assemble(endpoint, execCtx).Found()
	if !found || document.IsNull() {
		logger.Debug("Assembled response is empty")
		s.finish(endpoint, executionID, endpointStatusNotFound, ErrorNoDataFound.Code, nil, start)
		return value.Null, &ErrorNoDataFound
	}

	failures := execCtx.Failures()
	partialSteps := make([]string, 0, len(failures))
	for _, failure := range failures {
		partialSteps = append(partialSteps, failure.Step)
	}
	status := endpointStatusSuccess
	if len(partialSteps) > 0 {
		status = endpointStatusPartial
	}
	s.finish(endpoint, executionID, status, "", partialSteps, start)
	logger.Debug("Endpoint executed", log.String("status", status), log.Duration("elapsed", time.Since(start)))
	return document, nil
}

func (s *OrchestratorService) finish(endpoint *model.EndpointSpec, executionID, status, errorCode string,
	partialSteps []string, start time.Time) {
	if errorCode != "" {
		s.tracker.Fail(executionID, errorCode)
	} else {
		s.tracker.Complete(executionID, partialSteps)
	}
	s.collector.RecordEndpoint(endpoint.Domain, endpoint.Operation, status, time.Since(start))
}

// ListDomains returns the names of the loaded domains.
func (s *OrchestratorService) ListDomains() []string {
	return s.catalog.DomainNames()
}

// ListModels describes the predict endpoints of the model scoring domains.
func (s *OrchestratorService) ListModels() []ModelInfo {
	models := make([]ModelInfo, 0)
	for _, name := range s.catalog.DomainNames() {
		if !strings.HasPrefix(name, ModelScoringDomainPrefix) {
			continue
		}
		domain, _ := s.catalog.Domain(name)
		modelName := strings.TrimPrefix(name, ModelScoringDomainPrefix)
		info := ModelInfo{
			ModelName:    modelName,
			Description:  domain.Description,
			InputSchema:  value.MappingOf(),
			OutputSchema: value.MappingOf(),
			Endpoint:     "/orchestrator/model_scoring/" + modelName,
		}
		if predict, ok := domain.Endpoint(ModelScoringOperation); ok {
			if info.Description == "" {
				info.Description = predict.Description
			}
			if !predict.InputSchema.IsNull() {
				info.InputSchema = predict.InputSchema
			}
			if !predict.OutputSchema.IsNull() {
				info.OutputSchema = predict.OutputSchema
			}
		}
		models = append(models, info)
	}
	return models
}

// GetExecution returns the tracked record of an execution.
func (s *OrchestratorService) GetExecution(executionID string) (tracker.Record, *serviceerror.ServiceError) {
	record, ok := s.tracker.Get(executionID)
	if !ok {
		return tracker.Record{}, &ErrorExecutionNotFound
	}
	return record, nil
}

// Shutdown releases the owned resources in registration order and joins their errors.
func (s *OrchestratorService) Shutdown(ctx context.Context) error {
	var errs []error
	for _, hook := range s.hooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
