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
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	serverconst "github.com/asgardeo/orkestra/internal/system/constants"
	"github.com/asgardeo/orkestra/internal/system/error/apierror"
	"github.com/asgardeo/orkestra/internal/system/error/serviceerror"
	"github.com/asgardeo/orkestra/internal/system/log"
	sysutils "github.com/asgardeo/orkestra/internal/system/utils"
)

// Path parameter names.
const (
	pathParamDomain      = "domain"
	pathParamOperation   = "operation"
	pathParamEntityID    = "entity_id"
	pathParamModelName   = "model_name"
	pathParamExecutionID = "execution_id"
)

type orchestratorHandler struct {
	service OrchestratorServiceInterface
}

func newOrchestratorHandler(service OrchestratorServiceInterface) *orchestratorHandler {
	return &orchestratorHandler{service: service}
}

// HandleListDomainsRequest lists the configured domains.
func (h *orchestratorHandler) HandleListDomainsRequest(w http.ResponseWriter, r *http.Request) {
	sysutils.WriteJSON(w, http.StatusOK, map[string][]string{"domains": h.service.ListDomains()})
}

// HandleListModelsRequest lists the model scoring endpoints.
func (h *orchestratorHandler) HandleListModelsRequest(w http.ResponseWriter, r *http.Request) {
	models := h.service.ListModels()
	resp := map[string]interface{}{"models": models}
	if len(models) == 0 {
		resp["message"] = "No model scoring endpoints configured"
	}
	sysutils.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetExecutionRequest returns the tracked record of an execution.
func (h *orchestratorHandler) HandleGetExecutionRequest(w http.ResponseWriter, r *http.Request) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "OrchestratorHandler"))

	executionID := chi.URLParam(r, pathParamExecutionID)
	if !IsValidName(executionID) {
		handleServiceError(w, logger, &ErrorInvalidName)
		return
	}
	record, svcErr := h.service.GetExecution(executionID)
	if svcErr != nil {
		handleServiceError(w, logger, svcErr)
		return
	}
	sysutils.WriteJSON(w, http.StatusOK, record)
}

// HandleModelScoringRequest runs the predict endpoint of a model scoring domain.
func (h *orchestratorHandler) HandleModelScoringRequest(w http.ResponseWriter, r *http.Request) {
	modelName := chi.URLParam(r, pathParamModelName)
	pathParams := map[string]string{pathParamModelName: modelName}
	if entityID := chi.URLParam(r, pathParamEntityID); entityID != "" {
		pathParams[pathParamEntityID] = entityID
	}
	h.runEndpoint(w, r, ModelScoringDomainPrefix+modelName, ModelScoringOperation, pathParams)
}

// HandleEndpointRequest runs the endpoint of a domain and operation.
func (h *orchestratorHandler) HandleEndpointRequest(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, pathParamDomain)
	operation := chi.URLParam(r, pathParamOperation)
	pathParams := map[string]string{pathParamDomain: domain, pathParamOperation: operation}
	if entityID := chi.URLParam(r, pathParamEntityID); entityID != "" {
		pathParams[pathParamEntityID] = entityID
	}
	h.runEndpoint(w, r, domain, operation, pathParams)
}

func (h *orchestratorHandler) runEndpoint(w http.ResponseWriter, r *http.Request, domain, operation string,
	pathParams map[string]string) {
	logger := log.GetLogger().With(log.String(log.LoggerKeyComponentName, "OrchestratorHandler"))

	for _, name := range pathParams {
		if !IsValidName(name) {
			handleServiceError(w, logger, &ErrorInvalidName)
			return
		}
	}

	endpoint, svcErr := h.service.GetEndpoint(domain, operation)
	if svcErr != nil {
		handleServiceError(w, logger, svcErr)
		return
	}

	body := value.MappingOf()
	if r.Method == http.MethodPost {
		data, err := sysutils.ReadRequestBody(r)
		if err == nil {
			body, err = value.FromJSON(bytes.TrimSpace(data))
		}
		if err != nil {
			logger.Debug("Rejecting request body", log.String(log.LoggerKeyEndpoint, endpoint.Key()), log.Error(err))
			sysutils.WriteErrorResponse(w, http.StatusBadRequest, APIErrorRequestJSONDecodeError)
			return
		}
	}

	request := h.service.NewRequest(endpoint, pathParams, r.URL.Query(), body)
	w.Header().Set(serverconst.ExecutionIDHeaderName, request.System().ExecutionID)

	document, svcErr := h.service.RunEndpoint(r.Context(), endpoint, request)
	if svcErr != nil {
		handleServiceError(w, logger, svcErr)
		return
	}
	sysutils.WriteJSON(w, http.StatusOK, document)
}

// handleServiceError writes a service error as an API error response.
func handleServiceError(w http.ResponseWriter, logger *log.Logger, svcErr *serviceerror.ServiceError) {
	errResp := apierror.ErrorResponse{
		Code:        svcErr.Code,
		Message:     svcErr.Error,
		Description: svcErr.ErrorDescription,
		Details:     svcErr.Details,
	}

	statusCode := http.StatusInternalServerError
	if svcErr.Type == serviceerror.ClientErrorType {
		statusCode = http.StatusBadRequest
		if _, notFound := notFoundErrorCodes[svcErr.Code]; notFound {
			statusCode = http.StatusNotFound
		}
	}
	logger.Debug("Responding with service error", log.String("code", svcErr.Code), log.Int("status", statusCode))
	sysutils.WriteErrorResponse(w, statusCode, errResp)
}
