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
	"github.com/asgardeo/orkestra/internal/system/error/apierror"
	"github.com/asgardeo/orkestra/internal/system/error/serviceerror"
)

// Client error structs

// APIErrorRequestJSONDecodeError is returned when a POST body is not valid JSON.
var APIErrorRequestJSONDecodeError = apierror.ErrorResponse{
	Code:        "ORK-60001",
	Message:     "Invalid request payload",
	Description: "Failed to decode the request body as JSON",
}

// ErrorInvalidName is returned when a domain, operation, model or entity name is malformed.
var ErrorInvalidName = serviceerror.ServiceError{
	Code:             "ORK-60002",
	Type:             serviceerror.ClientErrorType,
	Error:            "Invalid request",
	ErrorDescription: "Names may only contain letters, digits, underscores and hyphens",
}

// ErrorEndpointNotFound is returned when no endpoint is configured for a domain and operation.
var ErrorEndpointNotFound = serviceerror.ServiceError{
	Code:             "ORK-60003",
	Type:             serviceerror.ClientErrorType,
	Error:            "Endpoint not found",
	ErrorDescription: "No endpoint is configured for the requested domain and operation",
}

// ErrorNoDataFound is returned when the assembled response document is empty.
var ErrorNoDataFound = serviceerror.ServiceError{
	Code:             "ORK-60004",
	Type:             serviceerror.ClientErrorType,
	Error:            "Data not found",
	ErrorDescription: "No data was found for the request",
}

// ErrorExecutionNotFound is returned when an execution record is unknown or has expired.
var ErrorExecutionNotFound = serviceerror.ServiceError{
	Code:             "ORK-60005",
	Type:             serviceerror.ClientErrorType,
	Error:            "Execution not found",
	ErrorDescription: "No execution record exists for the given identifier",
}

// Server error structs

// ErrorDataSourceFailure is returned when a required step could not be satisfied.
var ErrorDataSourceFailure = serviceerror.ServiceError{
	Code:             "ORK-65001",
	Type:             serviceerror.ServerErrorType,
	Error:            "Data source failure",
	ErrorDescription: "A required data source could not be reached",
}

// ErrorInternalServerError is returned for any other failure while serving a request.
var ErrorInternalServerError = serviceerror.ServiceError{
	Code:             "ORK-65002",
	Type:             serviceerror.ServerErrorType,
	Error:            "Something went wrong",
	ErrorDescription: "Internal server error",
}

// notFoundErrorCodes lists the client errors reported with a 404 status.
var notFoundErrorCodes = map[string]struct{}{
	ErrorEndpointNotFound.Code:  {},
	ErrorNoDataFound.Code:       {},
	ErrorExecutionNotFound.Code: {},
}
