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

// Package utils provides utility functions for HTTP operations.
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/asgardeo/orkestra/internal/system/constants"
	"github.com/asgardeo/orkestra/internal/system/error/apierror"
	"github.com/asgardeo/orkestra/internal/system/log"
)

// MaxRequestBodySize bounds the request bodies read by ReadRequestBody.
const MaxRequestBodySize = 1 << 20

// ErrRequestBodyTooLarge is returned when a request body exceeds MaxRequestBodySize.
var ErrRequestBodyTooLarge = errors.New("request body is too large")

// ReadRequestBody reads the complete request body up to MaxRequestBodySize bytes.
func ReadRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(data) > MaxRequestBodySize {
		return nil, ErrRequestBodyTooLarge
	}
	return data, nil
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Error("Error encoding response", log.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// WriteErrorResponse writes an API error payload with the given status code.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, errResp apierror.ErrorResponse) {
	logger := log.GetLogger()
	if statusCode >= http.StatusInternalServerError {
		logger.Error("Error in HTTP response", log.String("code", errResp.Code),
			log.String("description", errResp.Description))
	} else {
		logger.Debug("Error in HTTP response", log.String("code", errResp.Code),
			log.String("description", errResp.Description))
	}
	WriteJSON(w, statusCode, errResp)
}
