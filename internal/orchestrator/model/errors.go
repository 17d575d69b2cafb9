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

package model

import (
	"fmt"
	"strings"

	"github.com/asgardeo/orkestra/internal/adapter"
)

// ConfigError reports an invalid endpoint definition. It is raised only while loading.
type ConfigError struct {
	Endpoint string
	Step     string
	Field    string
	Err      error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	location := make([]string, 0, 3)
	if e.Endpoint != "" {
		location = append(location, "endpoint "+e.Endpoint)
	}
	if e.Step != "" {
		location = append(location, "step "+e.Step)
	}
	if e.Field != "" {
		location = append(location, "field "+e.Field)
	}
	if len(location) == 0 {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", strings.Join(location, ", "), e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DataSourceError reports a required step that failed. It aborts the request.
type DataSourceError struct {
	Step       string
	SourceType adapter.SourceType
	Class      adapter.ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *DataSourceError) Error() string {
	return fmt.Sprintf("required step %s (%s) failed with %s: %v", e.Step, e.SourceType, e.Class, e.Err)
}

// Unwrap returns the underlying error.
func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// PartialDataError records a non-required step that failed. Execution continues with a
// null result for the step.
type PartialDataError struct {
	Step       string
	SourceType adapter.SourceType
	Class      adapter.ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *PartialDataError) Error() string {
	return fmt.Sprintf("step %s (%s) failed with %s: %v", e.Step, e.SourceType, e.Class, e.Err)
}

// Unwrap returns the underlying error.
func (e *PartialDataError) Unwrap() error {
	return e.Err
}

// LoadError reports a model that could not be brought up. Callers degrade to the
// statically configured base URL.
type LoadError struct {
	SourceID string
	ModelID  string
	Strategy string
	Err      error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %s/%s with strategy %s: %v", e.SourceID, e.ModelID, e.Strategy, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
