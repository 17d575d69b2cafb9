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

// Package model defines the endpoint definitions, per request contexts and error taxonomy
// of the orchestration engine.
package model

import (
	"time"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// EndpointTypeComposite runs every step regardless of its source type.
const EndpointTypeComposite = "composite"

// EndpointSpec is a validated, immutable endpoint definition shared across requests.
type EndpointSpec struct {
	Domain        string
	Operation     string
	Description   string
	EndpointType  string
	Steps         []*StepSpec
	PrimarySource string
	// ResponseMapping is nil when the primary source result is returned unchanged.
	ResponseMapping *expression.Template
	InputSchema     value.Value
	OutputSchema    value.Value
}

// Key returns the "<domain>/<operation>" identifier of the endpoint.
func (e *EndpointSpec) Key() string {
	return e.Domain + "/" + e.Operation
}

// Step returns the step declared under name.
func (e *EndpointSpec) Step(name string) (*StepSpec, bool) {
	for _, step := range e.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return nil, false
}

// StepSpec declares one named data retrieval.
type StepSpec struct {
	Name               string
	SourceType         adapter.SourceType
	SourceID           string
	Operation          string
	Params             *expression.Template
	Condition          *expression.Condition
	FallbackStrategies []FallbackStrategy
	Required           bool
	Timeout            time.Duration
	Transform          *Transform
	CacheTTL           time.Duration
}

// FallbackStrategy is one attempt of a step level fallback chain. Empty fields inherit
// from the step.
type FallbackStrategy struct {
	Strategy   string
	SourceType adapter.SourceType
	SourceID   string
	Operation  string
	Params     *expression.Template
}

// TransformType selects how a step result is reshaped before it is stored.
type TransformType string

const (
	// TransformSelectFields keeps only the listed fields.
	TransformSelectFields TransformType = "select_fields"
	// TransformJSONPath replaces the result with a JSONPath query over it.
	TransformJSONPath TransformType = "jsonpath"
)

// Transform reshapes a step result.
type Transform struct {
	Type       TransformType
	Fields     []string
	Expression string
}
