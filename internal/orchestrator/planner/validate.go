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

package planner

import (
	"errors"
	"fmt"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
)

// Validate checks an endpoint before it is served. Step params and conditions may only
// reference the request or steps declared earlier; the response mapping may reference any
// step. Every source type must have a registered adapter.
func (p *Planner) Validate(endpoint *model.EndpointSpec) error {
	declared := make(map[string]int, len(endpoint.Steps))
	for i, step := range endpoint.Steps {
		if step.Name == "" {
			return configError(endpoint, "", "name", errors.New("step name is required"))
		}
		if _, dup := declared[step.Name]; dup {
			return configError(endpoint, step.Name, "name", fmt.Errorf("duplicate step name %q", step.Name))
		}
		declared[step.Name] = i
	}

	available := map[string]struct{}{expression.RequestRoot: {}}
	for _, step := range endpoint.Steps {
		if step.Name == expression.RequestRoot {
			return configError(endpoint, step.Name, "name", fmt.Errorf("step name %q is reserved", step.Name))
		}
		if err := p.checkSourceType(step.SourceType); err != nil {
			return configError(endpoint, step.Name, "source_type", err)
		}
		if step.Params != nil {
			if err := checkRoots(step.Params.Roots(), available, declared); err != nil {
				return configError(endpoint, step.Name, "params", err)
			}
		}
		if step.Condition != nil {
			if err := checkRoots(step.Condition.Roots(), available, declared); err != nil {
				return configError(endpoint, step.Name, "condition", err)
			}
		}
		for i, fs := range step.FallbackStrategies {
			field := fmt.Sprintf("fallback_strategies[%d]", i)
			if fs.SourceType != "" {
				if err := p.checkSourceType(fs.SourceType); err != nil {
					return configError(endpoint, step.Name, field+".source_type", err)
				}
			}
			if fs.Params != nil {
				if err := checkRoots(fs.Params.Roots(), available, declared); err != nil {
					return configError(endpoint, step.Name, field+".params", err)
				}
			}
		}
		if step.Transform != nil {
			if err := validateTransform(step.Transform); err != nil {
				return configError(endpoint, step.Name, "transform", err)
			}
		}
		available[step.Name] = struct{}{}
	}

	if endpoint.PrimarySource != "" {
		if _, ok := declared[endpoint.PrimarySource]; !ok {
			return configError(endpoint, "", "primary_source",
				fmt.Errorf("primary_source %q is not a declared step", endpoint.PrimarySource))
		}
	}
	if endpoint.ResponseMapping == nil {
		if endpoint.PrimarySource == "" {
			return configError(endpoint, "", "response_mapping",
				errors.New("either response_mapping or primary_source is required"))
		}
		return nil
	}
	if err := checkRoots(endpoint.ResponseMapping.Roots(), available, declared); err != nil {
		return configError(endpoint, "", "response_mapping", err)
	}
	return nil
}

func (p *Planner) checkSourceType(sourceType adapter.SourceType) error {
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if _, ok := p.registry.Get(sourceType); !ok {
		return fmt.Errorf("no adapter registered for source type %q", sourceType)
	}
	return nil
}

func checkRoots(roots []string, available map[string]struct{}, declared map[string]int) error {
	for _, root := range roots {
		if _, ok := available[root]; ok {
			continue
		}
		if _, ok := declared[root]; ok {
			return fmt.Errorf("references step %q before it is executed", root)
		}
		return fmt.Errorf("references unknown step %q", root)
	}
	return nil
}

func configError(endpoint *model.EndpointSpec, step, field string, err error) *model.ConfigError {
	return &model.ConfigError{Endpoint: endpoint.Key(), Step: step, Field: field, Err: err}
}
