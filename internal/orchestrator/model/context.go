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
	"sort"
	"time"

	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// SystemValues are the engine provided values exposed under request.system.
type SystemValues struct {
	ExecutionID string
	Domain      string
	Operation   string
	Timestamp   time.Time
}

// RequestContext is the immutable view of an inbound request.
type RequestContext struct {
	doc    value.Value
	system SystemValues
}

// NewRequestContext builds a request context. Single valued query parameters become
// strings and repeated ones become sequences of strings.
func NewRequestContext(pathParams map[string]string, queryParams map[string][]string, body value.Value,
	system SystemValues) *RequestContext {
	pathBuilder := value.NewMappingBuilder(len(pathParams))
	for _, key := range sortedKeys(pathParams) {
		pathBuilder.Set(key, value.String(pathParams[key]))
	}

	queryKeys := make([]string, 0, len(queryParams))
	for key := range queryParams {
		queryKeys = append(queryKeys, key)
	}
	sort.Strings(queryKeys)
	queryBuilder := value.NewMappingBuilder(len(queryKeys))
	for _, key := range queryKeys {
		values := queryParams[key]
		switch len(values) {
		case 0:
			queryBuilder.Set(key, value.String(""))
		case 1:
			queryBuilder.Set(key, value.String(values[0]))
		default:
			items := make([]value.Value, len(values))
			for i, v := range values {
				items[i] = value.String(v)
			}
			queryBuilder.Set(key, value.Sequence(items...))
		}
	}

	timestamp := system.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	systemValue := value.MappingOf(
		value.Entry{Key: "execution_id", Value: value.String(system.ExecutionID)},
		value.Entry{Key: "domain", Value: value.String(system.Domain)},
		value.Entry{Key: "operation", Value: value.String(system.Operation)},
		value.Entry{Key: "timestamp", Value: value.String(timestamp.UTC().Format(time.RFC3339))},
	)

	system.Timestamp = timestamp
	doc := value.MappingOf(
		value.Entry{Key: "path_params", Value: pathBuilder.Build()},
		value.Entry{Key: "query_params", Value: queryBuilder.Build()},
		value.Entry{Key: "body", Value: body},
		value.Entry{Key: "system", Value: systemValue},
	)
	return &RequestContext{doc: doc, system: system}
}

// System returns the engine provided values of the request.
func (r *RequestContext) System() SystemValues {
	return r.system
}

// Value returns the request as a document with path_params, query_params, body and system.
func (r *RequestContext) Value() value.Value {
	return r.doc
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ExecutionContext accumulates step results of one request. It is append only and
// never shared between requests.
type ExecutionContext struct {
	request  *RequestContext
	names    []string
	results  map[string]value.Value
	skipped  []string
	failures []*PartialDataError
}

// NewExecutionContext creates an empty execution context for a request.
func NewExecutionContext(request *RequestContext) *ExecutionContext {
	return &ExecutionContext{
		request: request,
		results: make(map[string]value.Value),
	}
}

var _ expression.Scope = (*ExecutionContext)(nil)

// Lookup resolves a root selector to the request or a stored step result.
func (c *ExecutionContext) Lookup(root string) (value.Value, bool) {
	if root == expression.RequestRoot {
		return c.request.Value(), true
	}
	result, ok := c.results[root]
	return result, ok
}

// Set stores the result of a step. A name can be stored only once.
func (c *ExecutionContext) Set(name string, result value.Value) error {
	if name == expression.RequestRoot {
		return fmt.Errorf("step name %q is reserved", name)
	}
	if _, exists := c.results[name]; exists {
		return fmt.Errorf("step %q already has a result", name)
	}
	c.names = append(c.names, name)
	c.results[name] = result
	return nil
}

// Result returns the stored result of a step.
func (c *ExecutionContext) Result(name string) (value.Value, bool) {
	result, ok := c.results[name]
	return result, ok
}

// Names returns the names of the stored steps in execution order.
func (c *ExecutionContext) Names() []string {
	names := make([]string, len(c.names))
	copy(names, c.names)
	return names
}

// Request returns the request context.
func (c *ExecutionContext) Request() *RequestContext {
	return c.request
}

// MarkSkipped records a step whose condition was false.
func (c *ExecutionContext) MarkSkipped(name string) {
	c.skipped = append(c.skipped, name)
}

// Skipped returns the steps skipped by their condition.
func (c *ExecutionContext) Skipped() []string {
	skipped := make([]string, len(c.skipped))
	copy(skipped, c.skipped)
	return skipped
}

// RecordFailure records a non-required step failure.
func (c *ExecutionContext) RecordFailure(failure *PartialDataError) {
	c.failures = append(c.failures, failure)
}

// Failures returns the recorded non-required step failures.
func (c *ExecutionContext) Failures() []*PartialDataError {
	failures := make([]*PartialDataError, len(c.failures))
	copy(failures, c.failures)
	return failures
}
