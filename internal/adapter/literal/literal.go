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

// Package literal provides the adapter that returns its rendered parameters unchanged.
package literal

import (
	"context"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// Adapter returns the rendered parameters of a step as its result.
type Adapter struct{}

// New creates a literal adapter.
func New() *Adapter {
	return &Adapter{}
}

// Execute returns the parameters for any operation.
func (a *Adapter) Execute(_ context.Context, req adapter.Request) (value.Value, error) {
	return req.Params, nil
}
