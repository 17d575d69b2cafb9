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

// Package assembler renders the response document of an endpoint from its execution context.
package assembler

import (
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

// Assemble renders the response mapping against the execution context, or returns the
// primary source result when the endpoint has no mapping. Fields resolving to missing are
// omitted. The context is not modified.
func Assemble(endpoint *model.EndpointSpec, execCtx *model.ExecutionContext) value.Lookup {
	if endpoint.ResponseMapping == nil {
		result, ok := execCtx.Result(endpoint.PrimarySource)
		if !ok {
			return value.Missing()
		}
		return value.Present(result)
	}
	return endpoint.ResponseMapping.Render(execCtx)
}
