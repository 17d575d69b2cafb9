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
	"time"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
)

func (suite *PlannerTestSuite) TestValidateRejectsInvalidEndpoints() {
	testCases := []struct {
		name   string
		mutate func(e *model.EndpointSpec)
		field  string
		errMsg string
	}{
		{
			name: "LaterStepReference",
			mutate: func(e *model.EndpointSpec) {
				e.Steps[0].Params = compileTemplate(`{customer_id: $risk.score}`)
			},
			field:  "params",
			errMsg: `references step "risk" before it is executed`,
		},
		{
			name: "SelfReferenceInCondition",
			mutate: func(e *model.EndpointSpec) {
				e.Steps[1].Condition = compileCondition(`$risk.score != null`)
			},
			field:  "condition",
			errMsg: `references step "risk" before it is executed`,
		},
		{
			name: "UnknownStep",
			mutate: func(e *model.EndpointSpec) {
				e.Steps[1].Params = compileTemplate(`{model: risk, features: $profile}`)
			},
			field:  "params",
			errMsg: `references unknown step "profile"`,
		},
		{
			name: "FallbackParamsReference",
			mutate: func(e *model.EndpointSpec) {
				e.Steps[0].FallbackStrategies = []model.FallbackStrategy{
					{Strategy: "primary"},
					{Strategy: "replica", Params: compileTemplate(`{id: $risk.id}`)},
				}
			},
			field:  "fallback_strategies[1].params",
			errMsg: "before it is executed",
		},
		{
			name:   "ReservedName",
			mutate: func(e *model.EndpointSpec) { e.Steps[1].Name = "request" },
			field:  "name",
			errMsg: "is reserved",
		},
		{
			name:   "DuplicateName",
			mutate: func(e *model.EndpointSpec) { e.Steps[1].Name = "customer" },
			field:  "name",
			errMsg: "duplicate step name",
		},
		{
			name:   "UnregisteredSourceType",
			mutate: func(e *model.EndpointSpec) { e.Steps[1].SourceType = "graphql" },
			field:  "source_type",
			errMsg: `no adapter registered for source type "graphql"`,
		},
		{
			name:   "UnknownPrimarySource",
			mutate: func(e *model.EndpointSpec) { e.PrimarySource = "account" },
			field:  "primary_source",
			errMsg: "is not a declared step",
		},
		{
			name: "ResponseMappingUnknownStep",
			mutate: func(e *model.EndpointSpec) {
				e.ResponseMapping = compileTemplate(`{balance: $account.balance}`)
			},
			field:  "response_mapping",
			errMsg: `references unknown step "account"`,
		},
		{
			name: "NoResponse",
			mutate: func(e *model.EndpointSpec) {
				e.ResponseMapping = nil
				e.PrimarySource = ""
			},
			field:  "response_mapping",
			errMsg: "either response_mapping or primary_source is required",
		},
		{
			name: "InvalidJSONPath",
			mutate: func(e *model.EndpointSpec) {
				e.Steps[0].Transform = &model.Transform{Type: model.TransformJSONPath, Expression: "$.a["}
			},
			field:  "transform",
			errMsg: "invalid jsonpath expression",
		},
		{
			name: "SelectFieldsWithoutFields",
			mutate: func(e *model.EndpointSpec) {
				e.Steps[0].Transform = &model.Transform{Type: model.TransformSelectFields}
			},
			field:  "transform",
			errMsg: "requires fields",
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			endpoint := suite.customerRiskEndpoint()
			tc.mutate(endpoint)

			err := suite.planner.Validate(endpoint)

			var cfgErr *model.ConfigError
			suite.Require().ErrorAs(err, &cfgErr)
			suite.Equal("customer/risk", cfgErr.Endpoint)
			suite.Equal(tc.field, cfgErr.Field)
			suite.Contains(err.Error(), tc.errMsg)
		})
	}
}

func (suite *PlannerTestSuite) TestValidateAcceptsResponseMappingOverAnyStep() {
	endpoint := suite.customerRiskEndpoint()
	endpoint.PrimarySource = ""
	endpoint.Steps[0].Timeout = time.Second
	endpoint.Steps[1].SourceType = adapter.SourceTypeDirect

	suite.NoError(suite.planner.Validate(endpoint))
}
