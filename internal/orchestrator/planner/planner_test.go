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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/adapter/literal"
	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/cache"
	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/tests/mocks/adaptermock"
)

type PlannerTestSuite struct {
	suite.Suite
	registry   *adapter.Registry
	relational *adaptermock.MockAdapter
	scoring    *adaptermock.MockAdapter
	planner    *Planner
	request    *model.RequestContext
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerTestSuite))
}

func (suite *PlannerTestSuite) SetupTest() {
	suite.relational = &adaptermock.MockAdapter{
		MockExecute: func(ctx context.Context, req adapter.Request) (value.Value, error) {
			id, _ := req.Params.Get("customer_id")
			if s, _ := id.AsString(); s != "C001" {
				return value.Null, adapter.Errorf(adapter.ClassNotFound, req.SourceID, req.Operation, "no row")
			}
			return value.MappingOf(
				value.Entry{Key: "id", Value: value.String("C001")},
				value.Entry{Key: "name", Value: value.String("Ada")},
				value.Entry{Key: "segment", Value: value.String("premium")},
				value.Entry{Key: "income", Value: value.Number(120000)},
			), nil
		},
	}
	suite.scoring = &adaptermock.MockAdapter{
		MockExecute: func(ctx context.Context, req adapter.Request) (value.Value, error) {
			return value.MappingOf(value.Entry{Key: "score", Value: value.Number(0.12)}), nil
		},
	}

	suite.registry = adapter.NewRegistry()
	suite.registry.Register(adapter.SourceTypeRelational, suite.relational)
	suite.registry.Register(adapter.SourceTypeModel, suite.scoring)
	suite.registry.Register(adapter.SourceTypeLiteral, literal.New())
	suite.planner = NewPlanner(suite.registry, nil, nil, time.Second)
	suite.request = model.NewRequestContext(map[string]string{"entity_id": "C001"}, nil, value.Null,
		model.SystemValues{ExecutionID: "exec-1", Domain: "customer", Operation: "risk"})
}

func compileTemplate(src string) *expression.Template {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		panic(err)
	}
	tmpl, err := expression.CompileTemplate(node.Content[0])
	if err != nil {
		panic(err)
	}
	return tmpl
}

func compileCondition(src string) *expression.Condition {
	cond, err := expression.CompileCondition(src)
	if err != nil {
		panic(err)
	}
	return cond
}

func (suite *PlannerTestSuite) customerRiskEndpoint() *model.EndpointSpec {
	return &model.EndpointSpec{
		Domain:    "customer",
		Operation: "risk",
		Steps: []*model.StepSpec{
			{
				Name:       "customer",
				SourceType: adapter.SourceTypeRelational,
				SourceID:   "crm",
				Operation:  "get_one",
				Params:     compileTemplate(`{table: customers, customer_id: $request.path_params.entity_id}`),
				Required:   true,
			},
			{
				Name:       "risk",
				SourceType: adapter.SourceTypeModel,
				SourceID:   "ml",
				Operation:  "predict",
				Condition:  compileCondition(`$customer.segment == "premium"`),
				Params: compileTemplate(`{model: risk, features: {income: $customer.income, ` +
					`segment: $customer.segment}}`),
			},
		},
		PrimarySource: "customer",
		ResponseMapping: compileTemplate(`{id: $customer.id, name: $customer.name, ` +
			`risk_score: $risk.score || null}`),
	}
}

func (suite *PlannerTestSuite) TestCustomerRiskScenario() {
	endpoint := suite.customerRiskEndpoint()
	suite.Require().NoError(suite.planner.Validate(endpoint))

	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.Require().NoError(err)
	suite.Equal([]string{"customer", "risk"}, execCtx.Names())
	risk, ok := execCtx.Result("risk")
	suite.True(ok)
	suite.Equal(`{"score":0.12}`, risk.String())

	calls := suite.scoring.Calls()
	suite.Require().Len(calls, 1)
	suite.Equal("ml", calls[0].SourceID)
	suite.Equal(`{"model":"risk","features":{"income":120000,"segment":"premium"}}`, calls[0].Params.String())
	suite.Empty(execCtx.Failures())
}

func (suite *PlannerTestSuite) TestConditionFalseSkipsStep() {
	endpoint := suite.customerRiskEndpoint()
	endpoint.Steps[1].Condition = compileCondition(`$customer.segment == "basic"`)

	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.NoError(err)
	suite.Equal([]string{"customer"}, execCtx.Names())
	suite.Equal([]string{"risk"}, execCtx.Skipped())
	_, ok := execCtx.Result("risk")
	suite.False(ok)
	suite.Empty(suite.scoring.Calls())
}

func (suite *PlannerTestSuite) TestRequiredStepFailureStops() {
	request := model.NewRequestContext(map[string]string{"entity_id": "C404"}, nil, value.Null,
		model.SystemValues{ExecutionID: "exec-2"})

	execCtx, err := suite.planner.Execute(context.Background(), suite.customerRiskEndpoint(), request)

	var dsErr *model.DataSourceError
	suite.Require().ErrorAs(err, &dsErr)
	suite.Equal("customer", dsErr.Step)
	suite.Equal(adapter.ClassNotFound, dsErr.Class)
	suite.Empty(execCtx.Names())
	suite.Empty(suite.scoring.Calls())
}

func (suite *PlannerTestSuite) TestNonRequiredFailureStoresNull() {
	suite.scoring.MockExecute = func(ctx context.Context, req adapter.Request) (value.Value, error) {
		return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation, "connection refused")
	}

	execCtx, err := suite.planner.Execute(context.Background(), suite.customerRiskEndpoint(), suite.request)

	suite.NoError(err)
	risk, ok := execCtx.Result("risk")
	suite.True(ok)
	suite.True(risk.IsNull())
	failures := execCtx.Failures()
	suite.Require().Len(failures, 1)
	suite.Equal("risk", failures[0].Step)
	suite.Equal(adapter.ClassUnavailable, failures[0].Class)
}

func (suite *PlannerTestSuite) TestTimeoutAbandonsUnresponsiveAdapter() {
	release := make(chan struct{})
	defer close(release)
	suite.scoring.MockExecute = func(ctx context.Context, req adapter.Request) (value.Value, error) {
		<-release
		return value.String("late"), nil
	}
	endpoint := suite.customerRiskEndpoint()
	endpoint.Steps[1].Timeout = 20 * time.Millisecond

	start := time.Now()
	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.NoError(err)
	suite.Less(time.Since(start), time.Second)
	risk, _ := execCtx.Result("risk")
	suite.True(risk.IsNull())
	suite.Require().Len(execCtx.Failures(), 1)
	suite.Equal(adapter.ClassTimeout, execCtx.Failures()[0].Class)
}

func (suite *PlannerTestSuite) TestRequiredTimeoutFailsRequest() {
	suite.relational.MockExecute = func(ctx context.Context, req adapter.Request) (value.Value, error) {
		<-ctx.Done()
		return value.Null, ctx.Err()
	}
	endpoint := suite.customerRiskEndpoint()
	endpoint.Steps[0].Timeout = 10 * time.Millisecond

	_, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	var dsErr *model.DataSourceError
	suite.Require().ErrorAs(err, &dsErr)
	suite.Equal(adapter.ClassTimeout, dsErr.Class)
}

func (suite *PlannerTestSuite) TestStepFallbackStrategies() {
	var strategies []string
	suite.scoring.MockExecute = func(ctx context.Context, req adapter.Request) (value.Value, error) {
		strategies = append(strategies, req.Strategy)
		if req.Strategy != "rules" {
			return value.Null, adapter.Errorf(adapter.ClassUnavailable, req.SourceID, req.Operation, "down")
		}
		return value.MappingOf(value.Entry{Key: "score", Value: value.Number(0.5)}), nil
	}
	endpoint := suite.customerRiskEndpoint()
	endpoint.Steps[1].FallbackStrategies = []model.FallbackStrategy{
		{Strategy: "remote"}, {Strategy: "local"}, {Strategy: "rules"},
	}

	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.NoError(err)
	suite.Equal([]string{"remote", "local", "rules"}, strategies)
	risk, _ := execCtx.Result("risk")
	suite.Equal(`{"score":0.5}`, risk.String())
}

func (suite *PlannerTestSuite) TestFallbackOverridesSourceAndParams() {
	endpoint := suite.customerRiskEndpoint()
	endpoint.Steps[1].FallbackStrategies = []model.FallbackStrategy{
		{Strategy: "remote"},
		{SourceType: adapter.SourceTypeDirect, Params: compileTemplate(`{score: 0.99, origin: default}`)},
	}
	suite.scoring.MockExecute = func(ctx context.Context, req adapter.Request) (value.Value, error) {
		return value.Null, adapter.Errorf(adapter.ClassTimeout, req.SourceID, req.Operation, "slow")
	}

	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.NoError(err)
	risk, _ := execCtx.Result("risk")
	suite.Equal(`{"score":0.99,"origin":"default"}`, risk.String())
}

func (suite *PlannerTestSuite) TestFallbackStopsOnInvalidInput() {
	var calls int
	suite.scoring.MockExecute = func(ctx context.Context, req adapter.Request) (value.Value, error) {
		calls++
		return value.Null, adapter.Errorf(adapter.ClassInvalidInput, req.SourceID, req.Operation, "bad features")
	}
	endpoint := suite.customerRiskEndpoint()
	endpoint.Steps[1].FallbackStrategies = []model.FallbackStrategy{{Strategy: "remote"}, {Strategy: "rules"}}

	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.NoError(err)
	suite.Equal(1, calls)
	suite.Equal(adapter.ClassInvalidInput, execCtx.Failures()[0].Class)
}

func (suite *PlannerTestSuite) TestStepCache() {
	stepCache := cache.NewCache[value.Value]("steps", config.CacheConfig{Size: 10, TTL: time.Minute})
	suite.planner = NewPlanner(suite.registry, stepCache, nil, time.Second)
	endpoint := suite.customerRiskEndpoint()
	endpoint.Steps[0].CacheTTL = time.Minute

	for i := 0; i < 3; i++ {
		_, err := suite.planner.Execute(context.Background(), endpoint, suite.request)
		suite.Require().NoError(err)
	}

	suite.Len(suite.relational.Calls(), 1)
	suite.Len(suite.scoring.Calls(), 3)
}

func (suite *PlannerTestSuite) TestTransforms() {
	testCases := []struct {
		name      string
		transform *model.Transform
		expected  string
	}{
		{"SelectFields", &model.Transform{Type: model.TransformSelectFields, Fields: []string{"name", "id", "absent"}},
			`{"name":"Ada","id":"C001"}`},
		{"JSONPath", &model.Transform{Type: model.TransformJSONPath, Expression: "$.segment"}, `"premium"`},
		{"JSONPathNoMatch", &model.Transform{Type: model.TransformJSONPath, Expression: "$.missing"}, `null`},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			endpoint := suite.customerRiskEndpoint()
			endpoint.Steps = endpoint.Steps[:1]
			endpoint.Steps[0].Transform = tc.transform
			endpoint.ResponseMapping = nil
			suite.Require().NoError(suite.planner.Validate(endpoint))

			execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

			suite.Require().NoError(err)
			customer, _ := execCtx.Result("customer")
			suite.Equal(tc.expected, customer.String())
		})
	}
}

func (suite *PlannerTestSuite) TestEndpointTypeFilter() {
	endpoint := suite.customerRiskEndpoint()
	endpoint.EndpointType = string(adapter.SourceTypeModel)
	endpoint.Steps[1].Condition = nil
	endpoint.Steps[1].Params = compileTemplate(`{model: risk, features: {}}`)

	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.NoError(err)
	suite.Equal([]string{"risk"}, execCtx.Names())
	suite.Empty(suite.relational.Calls())
}

func (suite *PlannerTestSuite) TestCancelledContextStops() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.planner.Execute(ctx, suite.customerRiskEndpoint(), suite.request)

	suite.ErrorIs(err, context.Canceled)
	suite.Empty(suite.relational.Calls())
}

func (suite *PlannerTestSuite) TestLiteralStepRendersParams() {
	endpoint := &model.EndpointSpec{
		Domain: "demo", Operation: "echo",
		Steps: []*model.StepSpec{{
			Name:       "echo",
			SourceType: adapter.SourceTypeDirect,
			Params:     compileTemplate(`{id: $request.path_params.entity_id, tags: [a, $request.body.missing]}`),
		}},
		PrimarySource: "echo",
	}
	suite.Require().NoError(suite.planner.Validate(endpoint))

	execCtx, err := suite.planner.Execute(context.Background(), endpoint, suite.request)

	suite.NoError(err)
	echo, _ := execCtx.Result("echo")
	suite.Equal(`{"id":"C001","tags":["a",null]}`, echo.String())
}

func (suite *PlannerTestSuite) TestAdapterErrorIsNotSwallowedForRequired() {
	suite.relational.MockExecute = func(ctx context.Context, req adapter.Request) (value.Value, error) {
		return value.Null, errors.New("driver panic")
	}

	_, err := suite.planner.Execute(context.Background(), suite.customerRiskEndpoint(), suite.request)

	var dsErr *model.DataSourceError
	suite.Require().ErrorAs(err, &dsErr)
	suite.Equal(adapter.ClassFatal, dsErr.Class)
	suite.Contains(dsErr.Error(), "driver panic")
}
