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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

type ContextTestSuite struct {
	suite.Suite
	request *RequestContext
}

func TestContextSuite(t *testing.T) {
	suite.Run(t, new(ContextTestSuite))
}

func (suite *ContextTestSuite) SetupTest() {
	body, err := value.FromJSON([]byte(`{"amount": 250}`))
	suite.Require().NoError(err)
	suite.request = NewRequestContext(
		map[string]string{"entity_id": "C001"},
		map[string][]string{"verbose": {"true"}, "tag": {"a", "b"}},
		body,
		SystemValues{
			ExecutionID: "exec-1",
			Domain:      "customer",
			Operation:   "profile",
			Timestamp:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	)
}

func (suite *ContextTestSuite) TestRequestDocument() {
	ctx := NewExecutionContext(suite.request)

	resolve := func(text string) value.Value {
		return expression.MustCompile(text).Resolve(ctx).Value()
	}
	suite.True(resolve("$request.path_params.entity_id").Equal(value.String("C001")))
	suite.True(resolve("$request.query_params.verbose").Equal(value.String("true")))
	suite.Equal(2, resolve("$request.query_params.tag").Len())
	suite.True(resolve("$request.body.amount").Equal(value.Int(250)))
	suite.True(resolve("$request.system.execution_id").Equal(value.String("exec-1")))
	suite.True(resolve("$request.system.timestamp").Equal(value.String("2025-01-02T03:04:05Z")))
	suite.Equal([]string{"path_params", "query_params", "body", "system"}, suite.request.Value().Keys())
}

func (suite *ContextTestSuite) TestSetIsAppendOnly() {
	ctx := NewExecutionContext(suite.request)

	suite.NoError(ctx.Set("customer", value.String("x")))
	suite.NoError(ctx.Set("risk", value.Null))
	suite.Error(ctx.Set("customer", value.String("y")))
	suite.Error(ctx.Set(expression.RequestRoot, value.Null))

	result, ok := ctx.Result("customer")
	suite.True(ok)
	suite.True(result.Equal(value.String("x")))
	suite.Equal([]string{"customer", "risk"}, ctx.Names())

	lookup := expression.MustCompile("$risk").Resolve(ctx)
	suite.True(lookup.IsNull())
	suite.True(expression.MustCompile("$unknown").Resolve(ctx).IsMissing())
}

func (suite *ContextTestSuite) TestSkippedAndFailures() {
	ctx := NewExecutionContext(suite.request)
	ctx.MarkSkipped("risk")
	ctx.RecordFailure(&PartialDataError{Step: "credit", SourceType: adapter.SourceTypeHTTPAPI,
		Class: adapter.ClassTimeout, Err: errors.New("deadline")})

	suite.Equal([]string{"risk"}, ctx.Skipped())
	suite.Len(ctx.Failures(), 1)
	suite.Equal("credit", ctx.Failures()[0].Step)
}

func (suite *ContextTestSuite) TestErrorMessages() {
	cause := errors.New("boom")

	configErr := &ConfigError{Endpoint: "customer/profile", Step: "risk", Field: "source_type", Err: cause}
	suite.Equal("configuration error in endpoint customer/profile, step risk, field source_type: boom",
		configErr.Error())
	suite.ErrorIs(configErr, cause)
	suite.Equal("configuration error: boom", (&ConfigError{Err: cause}).Error())

	dsErr := &DataSourceError{Step: "customer", SourceType: adapter.SourceTypeRelational,
		Class: adapter.ClassUnavailable, Err: cause}
	suite.Equal("required step customer (relational) failed with Unavailable: boom", dsErr.Error())
	suite.ErrorIs(dsErr, cause)

	loadErr := &LoadError{SourceID: "default", ModelID: "iris", Strategy: "local_artifact", Err: cause}
	suite.Contains(loadErr.Error(), "default/iris")
	suite.ErrorIs(loadErr, cause)
}

func (suite *ContextTestSuite) TestEndpointSpecLookup() {
	spec := &EndpointSpec{
		Domain:    "customer",
		Operation: "profile",
		Steps:     []*StepSpec{{Name: "customer"}, {Name: "risk"}},
	}
	suite.Equal("customer/profile", spec.Key())

	step, ok := spec.Step("risk")
	suite.True(ok)
	suite.Equal("risk", step.Name)
	_, ok = spec.Step("missing")
	suite.False(ok)
}
