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

package assembler

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"

	"github.com/asgardeo/orkestra/internal/orchestrator/expression"
	"github.com/asgardeo/orkestra/internal/orchestrator/model"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
)

type AssemblerTestSuite struct {
	suite.Suite
	execCtx *model.ExecutionContext
}

func TestAssemblerSuite(t *testing.T) {
	suite.Run(t, new(AssemblerTestSuite))
}

func (suite *AssemblerTestSuite) SetupTest() {
	request := model.NewRequestContext(map[string]string{"entity_id": "C001"}, nil, value.Null,
		model.SystemValues{ExecutionID: "exec-1"})
	suite.execCtx = model.NewExecutionContext(request)

	orders, err := value.FromJSON([]byte(`[{"id":"O1","total":10},{"id":"O2","total":25.5},{"total":3}]`))
	suite.Require().NoError(err)
	suite.Require().NoError(suite.execCtx.Set("customer", value.MappingOf(
		value.Entry{Key: "id", Value: value.String("C001")},
		value.Entry{Key: "name", Value: value.String("Ada")},
	)))
	suite.Require().NoError(suite.execCtx.Set("orders", orders))
	suite.Require().NoError(suite.execCtx.Set("risk", value.Null))
}

func (suite *AssemblerTestSuite) template(src string) *expression.Template {
	var node yaml.Node
	suite.Require().NoError(yaml.Unmarshal([]byte(src), &node))
	tmpl, err := expression.CompileTemplate(node.Content[0])
	suite.Require().NoError(err)
	return tmpl
}

func (suite *AssemblerTestSuite) TestRendersMapping() {
	endpoint := &model.EndpointSpec{ResponseMapping: suite.template(`
customer_id: $request.path_params.entity_id
name: $customer.name
risk_score: $risk.score
risk_level: $risk.level || "unknown"
source: crm
`)}

	doc := Assemble(endpoint, suite.execCtx)

	suite.True(doc.HasValue())
	suite.Equal(`{"customer_id":"C001","name":"Ada","risk_level":"unknown","source":"crm"}`, doc.Value().String())
}

func (suite *AssemblerTestSuite) TestBroadcastExpandsToSequence() {
	endpoint := &model.EndpointSpec{ResponseMapping: suite.template(`
order_ids: $orders[*].id
totals: $orders[*].total
`)}

	doc := Assemble(endpoint, suite.execCtx).Value()

	ids, _ := doc.Get("order_ids")
	suite.Equal(`["O1","O2",null]`, ids.String())
	totals, _ := doc.Get("totals")
	orders, _ := suite.execCtx.Result("orders")
	suite.Require().Equal(orders.Len(), totals.Len())
	for i, order := range orders.Items() {
		total, _ := order.Get("total")
		item, _ := totals.Index(i)
		suite.True(total.Equal(item))
	}
}

func (suite *AssemblerTestSuite) TestSequenceKeepsMissingAsNull() {
	endpoint := &model.EndpointSpec{ResponseMapping: suite.template(`[$customer.id, $customer.email, $risk]`)}

	doc := Assemble(endpoint, suite.execCtx)

	suite.Equal(`["C001",null,null]`, doc.Value().String())
}

func (suite *AssemblerTestSuite) TestAssemblyIsIdempotent() {
	endpoint := &model.EndpointSpec{ResponseMapping: suite.template(`
profile: {id: $customer.id, name: $customer.name}
orders: $orders
`)}
	namesBefore := suite.execCtx.Names()

	first := Assemble(endpoint, suite.execCtx)
	second := Assemble(endpoint, suite.execCtx)

	suite.True(first.Value().Equal(second.Value()))
	suite.Equal(first.Value().String(), second.Value().String())
	suite.Equal(namesBefore, suite.execCtx.Names())
}

func (suite *AssemblerTestSuite) TestPassThroughPrimarySource() {
	endpoint := &model.EndpointSpec{PrimarySource: "customer"}

	doc := Assemble(endpoint, suite.execCtx)

	suite.Equal(`{"id":"C001","name":"Ada"}`, doc.Value().String())
}

func (suite *AssemblerTestSuite) TestPassThroughOfNullAndSkippedSteps() {
	suite.True(Assemble(&model.EndpointSpec{PrimarySource: "risk"}, suite.execCtx).IsNull())
	suite.True(Assemble(&model.EndpointSpec{PrimarySource: "skipped"}, suite.execCtx).IsMissing())
}

func (suite *AssemblerTestSuite) TestScalarMappingResolvingToMissing() {
	endpoint := &model.EndpointSpec{ResponseMapping: suite.template(`$customer.address`)}

	suite.True(Assemble(endpoint, suite.execCtx).IsMissing())
}
