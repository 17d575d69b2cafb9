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

package utils

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type QueryBuilderTestSuite struct {
	suite.Suite
}

func TestQueryBuilderSuite(t *testing.T) {
	suite.Run(t, new(QueryBuilderTestSuite))
}

func (suite *QueryBuilderTestSuite) TestBuildSelectQuery() {
	query, params, err := BuildSelectQuery("select-customers", SelectSpec{
		Table:   "public.customers",
		Columns: []string{"id", "name"},
		Where:   []Condition{{Column: "tier", Value: "gold"}, {Column: "deleted_at", Value: nil}},
		OrderBy: []string{"name desc", "id"},
		Limit:   10,
		Offset:  20,
	})

	suite.NoError(err)
	suite.Equal("select-customers", query.ID)
	suite.Equal("SELECT id, name FROM public.customers WHERE tier = :w0 AND deleted_at IS NULL "+
		"ORDER BY name DESC, id LIMIT 10 OFFSET 20", query.Query)
	suite.Equal(map[string]interface{}{"w0": "gold"}, params)
}

func (suite *QueryBuilderTestSuite) TestBuildSelectAllColumns() {
	query, params, err := BuildSelectQuery("all", SelectSpec{Table: "customers"})

	suite.NoError(err)
	suite.Equal("SELECT * FROM customers", query.Query)
	suite.Empty(params)
}

func (suite *QueryBuilderTestSuite) TestOffsetWithoutLimit() {
	query, _, err := BuildSelectQuery("offset", SelectSpec{Table: "customers", Offset: 5})

	suite.NoError(err)
	suite.Equal("SELECT * FROM customers LIMIT -1 OFFSET 5", query.GetQuery("sqlite"))
	suite.Equal("SELECT * FROM customers LIMIT ALL OFFSET 5", query.GetQuery("postgres"))
}

func (suite *QueryBuilderTestSuite) TestRejectsUnsafeIdentifiers() {
	testCases := []struct {
		name string
		spec SelectSpec
	}{
		{"Table", SelectSpec{Table: "customers; DROP TABLE x"}},
		{"EmptyTable", SelectSpec{Table: ""}},
		{"Column", SelectSpec{Table: "customers", Columns: []string{"name--"}}},
		{"Filter", SelectSpec{Table: "customers", Where: []Condition{{Column: "id OR 1=1", Value: 1}}}},
		{"OrderColumn", SelectSpec{Table: "customers", OrderBy: []string{"na'me"}}},
		{"OrderDirection", SelectSpec{Table: "customers", OrderBy: []string{"name sideways"}}},
		{"NegativeLimit", SelectSpec{Table: "customers", Limit: -1}},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, _, err := BuildSelectQuery("invalid", tc.spec)
			suite.Error(err)
		})
	}
}

func (suite *QueryBuilderTestSuite) TestValidateKey() {
	suite.NoError(validateKey("schema.table_1"))
	suite.Error(validateKey("bad key"))
}
