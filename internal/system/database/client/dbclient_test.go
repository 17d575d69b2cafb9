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

package client

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/orkestra/internal/system/database/model"
)

type DBClientTestSuite struct {
	suite.Suite
	mockDB   *sql.DB
	mock     sqlmock.Sqlmock
	dbClient DBClientInterface
}

func TestDBClientSuite(t *testing.T) {
	suite.Run(t, new(DBClientTestSuite))
}

func (suite *DBClientTestSuite) SetupTest() {
	var err error
	suite.mockDB, suite.mock, err = sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		suite.T().Fatalf("Failed to create mock database: %v", err)
	}
	suite.dbClient = NewDBClient(sqlx.NewDb(suite.mockDB, "postgres"), "postgres")
}

func (suite *DBClientTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	_ = suite.mockDB.Close()
}

func (suite *DBClientTestSuite) TestQueryBindsNamedParameters() {
	query := model.DBQuery{
		ID:    "customer-by-id",
		Query: "SELECT ID, Name FROM customers WHERE id = :customer_id AND tier = :tier",
	}
	rows := sqlmock.NewRows([]string{"ID", "Name"}).
		AddRow("C001", "Ada").
		AddRow("C002", "Grace")
	suite.mock.ExpectQuery("SELECT ID, Name FROM customers WHERE id = $1 AND tier = $2").
		WithArgs("C001", "gold").
		WillReturnRows(rows)

	result, err := suite.dbClient.Query(context.Background(), query,
		map[string]interface{}{"customer_id": "C001", "tier": "gold"})

	suite.Require().NoError(err)
	suite.Equal([]string{"id", "name"}, result.Columns)
	suite.Len(result.Rows, 2)
	suite.Equal("Ada", result.Rows[0][1])
}

func (suite *DBClientTestSuite) TestQueryEmptyResult() {
	query := model.DBQuery{ID: "empty", Query: "SELECT id FROM customers"}
	suite.mock.ExpectQuery("SELECT id FROM customers").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := suite.dbClient.Query(context.Background(), query, nil)

	suite.NoError(err)
	suite.Empty(result.Rows)
	suite.NotNil(result.Rows)
}

func (suite *DBClientTestSuite) TestQueryMissingParameter() {
	query := model.DBQuery{ID: "missing", Query: "SELECT id FROM customers WHERE id = :id"}

	_, err := suite.dbClient.Query(context.Background(), query, map[string]interface{}{})

	suite.ErrorIs(err, ErrInvalidParameters)
}

func (suite *DBClientTestSuite) TestQueryError() {
	query := model.DBQuery{ID: "failing", Query: "SELECT id FROM customers"}
	suite.mock.ExpectQuery("SELECT id FROM customers").WillReturnError(errors.New("relation does not exist"))

	_, err := suite.dbClient.Query(context.Background(), query, nil)

	suite.EqualError(err, "relation does not exist")
}

func (suite *DBClientTestSuite) TestExecute() {
	query := model.DBQuery{ID: "touch", Query: "UPDATE customers SET seen = :seen WHERE id = :id"}
	suite.mock.ExpectExec("UPDATE customers SET seen = $1 WHERE id = $2").
		WithArgs(true, "C001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := suite.dbClient.Execute(context.Background(), query,
		map[string]interface{}{"id": "C001", "seen": true})

	suite.NoError(err)
	suite.Equal(int64(1), affected)
}

func (suite *DBClientTestSuite) TestPingAndClose() {
	suite.mock.ExpectClose()
	suite.NoError(suite.dbClient.Close())
}

func (suite *DBClientTestSuite) TestQueryVariantPerDriver() {
	query := model.DBQuery{
		ID:            "variant",
		Query:         "SELECT 1",
		PostgresQuery: "SELECT 2",
		SQLiteQuery:   "SELECT 3",
	}
	suite.Equal("SELECT 2", query.GetQuery("postgres"))
	suite.Equal("SELECT 3", query.GetQuery("sqlite"))
	suite.Equal("SELECT 1", query.GetQuery("other"))
	suite.Equal("variant", query.GetID())
}
