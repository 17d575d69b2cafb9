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

package provider

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/database/model"
)

type DBProviderTestSuite struct {
	suite.Suite
	home     string
	provider *DBProvider
}

func TestDBProviderSuite(t *testing.T) {
	suite.Run(t, new(DBProviderTestSuite))
}

func (suite *DBProviderTestSuite) SetupTest() {
	suite.home = suite.T().TempDir()
	suite.provider = NewDBProvider(suite.home, map[string]config.DataSource{
		"default": {Type: "sqlite", Path: "orkestra.db", Options: "_pragma=busy_timeout(5000)"},
		"broken":  {Type: "oracle"},
	})
}

func (suite *DBProviderTestSuite) TearDownTest() {
	suite.NoError(suite.provider.Close())
}

func (suite *DBProviderTestSuite) TestSQLiteClientRunsNamedQueries() {
	dbClient, err := suite.provider.GetDBClient("default")
	suite.Require().NoError(err)

	ctx := context.Background()
	_, err = dbClient.Execute(ctx, model.DBQuery{ID: "create",
		Query: "CREATE TABLE customers (id TEXT PRIMARY KEY, name TEXT, score INTEGER)"}, nil)
	suite.Require().NoError(err)

	affected, err := dbClient.Execute(ctx, model.DBQuery{ID: "insert",
		Query: "INSERT INTO customers (id, name, score) VALUES (:id, :name, :score)"},
		map[string]interface{}{"id": "C001", "name": "Ada", "score": 720})
	suite.Require().NoError(err)
	suite.Equal(int64(1), affected)

	result, err := dbClient.Query(ctx, model.DBQuery{ID: "select",
		Query: "SELECT ID, name, score FROM customers WHERE id = :id"}, map[string]interface{}{"id": "C001"})
	suite.Require().NoError(err)
	suite.Equal([]string{"id", "name", "score"}, result.Columns)
	suite.Require().Len(result.Rows, 1)
	suite.Equal("Ada", result.Rows[0][1])

	again, err := suite.provider.GetDBClient("default")
	suite.NoError(err)
	suite.Same(dbClient, again)
	suite.FileExists(filepath.Join(suite.home, "orkestra.db"))
}

func (suite *DBProviderTestSuite) TestUnknownSource() {
	_, err := suite.provider.GetDBClient("missing")
	suite.EqualError(err, "unknown relational source: missing")

	_, err = suite.provider.GetDBType("missing")
	suite.Error(err)
}

func (suite *DBProviderTestSuite) TestUnsupportedType() {
	_, err := suite.provider.GetDBClient("broken")
	suite.EqualError(err, "relational source broken: unsupported database type: oracle")
}

func (suite *DBProviderTestSuite) TestCheckHealth() {
	health := suite.provider.CheckHealth(context.Background())
	suite.NoError(health["default"])
	suite.Error(health["broken"])
}

func (suite *DBProviderTestSuite) TestPostgresDSN() {
	cfg, err := suite.provider.getDBConfig(config.DataSource{Type: "postgres", Hostname: "db", Port: 5432,
		Username: "orkestra", Password: "secret", Name: "warehouse"})
	suite.NoError(err)
	suite.Equal("postgres", cfg.driverName)
	suite.Equal("host=db port=5432 user=orkestra password=secret dbname=warehouse sslmode=disable", cfg.dsn)
}

func (suite *DBProviderTestSuite) TestSQLiteAbsolutePath() {
	cfg, err := suite.provider.getDBConfig(config.DataSource{Type: "sqlite", Path: "/var/lib/o.db", Options: "?a=b"})
	suite.NoError(err)
	suite.Equal("/var/lib/o.db?a=b", cfg.dsn)
}
