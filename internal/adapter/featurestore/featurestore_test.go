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

package featurestore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/orkestra/internal/adapter"
	"github.com/asgardeo/orkestra/internal/adapter/relational"
	"github.com/asgardeo/orkestra/internal/orchestrator/value"
	"github.com/asgardeo/orkestra/internal/system/config"
	"github.com/asgardeo/orkestra/internal/system/database/model"
	"github.com/asgardeo/orkestra/internal/system/database/provider"
)

type FeatureStoreTestSuite struct {
	suite.Suite
	redis      *miniredis.Miniredis
	dbProvider *provider.DBProvider
	adapter    *Adapter
	advanced   []string
}

func TestFeatureStoreSuite(t *testing.T) {
	suite.Run(t, new(FeatureStoreTestSuite))
}

func (suite *FeatureStoreTestSuite) SetupTest() {
	suite.redis = miniredis.RunT(suite.T())
	suite.advanced = nil

	suite.dbProvider = provider.NewDBProvider(suite.T().TempDir(), map[string]config.DataSource{
		"default": {Type: "sqlite", Path: "features.db"},
	})
	dbClient, err := suite.dbProvider.GetDBClient("default")
	suite.Require().NoError(err)
	ctx := context.Background()
	_, err = dbClient.Execute(ctx, model.DBQuery{ID: "create", Query: "CREATE TABLE customer_features " +
		"(customer_id TEXT PRIMARY KEY, credit_score INTEGER, ltv REAL)"}, nil)
	suite.Require().NoError(err)
	_, err = dbClient.Execute(ctx, model.DBQuery{ID: "seed", Query: "INSERT INTO customer_features VALUES " +
		"('C001', 720, 1500.5), ('C002', 640, 300)"}, nil)
	suite.Require().NoError(err)

	suite.adapter, err = New(map[string]config.FeatureStoreSource{
		"default": {
			Address: suite.redis.Addr(),
			Project: "customer_360",
			DatabaseFallback: &config.DatabaseFallback{
				SourceID:     "default",
				Table:        "customer_features",
				EntityColumn: "customer_id",
				Columns: map[string]string{
					"customer_features:credit_score":   "credit_score",
					"customer_features:lifetime_value": "ltv",
				},
			},
		},
		"online_only": {URL: "redis://" + suite.redis.Addr() + "/0"},
	}, relational.New(suite.dbProvider), func(strategy string, err error) {
		suite.advanced = append(suite.advanced, strategy)
	})
	suite.Require().NoError(err)

	suite.redis.HSet("customer_360:customer_features:C001", "credit_score", "720", "lifetime_value", "1500.5")
	suite.redis.HSet("customer_360:customer_features:C002", "credit_score", "640")
}

func (suite *FeatureStoreTestSuite) TearDownTest() {
	suite.NoError(suite.adapter.Close())
	suite.NoError(suite.dbProvider.Close())
}

func (suite *FeatureStoreTestSuite) request(operation, strategy, params string) adapter.Request {
	v, err := value.FromJSON([]byte(params))
	suite.Require().NoError(err)
	return adapter.Request{SourceID: "default", Operation: operation, Strategy: strategy, Params: v}
}

const singleEntity = `{"entity_id": "C001",
	"features": ["customer_features:credit_score", "customer_features:lifetime_value"]}`

func (suite *FeatureStoreTestSuite) TestOnlineGetFeatures() {
	result, err := suite.adapter.Execute(context.Background(),
		suite.request(OperationGetFeatures, "", singleEntity))

	suite.Require().NoError(err)
	suite.Equal(`{"customer_features:credit_score":720,"customer_features:lifetime_value":1500.5}`, result.String())
	suite.Empty(suite.advanced)
}

func (suite *FeatureStoreTestSuite) TestFallbackToDatabaseKeepsShape() {
	online, err := suite.adapter.Execute(context.Background(), suite.request(OperationGetFeatures, "", singleEntity))
	suite.Require().NoError(err)

	suite.redis.Close()
	fromDatabase, err := suite.adapter.Execute(context.Background(),
		suite.request(OperationGetFeatures, "", singleEntity))

	suite.Require().NoError(err)
	suite.Equal(online.Keys(), fromDatabase.Keys())
	suite.True(online.Equal(fromDatabase))
	suite.Equal([]string{StrategyOnline}, suite.advanced)
}

func (suite *FeatureStoreTestSuite) TestMissingEntityFallsBackAndExhausts() {
	_, err := suite.adapter.Execute(context.Background(), suite.request(OperationGetFeatures, "",
		`{"entity_id": "C404", "features": ["customer_features:credit_score"]}`))

	suite.Equal(adapter.ClassNotFound, adapter.ClassOf(err))
	suite.Equal([]string{StrategyOnline, StrategyDatabase}, suite.advanced)
}

func (suite *FeatureStoreTestSuite) TestOnlineFeaturesForSeveralEntities() {
	params := `{"entity_rows": [{"customer_id": "C001"}, {"customer_id": "C002"}, {"customer_id": "C404"}],
		"features": ["customer_features:credit_score", "customer_features:lifetime_value"]}`

	online, err := suite.adapter.Execute(context.Background(),
		suite.request(OperationGetOnlineFeatures, StrategyOnline, params))
	suite.Require().NoError(err)
	suite.Equal(`{"customer_features:credit_score":[720,640,null],`+
		`"customer_features:lifetime_value":[1500.5,null,null]}`, online.String())

	fromDatabase, err := suite.adapter.Execute(context.Background(),
		suite.request(OperationGetOnlineFeatures, StrategyDatabase, params))
	suite.Require().NoError(err)
	suite.Equal(`{"customer_features:credit_score":[720,640,null],`+
		`"customer_features:lifetime_value":[1500.5,300,null]}`, fromDatabase.String())
}

func (suite *FeatureStoreTestSuite) TestPlainFeatureNamesAndStrings() {
	suite.redis.HSet("C010", "segment", "premium", "tags", `["a","b"]`)

	result, err := suite.adapter.Execute(context.Background(), adapter.Request{
		SourceID: "online_only", Operation: OperationGetFeatures,
		Params: value.MappingOf(
			value.Entry{Key: "entity_id", Value: value.String("C010")},
			value.Entry{Key: "features", Value: value.Sequence(value.String("segment"), value.String("tags"))},
		),
	})

	suite.Require().NoError(err)
	suite.Equal(`{"segment":"premium","tags":["a","b"]}`, result.String())
}

func (suite *FeatureStoreTestSuite) TestDatabaseStrategyWithoutFallback() {
	_, err := suite.adapter.Execute(context.Background(), adapter.Request{
		SourceID: "online_only", Operation: OperationGetFeatures, Strategy: StrategyDatabase,
		Params: value.MappingOf(
			value.Entry{Key: "entity_id", Value: value.String("C001")},
			value.Entry{Key: "features", Value: value.String("segment")},
		),
	})
	suite.Equal(adapter.ClassUnavailable, adapter.ClassOf(err))
}

func (suite *FeatureStoreTestSuite) TestInvalidRequests() {
	testCases := []struct {
		name    string
		request adapter.Request
	}{
		{"UnknownSource", adapter.Request{SourceID: "missing", Operation: OperationGetFeatures}},
		{"NoFeatures", suite.request(OperationGetFeatures, "", `{"entity_id": "C001"}`)},
		{"NoEntity", suite.request(OperationGetFeatures, "", `{"features": ["x"]}`)},
		{"BadRows", suite.request(OperationGetOnlineFeatures, "", `{"entity_rows": "C001", "features": ["x"]}`)},
		{"UnknownOperation", suite.request("write_features", "", `{"features": ["x"]}`)},
		{"UnknownStrategy", suite.request(OperationGetFeatures, "offline", singleEntity)},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, err := suite.adapter.Execute(context.Background(), tc.request)
			suite.Equal(adapter.ClassInvalidInput, adapter.ClassOf(err))
		})
	}
}

func (suite *FeatureStoreTestSuite) TestCheckHealth() {
	health := suite.adapter.CheckHealth(context.Background())
	suite.NoError(health["default"])
	suite.NoError(health["online_only"])
}

func (suite *FeatureStoreTestSuite) TestRequiresAddress() {
	_, err := New(map[string]config.FeatureStoreSource{"bad": {}}, nil, nil)
	suite.Error(err)
}
